// Package process terminates browser process trees and probes liveness.
// Browser sessions use it to force-close Chromium when a render times out,
// and to tell a dead browser apart from a slow one.
package process
