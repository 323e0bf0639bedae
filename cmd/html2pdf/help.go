package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: html2pdf (--url <url> | --html <html|@file> | --markdown <file>) [flags]")
	fmt.Fprintln(w, "       html2pdf <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  doctor     Check the browser and environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Source (exactly one):")
	fmt.Fprintln(w, "      --url <url>           Fetch and print a web page")
	fmt.Fprintln(w, "      --html <s>            Print inline HTML, or @path to read a file")
	fmt.Fprintln(w, "      --markdown <path>     Convert a Markdown file, then print it")
	fmt.Fprintln(w, "  -H, --header <s>          Fetch header \"Name: value\" (repeatable)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file (default: stdout)")
	fmt.Fprintln(w, "      --preview             Print the first and last 128 bytes only")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page:")
	fmt.Fprintln(w, "  -f, --format <s>          Paper format: letter, legal, tabloid, ledger, a0-a6")
	fmt.Fprintln(w, "      --landscape           Landscape orientation")
	fmt.Fprintln(w, "      --margin <f>          Margin on all sides, in --unit")
	fmt.Fprintln(w, "      --unit <s>            Unit: in, mm, cm, px (default in)")
	fmt.Fprintln(w, "      --scale <f>           Scale (0.1-2.0)")
	fmt.Fprintln(w, "      --pages <s>           Page ranges, e.g. \"1-5, 8\"")
	fmt.Fprintln(w, "      --header-template <s> Header HTML template")
	fmt.Fprintln(w, "      --footer-template <s> Footer HTML template")
	fmt.Fprintln(w, "      --no-background       Do not print backgrounds")
	fmt.Fprintln(w, "      --options <path>      YAML file of print options")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --wait <event>        Wait for a lifecycle event, e.g. networkIdle")
	fmt.Fprintln(w, "      --timeout <d>         Render budget, e.g. 45s")
	fmt.Fprintln(w, "      --media <s>           Emulate media: screen, print")
	fmt.Fprintln(w, "      --no-scripts          Disable JavaScript")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging on stderr")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: html2pdf doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check that Chrome/Chromium can be found and the workspace is writable.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: html2pdf version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: html2pdf help [command]")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
