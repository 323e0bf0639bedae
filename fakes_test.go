package html2pdf

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod/lib/proto"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

// Compile-time interface checks.
var (
	_ browserLauncher = (*mockLauncher)(nil)
	_ browserSession  = (*mockSession)(nil)
	_ browserPage     = (*mockPage)(nil)
)

// mockPDF is a minimal document carrying the PDF signature.
var mockPDF = []byte("%PDF-1.7\n%mock\n%%EOF\n")

// mockLauncher hands out a new mockSession per Launch. newPage configures
// the page each session opens.
type mockLauncher struct {
	err     error
	newPage func() *mockPage

	mu       sync.Mutex
	relaxed  []bool
	sessions []*mockSession
	closed   atomic.Int32
}

func (m *mockLauncher) Launch(ctx context.Context, relaxed bool) (browserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.relaxed = append(m.relaxed, relaxed)
	if m.err != nil {
		return nil, m.err
	}
	page := &mockPage{pdf: mockPDF}
	if m.newPage != nil {
		page = m.newPage()
	}
	s := &mockSession{page: page}
	m.sessions = append(m.sessions, s)
	return s, nil
}

func (m *mockLauncher) Close() error {
	m.closed.Add(1)
	return nil
}

func (m *mockLauncher) launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.relaxed)
}

func (m *mockLauncher) lastSession() *mockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1]
}

type mockSession struct {
	page    *mockPage
	openErr error
	closes  atomic.Int32
}

func (s *mockSession) OpenPage(ctx context.Context) (browserPage, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.page, nil
}

func (s *mockSession) Close() error {
	s.closes.Add(1)
	return nil
}

// mockPage records what the renderer asked for. Block* fields make the
// matching wait hang until the context ends.
type mockPage struct {
	pdf            []byte
	navigateErr    error
	printErr       error
	blockLoad      bool
	blockLifecycle bool
	onNavigate     func() // runs before the target is read

	setup          pageSetup
	url            string
	lifecycleEvent string
	staged         string // content of a file:// target at navigation time
	printReq       *proto.PagePrintToPDF
	lifecycleWaits int
	closes         atomic.Int32
}

func (p *mockPage) Configure(ctx context.Context, setup pageSetup) error {
	p.setup = setup
	return nil
}

func (p *mockPage) Navigate(ctx context.Context, url, lifecycleEvent string) error {
	p.url = url
	p.lifecycleEvent = lifecycleEvent
	if p.onNavigate != nil {
		p.onNavigate()
	}
	if path, ok := strings.CutPrefix(url, "file://"); ok {
		if data, err := os.ReadFile(path); err == nil {
			p.staged = string(data)
		}
	}
	return p.navigateErr
}

func (p *mockPage) WaitLoad(ctx context.Context) error {
	if p.blockLoad {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *mockPage) WaitLifecycle(ctx context.Context) error {
	p.lifecycleWaits++
	if p.blockLifecycle {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *mockPage) Print(ctx context.Context, req *proto.PagePrintToPDF) ([]byte, error) {
	p.printReq = req
	if p.printErr != nil {
		return nil, p.printErr
	}
	return p.pdf, nil
}

func (p *mockPage) Close() error {
	p.closes.Add(1)
	return nil
}

// mockRenderer returns scripted results for Generate tests.
type mockRenderer struct {
	mu    sync.Mutex
	errs  []error // one per attempt; nil or exhausted means success
	calls int
}

func (m *mockRenderer) Convert(ctx context.Context, req Request) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return &Result{PDF: mockPDF, RequestID: "mock"}, nil
}
