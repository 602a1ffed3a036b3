package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/font-crawler/internal/progress"
)

type fakePage struct {
	status int
	fonts  []string
	links  []string
	err    error
}

// fakeBrowser serves a static link graph and records every fetch.
type fakeBrowser struct {
	mu      sync.Mutex
	pages   map[string]fakePage
	openErr error
	opens   int
	closes  int
	fetched []string
	listing *fakeListing
}

func newFakeBrowser(pages map[string]fakePage) *fakeBrowser {
	return &fakeBrowser{pages: pages}
}

func (b *fakeBrowser) Open(context.Context) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opens++
	return &fakeSession{browser: b}, nil
}

func (b *fakeBrowser) Fetched() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.fetched...)
}

type fakeSession struct {
	browser *fakeBrowser
}

func (s *fakeSession) Fetch(_ context.Context, url string) (PageResult, error) {
	b := s.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetched = append(b.fetched, url)
	page, ok := b.pages[url]
	if !ok {
		return PageResult{}, fmt.Errorf("%w: dial %s: no such host", ErrNavigation, url)
	}
	if page.err != nil {
		return PageResult{}, page.err
	}
	status := page.status
	if status == 0 {
		status = 200
	}
	return PageResult{URL: url, Status: status, RawFontValues: page.fonts, OutgoingLinks: page.links}, nil
}

func (s *fakeSession) OpenListing(_ context.Context, url string) (ListingPage, error) {
	l := s.browser.listing
	if l == nil {
		return nil, fmt.Errorf("%w: listing %s", ErrNavigation, url)
	}
	if l.openErr != nil {
		return nil, l.openErr
	}
	return l, nil
}

func (s *fakeSession) Close() error {
	s.browser.mu.Lock()
	defer s.browser.mu.Unlock()
	s.browser.closes++
	return nil
}

// fakeListing returns one slice of preview links per round.
type fakeListing struct {
	rounds     [][]string
	current    int
	nextCalls  int
	openErr    error
	previewErr error
	nextErr    error
	// stuck keeps reporting a next control without advancing.
	stuck bool
}

func (l *fakeListing) PreviewLinks(context.Context) ([]string, error) {
	if l.previewErr != nil {
		return nil, l.previewErr
	}
	var out []string
	for i := 0; i <= l.current && i < len(l.rounds); i++ {
		out = append(out, l.rounds[i]...)
	}
	return out, nil
}

func (l *fakeListing) NextPage(context.Context) (bool, error) {
	l.nextCalls++
	if l.nextErr != nil {
		return false, l.nextErr
	}
	if l.stuck {
		return true, nil
	}
	if l.current+1 >= len(l.rounds) {
		return false, nil
	}
	l.current++
	return true, nil
}

var errExtraction = errors.New("evaluate font script: context canceled")

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Events() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}
