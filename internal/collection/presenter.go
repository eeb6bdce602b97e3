// Package collection implements the paginated list state behind activity
// index screens: incremental page loads, switchable browse modes, a search
// mode that restores the browsed list on exit, and divider grouping. The
// presenter holds state only; rendering belongs to the caller.
package collection

import (
	"context"
	"errors"
	"fmt"
)

// DefaultPageSize matches the activity gateways' page size.
const DefaultPageSize = 25

// ErrUnknownMode is returned when SwitchMode names a mode that was never
// registered.
var ErrUnknownMode = errors.New("unknown list mode")

// FetchFunc loads one page of remote items for a mode, returning the page
// and the total match count.
type FetchFunc[T any] func(ctx context.Context, from, limit int) ([]T, int, error)

// OfflineFunc loads the locally pending items merged ahead of the first
// remote page.
type OfflineFunc[T any] func(ctx context.Context) ([]T, error)

// Presenter drives one browsable list. Exactly one mode is active at a
// time; switching modes or entering search replaces the visible items.
// Not safe for concurrent use; a presenter belongs to one screen.
type Presenter[T any] struct {
	pageSize int
	modes    map[string]FetchFunc[T]
	offline  OfflineFunc[T]

	mode    string
	fetch   FetchFunc[T]
	items   []T
	pending int
	from    int
	total   int
	hasMore bool
	loaded  bool

	searching bool
	saved     listState[T]
}

type listState[T any] struct {
	mode    string
	fetch   FetchFunc[T]
	items   []T
	pending int
	from    int
	total   int
	hasMore bool
	loaded  bool
}

// Option configures a Presenter.
type Option[T any] func(*Presenter[T])

// WithPageSize overrides DefaultPageSize.
func WithPageSize[T any](size int) Option[T] {
	return func(p *Presenter[T]) { p.pageSize = size }
}

// WithOffline merges locally pending items ahead of the first remote page
// on every reload.
func WithOffline[T any](fn OfflineFunc[T]) Option[T] {
	return func(p *Presenter[T]) { p.offline = fn }
}

// New creates a presenter with its initial mode.
func New[T any](mode string, fetch FetchFunc[T], opts ...Option[T]) *Presenter[T] {
	p := &Presenter[T]{
		pageSize: DefaultPageSize,
		modes:    map[string]FetchFunc[T]{mode: fetch},
		mode:     mode,
		fetch:    fetch,
		hasMore:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterMode adds a browse mode the presenter can switch to.
func (p *Presenter[T]) RegisterMode(mode string, fetch FetchFunc[T]) {
	p.modes[mode] = fetch
}

// Mode returns the active mode name ("search" while searching).
func (p *Presenter[T]) Mode() string {
	if p.searching {
		return "search"
	}
	return p.mode
}

// Items returns the visible items, pending offline items first.
func (p *Presenter[T]) Items() []T { return p.items }

// HasMore reports whether another remote page is available.
func (p *Presenter[T]) HasMore() bool { return p.hasMore }

// Searching reports whether the search mode is active.
func (p *Presenter[T]) Searching() bool { return p.searching }

// Load appends the next remote page. The first load of a list also merges
// the pending offline items in front.
func (p *Presenter[T]) Load(ctx context.Context) error {
	if p.loaded && !p.hasMore {
		return nil
	}

	if !p.loaded && p.offline != nil && !p.searching {
		pending, err := p.offline(ctx)
		if err != nil {
			return fmt.Errorf("failed to load pending items: %w", err)
		}
		p.items = append(p.items, pending...)
		p.pending = len(pending)
	}

	page, total, err := p.fetch(ctx, p.from, p.pageSize)
	if err != nil {
		return err
	}
	p.items = append(p.items, page...)
	p.from += len(page)
	p.total = total
	p.hasMore = len(page) > 0 && p.from < total
	p.loaded = true
	return nil
}

// Reload drops the list and fetches the first page again.
func (p *Presenter[T]) Reload(ctx context.Context) error {
	p.reset()
	return p.Load(ctx)
}

func (p *Presenter[T]) reset() {
	p.items = nil
	p.pending = 0
	p.from = 0
	p.total = 0
	p.hasMore = true
	p.loaded = false
}

// SwitchMode activates a registered browse mode and reloads. Switching
// while searching first leaves search, discarding the saved list.
func (p *Presenter[T]) SwitchMode(ctx context.Context, mode string) error {
	fetch, ok := p.modes[mode]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	p.searching = false
	p.saved = listState[T]{}
	p.mode = mode
	p.fetch = fetch
	return p.Reload(ctx)
}

// StartSearch enters search mode with the given fetch, saving the browsed
// list so StopSearch can restore it without refetching.
func (p *Presenter[T]) StartSearch(ctx context.Context, fetch FetchFunc[T]) error {
	if !p.searching {
		p.saved = listState[T]{
			mode:    p.mode,
			fetch:   p.fetch,
			items:   p.items,
			pending: p.pending,
			from:    p.from,
			total:   p.total,
			hasMore: p.hasMore,
			loaded:  p.loaded,
		}
		p.searching = true
	}
	p.fetch = fetch
	return p.Reload(ctx)
}

// StopSearch leaves search mode and restores the saved list, scroll cursor
// included, with no remote round-trip.
func (p *Presenter[T]) StopSearch() {
	if !p.searching {
		return
	}
	p.searching = false
	p.mode = p.saved.mode
	p.fetch = p.saved.fetch
	p.items = p.saved.items
	p.pending = p.saved.pending
	p.from = p.saved.from
	p.total = p.saved.total
	p.hasMore = p.saved.hasMore
	p.loaded = p.saved.loaded
	p.saved = listState[T]{}
}

// Group is one divider bucket of the visible list.
type Group[T any] struct {
	Key   string
	Items []T
}

// GroupBy buckets the visible items under divider keys, preserving item
// order. Consecutive items sharing a key join one bucket; an empty key is
// a bucket of its own, not an error.
func GroupBy[T any](items []T, key func(item T) string) []Group[T] {
	var groups []Group[T]
	for _, item := range items {
		k := key(item)
		if len(groups) == 0 || groups[len(groups)-1].Key != k {
			groups = append(groups, Group[T]{Key: k})
		}
		groups[len(groups)-1].Items = append(groups[len(groups)-1].Items, item)
	}
	return groups
}
