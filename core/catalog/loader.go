package catalog

import (
	"context"
	"sync"

	"muselib/logger"
	"muselib/model"
	"muselib/repository"
)

// Loader accumulates catalog pages into a growing, de-duplicated list.
// Display order is server order (descending ID). A single fetch is in
// flight at a time; LoadNext while a fetch is pending or after the end
// of data is a no-op, so it can be driven by a level-triggered scroll
// check without issuing redundant fetches.
type Loader struct {
	repo     repository.TrackRepository
	pageSize int

	mu      sync.Mutex
	items   []model.Track
	page    int // next page number, 1-based
	gen     int // bumped by Replace/Reset to invalidate in-flight fetches
	hasMore bool
	loading bool
	closed  bool
}

// NewLoader creates a loader that fetches pages of pageSize tracks.
func NewLoader(repo repository.TrackRepository, pageSize int) *Loader {
	return &Loader{
		repo:     repo,
		pageSize: pageSize,
		page:     1,
		hasMore:  true,
	}
}

// LoadNext fetches the next page and merges it into the list. It returns
// nil without fetching when a fetch is already in flight, when the end of
// data has been reached, or after Close. On a fetch failure the list,
// cursor and hasMore flag are left untouched so the caller may retry.
func (l *Loader) LoadNext(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || !l.hasMore || l.closed {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	page := l.page
	gen := l.gen
	l.mu.Unlock()

	tracks, err := l.repo.ListPage(ctx, (page-1)*l.pageSize, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if l.closed || gen != l.gen {
		// The loader was torn down, or the list was replaced or reset
		// while the fetch was pending. Applying the result now would mix
		// a stale page into the new list.
		return nil
	}

	if err != nil {
		logger.Error("Failed to load catalog page",
			logger.Int("page", page),
			logger.ErrorField(err))
		return err
	}

	if len(tracks) < l.pageSize {
		l.hasMore = false
	}
	l.merge(tracks)
	l.page = page + 1
	return nil
}

// merge appends tracks whose IDs are not yet present, preserving the
// incoming order. Pages can overlap when rows are inserted or deleted
// between fetches.
func (l *Loader) merge(tracks []model.Track) {
	seen := make(map[int64]struct{}, len(l.items))
	for _, t := range l.items {
		seen[t.ID] = struct{}{}
	}
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		l.items = append(l.items, t)
	}
}

// Replace swaps in a full replacement list (e.g. a search result set).
// The cursor is reset to reflect the replacement's size and further
// paging is disabled; replacement sets are not paginated. A page fetch
// still in flight when Replace lands is discarded on arrival.
func (l *Loader) Replace(tracks []model.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	l.items = l.items[:0]
	seen := make(map[int64]struct{}, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		l.items = append(l.items, t)
	}
	l.page = len(l.items)/l.pageSize + 1
	l.gen++
	l.hasMore = false
}

// Reset clears the list and re-arms paging from the first page.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.items = l.items[:0]
	l.page = 1
	l.gen++
	l.hasMore = true
}

// Items returns a snapshot of the merged list.
func (l *Loader) Items() []model.Track {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Track, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the current list length.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// HasMore reports whether another page may exist.
func (l *Loader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Loading reports whether a fetch is in flight.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Close makes all subsequent operations no-ops and discards the result
// of any fetch still in flight.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// Favorite returns the pin value of a listed track and whether the track
// is present in the list.
func (l *Loader) Favorite(id int64) (int8, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			return l.items[i].Pin, true
		}
	}
	return 0, false
}

// SetFavorite updates the pin value of a listed track in place.
func (l *Loader) SetFavorite(id int64, pin int8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Pin = pin
			return
		}
	}
}
