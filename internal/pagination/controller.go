package pagination

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"

	"murmur/internal/core"
	"murmur/pkg/retry"
)

// Fetcher loads up to limit items older than cursor. A zero cursor means the first page.
type Fetcher[T any] func(ctx context.Context, cursor core.RecordID, limit int) ([]T, error)

type Options struct {
	PageSize int
	Retry    retry.Policy
	Logger   *slog.Logger
}

// Controller loads the pages of one cache key incrementally. Controllers of a key share the page size of
// the first one.
type Controller[T Item[T]] struct {
	cache    *Cache[T]
	key      string
	fetch    Fetcher[T]
	pageSize int
	retry    retry.Policy
	logger   *slog.Logger
}

func (c *Cache[T]) Controller(key string, fetch Fetcher[T], opts Options) *Controller[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	logger := opts.Logger.With("component", "pagination.Controller", "key", key)

	c.mu.Lock()
	e := c.entry(key)
	if e.pageSize == 0 {
		e.pageSize = opts.PageSize
	} else if e.pageSize != opts.PageSize {
		logger.Debug("Key already paged with another page size", "page_size", e.pageSize, "requested", opts.PageSize)
	}
	pageSize := e.pageSize
	c.mu.Unlock()

	return &Controller[T]{
		cache:    c,
		key:      key,
		fetch:    fetch,
		pageSize: pageSize,
		retry:    opts.Retry,
		logger:   logger,
	}
}

// Load fetches the first page unless the key already has pages or a fetch is running.
func (c *Controller[T]) Load(ctx context.Context) error {
	return c.run(ctx, func(e *entry[T]) bool {
		return e.state == StateIdle || (e.state == StateError && len(e.pages) == 0)
	})
}

// FetchNext fetches the page after the last loaded one when there is one. After a failure it repeats the
// failed fetch.
func (c *Controller[T]) FetchNext(ctx context.Context) error {
	return c.run(ctx, func(e *entry[T]) bool {
		switch e.state {
		case StateIdle:
			return true
		case StateLoaded:
			return c.hasNextPage(e)
		case StateError:
			return len(e.pages) == 0 || c.hasNextPage(e)
		default:
			return false
		}
	})
}

// SentinelVisible is called when the end of the list is on screen.
func (c *Controller[T]) SentinelVisible(ctx context.Context) error {
	c.cache.mu.Lock()
	e := c.cache.entry(c.key)
	ready := e.state == StateLoaded && c.hasNextPage(e)
	c.cache.mu.Unlock()

	if !ready {
		return nil
	}
	return c.FetchNext(ctx)
}

// Reset drops every page of the key. Fetches still running are discarded when they complete.
func (c *Controller[T]) Reset() {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	e := c.cache.entry(c.key)
	e.generation++
	e.state = StateIdle
	e.pages = nil
	e.err = nil
	e.inflight = nil
	e.notify()
}

func (c *Controller[T]) run(ctx context.Context, should func(e *entry[T]) bool) error {
	c.cache.mu.Lock()
	e := c.cache.entry(c.key)

	if e.inflight != nil {
		inflight := e.inflight
		c.cache.mu.Unlock()
		return wait(ctx, inflight)
	}

	if !should(e) {
		c.cache.mu.Unlock()
		return nil
	}

	cursor := core.RecordID{}
	if len(e.pages) == 0 {
		e.state = StateLoadingFirst
	} else {
		e.state = StateLoadingNext
		last := e.pages[len(e.pages)-1]
		cursor = last[c.pageSize-1].Key()
	}
	generation := e.generation
	inflight := &call{done: make(chan struct{})}
	e.inflight = inflight
	e.notify()
	c.cache.mu.Unlock()

	page, err := c.fetchWithRetry(ctx, cursor)

	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	defer close(inflight.done)

	if e.generation != generation {
		c.logger.Debug("Discarding stale page", "cursor", cursor.String())
		return nil
	}
	e.inflight = nil

	if err != nil {
		c.logger.Warn("Failed to fetch page", "cursor", cursor.String(), "error", err)
		e.state = StateError
		e.err = err
		inflight.err = err
		e.notify()
		return err
	}

	c.cache.reapply(c.key, page)
	e.pages = append(e.pages, page)
	e.state = StateLoaded
	e.err = nil
	e.notify()

	return nil
}

func (c *Controller[T]) fetchWithRetry(ctx context.Context, cursor core.RecordID) ([]T, error) {
	var page []T

	err := retry.WrapWithRetry(func(ctx context.Context) error {
		var err error
		page, err = c.fetch(ctx, cursor, c.pageSize+1)
		return err
	}, func(err error, attempt int) bool {
		if core.IsLoginRequired(err) || errors.Is(err, context.Canceled) || errors.Is(err, core.ErrNotFound) {
			return false
		}
		c.logger.Debug("Retrying page fetch", "attempt", attempt, "error", err)
		return true
	}, c.retry)(ctx)

	return page, err
}

func wait(ctx context.Context, inflight *call) error {
	select {
	case <-inflight.done:
		return inflight.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hasNextPage must be called with the cache lock held.
func (c *Controller[T]) hasNextPage(e *entry[T]) bool {
	return len(e.pages) > 0 && len(e.pages[len(e.pages)-1]) > c.pageSize
}

func (c *Controller[T]) HasNextPage() bool {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.hasNextPage(c.cache.entry(c.key))
}

// Items returns the displayed items: every page without its look-ahead item.
func (c *Controller[T]) Items() []T {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	e := c.cache.entry(c.key)
	return lo.FlatMap(e.pages, func(page []T, _ int) []T {
		return page[:min(len(page), c.pageSize)]
	})
}

// Pages returns a copy of the fetched pages including look-ahead items.
func (c *Controller[T]) Pages() [][]T {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	e := c.cache.entry(c.key)
	return lo.Map(e.pages, func(page []T, _ int) []T {
		return append([]T(nil), page...)
	})
}

func (c *Controller[T]) State() State {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.cache.entry(c.key).state
}

// Err returns the error of the last failed fetch while the key is in the error state.
func (c *Controller[T]) Err() error {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.cache.entry(c.key).err
}

// Subscribe returns a channel signalled after every change of the key. Call the returned function to stop.
func (c *Controller[T]) Subscribe() (<-chan struct{}, func()) {
	return c.cache.subscribe(c.key)
}
