package pagination

import (
	"slices"
	"sync"

	"murmur/internal/core"
)

// Item is a feed entry the cache can page and mutate.
type Item[T any] interface {
	Key() core.RecordID
	ReactionList() []core.Reaction
	WithReactions(reactions []core.Reaction) T
}

type State int

const (
	StateIdle State = iota
	StateLoadingFirst
	StateLoaded
	StateLoadingNext
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFirst:
		return "loading-first"
	case StateLoaded:
		return "loaded"
	case StateLoadingNext:
		return "loading-next"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

type call struct {
	done chan struct{}
	err  error
}

type entry[T Item[T]] struct {
	// pageSize is fixed by the first controller of the key, cursors depend on it.
	pageSize   int
	state      State
	pages      [][]T
	err        error
	generation uint64
	inflight   *call

	subscribers map[int]chan struct{}
	nextSubID   int
}

// Cache holds the pages of every feed key for the lifetime of the process. Controllers with the same key
// share one entry. Optimistic mutations only touch the key they were made under.
type Cache[T Item[T]] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	pending []*Pending
}

func NewCache[T Item[T]]() *Cache[T] {
	return &Cache[T]{
		entries: map[string]*entry[T]{},
	}
}

// entry must be called with mu held.
func (c *Cache[T]) entry(key string) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{subscribers: map[int]chan struct{}{}}
		c.entries[key] = e
	}
	return e
}

// notify must be called with mu held.
func (e *entry[T]) notify() {
	for _, ch := range e.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Cache[T]) subscribe(key string) (<-chan struct{}, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	id := e.nextSubID
	e.nextSubID++

	ch := make(chan struct{}, 1)
	e.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(e.subscribers, id)
	}
}

// findReaction must be called with mu held.
func (c *Cache[T]) findReaction(key string, item core.RecordID, match func(core.Reaction) bool) (core.Reaction, int, bool) {
	e, ok := c.entries[key]
	if !ok {
		return core.Reaction{}, 0, false
	}
	for _, page := range e.pages {
		for _, it := range page {
			if it.Key() != item {
				continue
			}
			if i := slices.IndexFunc(it.ReactionList(), match); i >= 0 {
				return it.ReactionList()[i], i, true
			}
		}
	}
	return core.Reaction{}, 0, false
}

// update rewrites the reactions of the copies of item under key and notifies its subscribers. fn returns
// false to leave a copy untouched. Must be called with mu held.
func (c *Cache[T]) update(key string, item core.RecordID, fn func(reactions []core.Reaction) ([]core.Reaction, bool)) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if updatePages(e.pages, item, fn) {
		e.notify()
	}
}

func updatePages[T Item[T]](pages [][]T, item core.RecordID, fn func([]core.Reaction) ([]core.Reaction, bool)) bool {
	changed := false
	for _, page := range pages {
		for i, it := range page {
			if it.Key() != item {
				continue
			}
			reactions, ok := fn(it.ReactionList())
			if !ok {
				continue
			}
			page[i] = it.WithReactions(reactions)
			changed = true
		}
	}
	return changed
}
