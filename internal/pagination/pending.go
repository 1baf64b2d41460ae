package pagination

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"murmur/internal/core"
	"murmur/internal/metrics"
)

const reactionTable = "reacted"

type mutationOp string

const (
	opAdd    mutationOp = "add"
	opRemove mutationOp = "remove"
)

// Pending is a local reaction change waiting for the remote write. Exactly one of Confirm and Revert takes
// effect, later calls are no-ops.
type Pending struct {
	key      string
	op       mutationOp
	item     core.RecordID
	reaction core.Reaction
	// index and found describe where a removed reaction was.
	index int
	found bool

	once   sync.Once
	settle func(confirmed bool)
}

// Reaction is the reaction added or removed by the mutation. For additions its id is the locally
// generated one the remote write must reuse.
func (p *Pending) Reaction() core.Reaction {
	return p.reaction
}

func (p *Pending) Item() core.RecordID {
	return p.item
}

// Confirm keeps the local change.
func (p *Pending) Confirm() {
	p.once.Do(func() {
		p.settle(true)
		metrics.MutationSettled(string(p.op), "confirmed")
	})
}

// Revert restores the state before the change.
func (p *Pending) Revert() {
	p.once.Do(func() {
		p.settle(false)
		metrics.MutationSettled(string(p.op), "reverted")
	})
}

func (p *Pending) apply(reactions []core.Reaction) ([]core.Reaction, bool) {
	switch p.op {
	case opAdd:
		return addReaction(reactions, p.reaction)
	case opRemove:
		return removeReaction(reactions, p.reaction.ID)
	}
	return nil, false
}

func (p *Pending) undo(reactions []core.Reaction) ([]core.Reaction, bool) {
	switch p.op {
	case opAdd:
		return removeReaction(reactions, p.reaction.ID)
	case opRemove:
		if !p.found || slices.ContainsFunc(reactions, func(r core.Reaction) bool { return r.ID == p.reaction.ID }) {
			return nil, false
		}
		return slices.Insert(slices.Clone(reactions), min(p.index, len(reactions)), p.reaction), true
	}
	return nil, false
}

func addReaction(reactions []core.Reaction, reaction core.Reaction) ([]core.Reaction, bool) {
	exists := slices.ContainsFunc(reactions, func(r core.Reaction) bool {
		return r.ID == reaction.ID ||
			(r.Kind == reaction.Kind && r.ReactedBy.Username == reaction.ReactedBy.Username)
	})
	if exists {
		return nil, false
	}

	return append(slices.Clone(reactions), reaction), true
}

func removeReaction(reactions []core.Reaction, id core.RecordID) ([]core.Reaction, bool) {
	i := slices.IndexFunc(reactions, func(r core.Reaction) bool { return r.ID == id })
	if i < 0 {
		return nil, false
	}
	return slices.Delete(slices.Clone(reactions), i, i+1), true
}

// NewReactionID returns a fresh id for a reaction created on this client.
func NewReactionID() core.RecordID {
	return core.NewRecordID(reactionTable, uuid.Must(uuid.NewV7()).String())
}

// FindReaction returns the reaction of username with the given kind on a cached copy of item.
func (c *Controller[T]) FindReaction(item core.RecordID, username string, kind core.ReactionKind) (core.Reaction, bool) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	r, _, ok := c.cache.findReaction(c.key, item, func(r core.Reaction) bool {
		return r.Kind == kind && r.ReactedBy.Username == username
	})
	return r, ok
}

// AddReactionLocally adds a reaction of username to the cached copies of item under the controller's key.
// A copy that already has a reaction of this kind by username is left as is.
func (c *Controller[T]) AddReactionLocally(item core.RecordID, kind core.ReactionKind, username string) *Pending {
	return c.cache.mutate(&Pending{
		key:  c.key,
		op:   opAdd,
		item: item,
		reaction: core.Reaction{
			ID:        NewReactionID(),
			Kind:      kind,
			ReactedBy: core.Reactor{Username: username},
		},
	})
}

// RemoveReactionLocally removes the reaction from the cached copies of item under the controller's key.
func (c *Controller[T]) RemoveReactionLocally(item core.RecordID, reactionID core.RecordID) *Pending {
	p := &Pending{key: c.key, op: opRemove, item: item, reaction: core.Reaction{ID: reactionID}}

	c.cache.mu.Lock()
	if r, i, ok := c.cache.findReaction(c.key, item, func(r core.Reaction) bool { return r.ID == reactionID }); ok {
		p.reaction = r
		p.index = i
		p.found = true
	}
	c.cache.mu.Unlock()

	return c.cache.mutate(p)
}

func (c *Cache[T]) mutate(p *Pending) *Pending {
	p.settle = func(confirmed bool) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.pending = slices.DeleteFunc(c.pending, func(q *Pending) bool { return q == p })
		if !confirmed {
			c.update(p.key, p.item, p.undo)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, p)
	c.update(p.key, p.item, p.apply)

	return p
}

// reapply applies the still pending mutations of key to a freshly fetched page. Must be called with mu held.
func (c *Cache[T]) reapply(key string, page []T) {
	for _, p := range c.pending {
		if p.key == key {
			updatePages([][]T{page}, p.item, p.apply)
		}
	}
}
