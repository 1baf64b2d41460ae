package reactions

import (
	"github.com/samber/lo"

	"murmur/internal/core"
)

type Count struct {
	Kind  core.ReactionKind `json:"kind"`
	Count int               `json:"count"`
	Mine  bool              `json:"mine"`
}

// Summarize counts reactions per kind in display order, skipping kinds nobody used. Mine marks kinds
// username reacted with.
func Summarize(reactions []core.Reaction, username string) []Count {
	byKind := lo.GroupBy(reactions, func(r core.Reaction) core.ReactionKind { return r.Kind })

	return lo.FilterMap(core.ReactionKinds, func(kind core.ReactionKind, _ int) (Count, bool) {
		group := byKind[kind]
		return Count{
			Kind:  kind,
			Count: len(group),
			Mine: lo.ContainsBy(group, func(r core.Reaction) bool {
				return username != "" && r.ReactedBy.Username == username
			}),
		}, len(group) > 0
	})
}
