package core

import (
	"fmt"
	"slices"
	"time"
)

// Session is the persisted login of one profile.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type ReactionKind string

const (
	ReactionGood  ReactionKind = "good"
	ReactionHeart ReactionKind = "heart"
	ReactionLaugh ReactionKind = "laugh"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
)

// ReactionKinds lists every kind in display order.
var ReactionKinds = []ReactionKind{ReactionGood, ReactionHeart, ReactionLaugh, ReactionWow, ReactionSad}

func ParseReactionKind(s string) (ReactionKind, error) {
	kind := ReactionKind(s)
	if !slices.Contains(ReactionKinds, kind) {
		return "", fmt.Errorf("%w: %q", ErrInvalidReactionKind, s)
	}
	return kind, nil
}

type Reactor struct {
	Username string `json:"username"`
}

type Reaction struct {
	ID        RecordID     `json:"id"`
	Kind      ReactionKind `json:"kind"`
	ReactedBy Reactor      `json:"reactedBy"`
}

type User struct {
	ID            RecordID `json:"id"`
	Username      string   `json:"username"`
	DisplayName   string   `json:"displayName"`
	AvatarImageID string   `json:"avatarImageId"`
}

// UserDetail is the profile page projection of a user.
type UserDetail struct {
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	CreatedAt     time.Time `json:"createdAt"`
	AvatarImageID string    `json:"avatarImageId"`
	Biography     string    `json:"biography"`
}

type Post struct {
	ID         RecordID   `json:"id"`
	CreatedBy  User       `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	Content    string     `json:"content"`
	Reactions  []Reaction `json:"reactions"`
	NumReplies int        `json:"numReplies"`
}

func (p Post) Key() RecordID {
	return p.ID
}

func (p Post) ReactionList() []Reaction {
	return p.Reactions
}

func (p Post) WithReactions(reactions []Reaction) Post {
	p.Reactions = reactions
	return p
}

type Reply struct {
	ID        RecordID   `json:"id"`
	CreatedBy User       `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	ReplyTo   []RecordID `json:"replyTo"`
	Content   string     `json:"content"`
	Reactions []Reaction `json:"reactions"`
}

func (r Reply) Key() RecordID {
	return r.ID
}

func (r Reply) ReactionList() []Reaction {
	return r.Reactions
}

func (r Reply) WithReactions(reactions []Reaction) Reply {
	r.Reactions = reactions
	return r
}

// Parent returns the post the reply answers, if any.
func (r Reply) Parent() (RecordID, bool) {
	if len(r.ReplyTo) == 0 {
		return RecordID{}, false
	}
	return r.ReplyTo[0], true
}

// PostDetail is a post together with all of its replies, oldest first.
type PostDetail struct {
	Post
	Replies []Reply `json:"replies"`
}

// ReactionEvent is a live change of the reacted relation.
type ReactionEvent struct {
	Action   string       `json:"action"`
	ID       RecordID     `json:"id"`
	Kind     ReactionKind `json:"kind"`
	In       RecordID     `json:"in"`
	Out      RecordID     `json:"out"`
	Received time.Time    `json:"received"`
}
