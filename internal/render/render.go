package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/k0kubun/pp"
	"github.com/samber/lo"

	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/reactions"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatPP   = "pp"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Printer writes domain values to the terminal in the configured format.
type Printer struct {
	Config *config.Config

	out      io.Writer
	format   string
	username string
	now      func() time.Time
}

func NewPrinter(out io.Writer, format string, now func() time.Time) (*Printer, error) {
	if now == nil {
		now = time.Now
	}
	p := &Printer{out: out, format: format, now: now}
	return p, p.validate()
}

func (p *Printer) Init(_ context.Context) error {
	if p.out == nil {
		p.out = os.Stdout
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.format = p.Config.Output
	return p.validate()
}

func (p *Printer) validate() error {
	if p.format == "" {
		p.format = FormatText
	}
	if !lo.Contains([]string{FormatText, FormatJSON, FormatPP}, p.format) {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, p.format)
	}
	return nil
}

// ForUser returns a printer that marks the reactions of username.
func (p *Printer) ForUser(username string) *Printer {
	c := *p
	c.username = username
	return &c
}

func (p *Printer) Format() string {
	return p.format
}

func (p *Printer) emit(v any, text func(w io.Writer) error) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatPP:
		_, err := pp.Fprintln(p.out, v)
		return err
	default:
		return text(p.out)
	}
}

// Message prints a status line. Structured formats ignore it.
func (p *Printer) Message(format string, args ...any) {
	if p.format != FormatText {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Session(s core.Session) error {
	return p.emit(map[string]string{"username": s.Username}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "signed in as @%s\n", s.Username)
		return err
	})
}

// Posts prints posts numbered from first.
func (p *Printer) Posts(posts []core.Post, first int) error {
	return p.emit(posts, func(w io.Writer) error {
		for i, post := range posts {
			if err := p.writePost(w, first+i, post); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Printer) Replies(replies []core.Reply, first int) error {
	return p.emit(replies, func(w io.Writer) error {
		for i, reply := range replies {
			if err := p.writeReply(w, first+i, reply, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Printer) PostDetail(d core.PostDetail) error {
	return p.emit(d, func(w io.Writer) error {
		if err := p.writePost(w, 0, d.Post); err != nil {
			return err
		}
		for i, reply := range d.Replies {
			if err := p.writeReply(w, i+1, reply, "    "); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Printer) UserDetail(u core.UserDetail) error {
	return p.emit(u, func(w io.Writer) error {
		return p.writeUser(w, u)
	})
}

// Profile is a user together with their latest posts and replies.
type Profile struct {
	User    core.UserDetail `json:"user"`
	Posts   []core.Post     `json:"posts"`
	Replies []core.Reply    `json:"replies"`
}

func (p *Printer) Profile(profile Profile) error {
	return p.emit(profile, func(w io.Writer) error {
		if err := p.writeUser(w, profile.User); err != nil {
			return err
		}

		fmt.Fprintf(w, "posts (%d)\n\n", len(profile.Posts))
		for i, post := range profile.Posts {
			if err := p.writePost(w, i+1, post); err != nil {
				return err
			}
		}

		fmt.Fprintf(w, "replies (%d)\n\n", len(profile.Replies))
		for i, reply := range profile.Replies {
			if err := p.writeReply(w, i+1, reply, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Printer) Event(e core.ReactionEvent) error {
	return p.emit(e, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s %-6s %-5s %s -> %s\n",
			e.Received.Format(time.TimeOnly), e.Action, e.Kind, e.In.String(), e.Out.String())
		return err
	})
}

func (p *Printer) writeUser(w io.Writer, u core.UserDetail) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (@%s)\n", u.DisplayName, u.Username)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "joined %s ago\n", Age(p.now().Sub(u.CreatedAt)))
	}
	if u.Biography != "" {
		fmt.Fprintf(&b, "%s\n", u.Biography)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Printer) writePost(w io.Writer, index int, post core.Post) error {
	var b strings.Builder
	writeIndex(&b, index)
	b.WriteString(Header(post.CreatedBy, post.CreatedAt, p.now()))
	b.WriteString("\n")
	writeContent(&b, post.Content, "    ")
	fmt.Fprintf(&b, "    %s · %s\n", ReactionLine(post.Reactions, p.username), replyCount(post.NumReplies))
	fmt.Fprintf(&b, "    %s\n\n", post.ID.String())

	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Printer) writeReply(w io.Writer, index int, reply core.Reply, indent string) error {
	var b strings.Builder
	b.WriteString(indent)
	writeIndex(&b, index)
	b.WriteString(Header(reply.CreatedBy, reply.CreatedAt, p.now()))
	b.WriteString("\n")
	if parent, ok := reply.Parent(); ok && indent == "" {
		fmt.Fprintf(&b, "    replying to %s\n", parent.String())
	}
	writeContent(&b, reply.Content, indent+"    ")
	fmt.Fprintf(&b, "%s    %s\n", indent, ReactionLine(reply.Reactions, p.username))
	fmt.Fprintf(&b, "%s    %s\n\n", indent, reply.ID.String())

	_, err := io.WriteString(w, b.String())
	return err
}

func writeIndex(b *strings.Builder, index int) {
	if index > 0 {
		fmt.Fprintf(b, "[%d] ", index)
	}
}

func writeContent(b *strings.Builder, content, indent string) {
	for _, line := range strings.Split(content, "\n") {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// Header is the author line of a post or reply.
func Header(author core.User, createdAt, now time.Time) string {
	name := author.DisplayName
	if name == "" {
		name = author.Username
	}
	return fmt.Sprintf("%s @%s · %s ago", name, author.Username, Age(now.Sub(createdAt)))
}

// Age renders d in whole seconds, minutes, hours or days.
func Age(d time.Duration) string {
	seconds := max(int64(d/time.Second), 0)

	switch {
	case seconds < 60:
		return fmt.Sprintf("%d seconds", seconds)
	case seconds < 60*60:
		return fmt.Sprintf("%d minutes", seconds/60)
	case seconds < 60*60*24:
		return fmt.Sprintf("%d hours", seconds/(60*60))
	default:
		return fmt.Sprintf("%d days", seconds/(60*60*24))
	}
}

// ReactionLine lists the reaction counts, kinds reacted with by username are starred.
func ReactionLine(list []core.Reaction, username string) string {
	counts := reactions.Summarize(list, username)
	if len(counts) == 0 {
		return "no reactions"
	}

	return strings.Join(lo.Map(counts, func(c reactions.Count, _ int) string {
		mark := ""
		if c.Mine {
			mark = "*"
		}
		return fmt.Sprintf("%s %d%s", c.Kind, c.Count, mark)
	}), "  ")
}

func replyCount(n int) string {
	if n == 1 {
		return "1 reply"
	}
	return fmt.Sprintf("%d replies", n)
}

// EventPrinter publishes reaction events by printing them.
type EventPrinter struct {
	Printer *Printer

	mu sync.Mutex
}

func (e *EventPrinter) Publish(_ context.Context, event core.ReactionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Printer.Event(event)
}
