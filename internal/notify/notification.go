package notify

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Target selects who receives a notification.
type Target string

const (
	TargetAll   Target = "ALL"
	TargetGroup Target = "GROUP"
)

// Kind drives the icon shown next to a notification.
type Kind string

const (
	KindSystem  Kind = "system"
	KindPromo   Kind = "promo"
	KindMail    Kind = "mail"
	KindCall    Kind = "call"
	KindBilling Kind = "billing"
)

var (
	// ErrNotFound is returned for unknown or invisible notifications.
	ErrNotFound = errors.New("notification not found")
	// ErrInvalid is returned when a notification cannot be sent.
	ErrInvalid = errors.New("invalid notification")
)

// Notification is a message delivered to every user or to a named group.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Target    Target    `json:"target"`
	Usernames []string  `json:"usernames,omitempty"`
	SentBy    string    `json:"sentBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// VisibleTo reports whether the user is a recipient.
func (n Notification) VisibleTo(username string) bool {
	if n.Target == TargetAll {
		return true
	}
	return slices.ContainsFunc(n.Usernames, func(u string) bool {
		return strings.EqualFold(u, username)
	})
}

// Recipients summarises the audience, e.g. "@alice, bob +2".
func (n Notification) Recipients() string {
	if n.Target == TargetAll {
		return "All users"
	}
	shown := n.Usernames
	if len(shown) > 3 {
		shown = shown[:3]
	}
	out := "@" + strings.Join(shown, ", ")
	if extra := len(n.Usernames) - len(shown); extra > 0 {
		out += " +" + strconv.Itoa(extra)
	}
	return out
}

// Normalize trims the fields and checks the message can be sent.
func Normalize(n Notification) (Notification, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Body = strings.TrimSpace(n.Body)
	if n.Title == "" || n.Body == "" {
		return n, errors.Join(ErrInvalid, errors.New("title and body are required"))
	}
	if n.Kind == "" {
		n.Kind = KindSystem
	}
	switch n.Target {
	case "", TargetAll:
		n.Target = TargetAll
		n.Usernames = nil
	case TargetGroup:
		n.Usernames = compact(n.Usernames)
		if len(n.Usernames) == 0 {
			return n, errors.Join(ErrInvalid, errors.New("group notifications need at least one username"))
		}
	default:
		return n, errors.Join(ErrInvalid, errors.New("target must be ALL or GROUP"))
	}
	return n, nil
}

// ParseUsernames splits a comma or newline separated list.
func ParseUsernames(raw string) []string {
	return compact(strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }))
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" || slices.Contains(out, u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Defaults are the messages a fresh deployment starts with.
func Defaults(now time.Time) []Notification {
	return []Notification{
		{ID: "n1", Kind: KindSystem, Title: "Maintenance Window", Body: "We will perform maintenance on Sunday 02:00-04:00 UTC.", Target: TargetAll, SentBy: "Admin User", CreatedAt: now},
		{ID: "n2", Kind: KindPromo, Title: "Welcome Offer", Body: "Exclusive info for selected users.", Target: TargetGroup, Usernames: []string{"alice", "bob"}, SentBy: "Admin User", CreatedAt: now},
	}
}
