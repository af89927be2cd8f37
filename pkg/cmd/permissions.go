package cmd

import "strings"

// Permission is a badge-backed access level a command can require.
type Permission string

const (
	Broadcaster Permission = "broadcaster"
	Moderator   Permission = "moderator"
	Subscriber  Permission = "subscriber"
)

// UserTags is the per-message user record supplied by a chat transport.
type UserTags struct {
	UserID      string
	Username    string
	DisplayName string
	// Badges maps badge name to badge version, e.g. "subscriber" -> 12.
	Badges map[string]int
	Raw    map[string]string
}

// HasBadge reports whether the user carries the named badge.
func (t UserTags) HasBadge(name string) bool {
	if t.Badges == nil {
		return false
	}
	_, ok := t.Badges[name]
	return ok
}

// Name returns the best available display name for the user.
func (t UserTags) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Username
}

// CheckPermissions grants access when required is empty, or when the user
// satisfies at least one of the required permissions. Unrecognized
// permissions never match.
func CheckPermissions(tags UserTags, required []Permission) bool {
	if len(required) == 0 {
		return true
	}
	for _, p := range required {
		switch p {
		case Broadcaster, Moderator, Subscriber:
			if tags.HasBadge(string(p)) {
				return true
			}
		}
	}
	return false
}

// ParsePermissions converts a list of names into permissions. Names are
// trimmed and lowercased; blanks are dropped. Unknown names are kept so
// that they fail closed at check time.
func ParsePermissions(names []string) []Permission {
	perms := make([]Permission, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		perms = append(perms, Permission(n))
	}
	return perms
}
