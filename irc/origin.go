package irc

import "strings"

// Source is a parsed origin: nick!user@host. Server origins have only Nick set (the server name).
type Source struct {
	Nick string
	User string
	Host string
}

// ParseOrigin splits an origin string. Missing parts are left empty; a leading ':' is ignored.
func ParseOrigin(origin string) Source {
	origin = strings.TrimPrefix(origin, ":")
	var s Source
	rest := origin
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		s.Host = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '!'); i >= 0 {
		s.User = rest[i+1:]
		rest = rest[:i]
	}
	s.Nick = rest
	return s
}

// String renders nick!user@host. This is the normalized form rules are matched against.
func (s Source) String() string {
	return s.Nick + "!" + s.User + "@" + s.Host
}

// NickOf returns the nick portion of an origin.
func NickOf(origin string) string {
	return ParseOrigin(origin).Nick
}
