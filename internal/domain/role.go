package domain

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a stored role string onto the closed set of roles.
// The second result is false for anything outside that set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	case RoleSystem:
		return RoleSystem, true
	}
	return "", false
}

// DisplayRole returns the role a message is rendered as. Unknown roles
// render as the assistant.
func DisplayRole(s string) Role {
	if r, ok := ParseRole(s); ok {
		return r
	}
	return RoleAssistant
}

func (r Role) String() string { return string(r) }
