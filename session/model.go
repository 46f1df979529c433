package session

import "time"

// Identity is the subject a refresh session is issued for.
type Identity struct {
	UserID      string
	DisplayName string
	Roles       []string
}

// Session is a stored refresh session.
//
// Session values returned by the Store are copies; mutating them has no
// effect on what is stored.
type Session struct {
	Handle      string
	UserID      string
	DisplayName string
	Roles       []string

	// DeviceBound is false when the session was issued without a
	// fingerprint input; such sessions skip the fingerprint check.
	DeviceBound       bool
	DeviceFingerprint [32]byte

	IssuedAt  int64
	ExpiresAt int64
}

// Identity returns the subject the session was issued for.
func (s *Session) Identity() Identity {
	roles := make([]string, len(s.Roles))
	copy(roles, s.Roles)
	return Identity{UserID: s.UserID, DisplayName: s.DisplayName, Roles: roles}
}

// IssuedAtTime converts IssuedAt to a time.Time.
func (s *Session) IssuedAtTime() time.Time {
	return time.Unix(s.IssuedAt, 0)
}

// normalizeRoles drops empty and repeated roles, keeping first-seen order.
func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
