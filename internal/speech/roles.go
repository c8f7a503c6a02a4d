package speech

import "sync"

// RoleMapper assigns speaker ids to roles for the lifetime of one session.
// The primary speaker is "self" and every other non-empty id is "partner".
// An event without a speaker id is attributed to "self".
type RoleMapper struct {
	mu      sync.Mutex
	primary string
}

// NewRoleMapper pins the primary speaker up front. Pass "" to let the first
// speaker heard become the primary.
func NewRoleMapper(primary string) *RoleMapper {
	return &RoleMapper{primary: primary}
}

func (m *RoleMapper) Role(speakerID string) Role {
	if speakerID == "" {
		return RoleSelf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primary == "" {
		m.primary = speakerID
	}
	if speakerID == m.primary {
		return RoleSelf
	}
	return RolePartner
}

// Primary returns the speaker id currently treated as "self".
func (m *RoleMapper) Primary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}
