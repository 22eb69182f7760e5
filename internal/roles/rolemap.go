package roles

import (
	"sort"
	"strings"
)

// Role says why a user hears about a task change.
type Role string

const (
	Creator      Role = "Creator"
	Assignee     Role = "Assignee"
	ProductOwner Role = "product-owner"
)

func (r Role) rank() int {
	switch r {
	case Creator:
		return 0
	case Assignee:
		return 1
	case ProductOwner:
		return 2
	}
	return 3
}

// RoleMap maps each interested user to the roles they hold. A user appears
// once no matter how many roles they have; iteration follows insertion order.
type RoleMap struct {
	order []string
	roles map[string][]Role
}

// NewRoleMap returns an empty map.
func NewRoleMap() *RoleMap {
	return &RoleMap{roles: make(map[string][]Role)}
}

// Add merges role into the set held by userID. Blank ids are ignored.
func (m *RoleMap) Add(userID string, role Role) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	held, ok := m.roles[userID]
	if !ok {
		m.order = append(m.order, userID)
	}
	for _, r := range held {
		if r == role {
			return
		}
	}
	m.roles[userID] = append(held, role)
}

// Remove drops a user entirely.
func (m *RoleMap) Remove(userID string) {
	if _, ok := m.roles[userID]; !ok {
		return
	}
	delete(m.roles, userID)
	for i, id := range m.order {
		if id == userID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Roles returns the roles held by userID in canonical order.
func (m *RoleMap) Roles(userID string) []Role {
	held := m.roles[userID]
	out := make([]Role, len(held))
	copy(out, held)
	sort.SliceStable(out, func(i, j int) bool { return out[i].rank() < out[j].rank() })
	return out
}

// Has reports whether userID is a recipient.
func (m *RoleMap) Has(userID string) bool {
	_, ok := m.roles[userID]
	return ok
}

// UserIDs returns the recipients in insertion order.
func (m *RoleMap) UserIDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *RoleMap) Len() int { return len(m.order) }

// Label renders the roles of userID, e.g. "Creator and Assignee".
func (m *RoleMap) Label(userID string) string {
	return FormatLabel(m.Roles(userID))
}

// FormatLabel joins roles as "A", "A and B" or "A, B and C".
func FormatLabel(roles []Role) string {
	switch len(roles) {
	case 0:
		return ""
	case 1:
		return string(roles[0])
	}
	parts := make([]string, len(roles)-1)
	for i, r := range roles[:len(roles)-1] {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ") + " and " + string(roles[len(roles)-1])
}
