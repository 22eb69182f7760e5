package models

import (
	"time"
)

// User represents a user in the system
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	IsAdmin      bool      `json:"isAdmin" gorm:"column:is_admin;default:false"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// Capability is a permission granted to an actor beyond task ownership.
type Capability string

const (
	CapManageAnyTask Capability = "manage_any_task"
	CapProjectOwner  Capability = "project_owner"
)

// Actor is the user performing an action together with the capabilities
// resolved for the current project.
type Actor struct {
	ID           string
	Name         string
	Capabilities map[Capability]bool
}

// NewActor builds an actor with the given capabilities.
func NewActor(id, name string, caps ...Capability) Actor {
	a := Actor{ID: id, Name: name, Capabilities: make(map[Capability]bool, len(caps))}
	for _, c := range caps {
		a.Capabilities[c] = true
	}
	return a
}

// Has reports whether the actor holds capability c.
func (a Actor) Has(c Capability) bool {
	return a.Capabilities[c]
}

// With returns a copy of the actor with c added.
func (a Actor) With(c Capability) Actor {
	caps := make(map[Capability]bool, len(a.Capabilities)+1)
	for k, v := range a.Capabilities {
		caps[k] = v
	}
	caps[c] = true
	a.Capabilities = caps
	return a
}
