package domain

import (
	"slices"
	"time"
)

// Application groups clients, roles and users under one scope vocabulary.
type Application struct {
	ID            string
	Name          string
	DefaultRoleID string   // role given to users created on first login
	Scopes        []string // every scope any client of this application may request
	CreatedAt     time.Time
}

func (a Application) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope)
}
