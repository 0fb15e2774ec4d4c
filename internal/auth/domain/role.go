package domain

import (
	"slices"
	"time"
)

type Role struct {
	ID            string
	ApplicationID string
	Name          string
	Scopes        []string
	CreatedAt     time.Time
}

// Grants reports whether holders of the role may be issued scope.
func (r Role) Grants(scope string) bool {
	return slices.Contains(r.Scopes, scope)
}
