package domain

import "time"

type User struct {
	ID            string
	ApplicationID string
	RoleID        string
	CreatedAt     time.Time
}

// Identity types. The type of an identity is the authenticator that created it.
const (
	IdentityPassword = "password"
	IdentityTest     = "test"
	IdentityOIDC     = "oidc"
)

// UserIdentity links a user to one external or local credential. The pair
// (Type, RemoteID) is unique.
type UserIdentity struct {
	ID           string
	UserID       string
	Type         string
	RemoteID     string // username, upstream subject, ...
	PasswordHash string // password identities only
	Claims       map[string]string
	CreatedAt    time.Time
}
