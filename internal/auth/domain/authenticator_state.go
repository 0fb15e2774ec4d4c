package domain

import (
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

// AuthenticatorState is the parked /authorize request while the user is away
// at an identity provider. It can be redeemed once.
type AuthenticatorState struct {
	ID            idx.SecureID
	ClientID      string
	Authenticator string
	Scopes        []string
	ClientState   string // opaque state sent by the client, echoed back
	RedirectURI   string
	CreatedAt     time.Time
}

func (s AuthenticatorState) IsStaleAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}
