// Package authenticator holds the identity providers a client can delegate
// user authentication to, and the registry the authorization flow looks
// them up in.
package authenticator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

var (
	ErrUnknownAuthenticator = errors.New("authenticator: unknown type")
	ErrInvalidCredentials   = errors.New("authenticator: invalid credentials")
	// ErrAccessDenied means the user declined at the identity provider.
	ErrAccessDenied = errors.New("authenticator: access denied by user")
	// ErrForeignIdentity means the identity exists but belongs to a user of
	// another application.
	ErrForeignIdentity = errors.New("authenticator: identity belongs to another application")
)

// ThirdPartyError wraps a failure talking to an upstream identity provider.
type ThirdPartyError struct {
	Provider string
	Err      error
}

func (e *ThirdPartyError) Error() string {
	return fmt.Sprintf("authenticator %s: upstream: %v", e.Provider, e.Err)
}

func (e *ThirdPartyError) Unwrap() error { return e.Err }

// Request carries what Authenticate needs once the user agent is back on
// the callback endpoint.
type Request struct {
	Client      domain.Client
	Application domain.Application
	Config      domain.ClientAuthenticator
	Params      url.Values // callback query and form values
	CallbackURL *url.URL   // callback endpoint without query
}

// Authenticator is an identity provider.
//
// Delegate returns the handler that starts authentication for the user
// agent. It must eventually send the user agent to callback, which already
// carries the state parameter. Authenticate runs on the callback request and
// resolves the user identity; it may create users through st, which is the
// callback's transaction.
type Authenticator interface {
	Delegate(ctx context.Context, cfg domain.ClientAuthenticator, callback *url.URL) (http.Handler, error)
	Authenticate(ctx context.Context, st store.Store, req Request) (domain.UserIdentity, error)
}

// Registry maps authenticator type names to implementations.
type Registry struct {
	mu    sync.RWMutex
	byTyp map[string]Authenticator
}

func NewRegistry() *Registry {
	return &Registry{byTyp: make(map[string]Authenticator)}
}

// Register adds or replaces the authenticator for typ.
func (r *Registry) Register(typ string, a Authenticator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTyp[typ] = a
}

func (r *Registry) Lookup(typ string) (Authenticator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byTyp[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthenticator, typ)
	}
	return a, nil
}

// Types lists registered type names in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byTyp))
	for k := range r.byTyp {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
