// Package redis keeps authenticator states in Redis so that several auth
// instances can share in-flight authorization requests.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultKeyPrefix    = "gatehouse:state:"
)

type Config struct {
	Addr     string
	Password string
	DB       int

	KeyPrefix string
	// TTL bounds how long a state survives unredeemed. Redis expiry replaces
	// the housekeeping sweep for this backend.
	TTL time.Duration
}

// States implements store.States on Redis.
type States struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

var (
	_ store.States        = (*States)(nil)
	_ store.StateRestorer = (*States)(nil)
)

type storedState struct {
	ClientID      string   `json:"client_id"`
	Authenticator string   `json:"authenticator"`
	Scopes        []string `json:"scopes"`
	ClientState   string   `json:"client_state,omitempty"`
	RedirectURI   string   `json:"redirect_uri"`
	CreatedAt     int64    `json:"created_at"` // unix millis
}

// NewStates connects to Redis and verifies the connection.
func NewStates(ctx context.Context, cfg Config) (*States, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}

	return newStates(client, cfg), nil
}

func newStates(client goredis.UniversalClient, cfg Config) *States {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &States{client: client, prefix: prefix, ttl: ttl}
}

func (s *States) key(id idx.SecureID) string { return s.prefix + id.String() }

func (s *States) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *States) Close() error { return s.client.Close() }

func (s *States) CreateState(ctx context.Context, st domain.AuthenticatorState) error {
	data, err := json.Marshal(storedState{
		ClientID:      st.ClientID,
		Authenticator: st.Authenticator,
		Scopes:        slices.Clone(st.Scopes),
		ClientState:   st.ClientState,
		RedirectURI:   st.RedirectURI,
		CreatedAt:     st.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal state: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(st.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: store state: %w", err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// TakeState uses GETDEL so concurrent callbacks for the same id cannot both
// receive the state.
func (s *States) TakeState(ctx context.Context, id idx.SecureID) (domain.AuthenticatorState, error) {
	data, err := s.client.GetDel(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.AuthenticatorState{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AuthenticatorState{}, fmt.Errorf("redis: take state: %w", err)
	}

	var stored storedState
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.AuthenticatorState{}, fmt.Errorf("redis: unmarshal state: %w", err)
	}

	return domain.AuthenticatorState{
		ID:            id,
		ClientID:      stored.ClientID,
		Authenticator: stored.Authenticator,
		Scopes:        stored.Scopes,
		ClientState:   stored.ClientState,
		RedirectURI:   stored.RedirectURI,
		CreatedAt:     time.UnixMilli(stored.CreatedAt).UTC(),
	}, nil
}

// RestoreState re-creates a taken state. GETDEL has no rollback, so a
// failed callback puts the state back itself.
func (s *States) RestoreState(ctx context.Context, st domain.AuthenticatorState) error {
	return s.CreateState(ctx, st)
}

func (s *States) StateExists(ctx context.Context, id idx.SecureID) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: state exists: %w", err)
	}
	return n > 0, nil
}

// DeleteStatesBefore is a no-op; keys expire on their own.
func (s *States) DeleteStatesBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}
