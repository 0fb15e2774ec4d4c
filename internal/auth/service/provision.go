package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

var (
	ErrAlreadyProvisioned = errors.New("store already has applications")
	ErrInvalidSeed        = errors.New("invalid seed")
)

// Seed is the YAML document loaded by ProvisionService.
type Seed struct {
	Applications []SeedApplication `yaml:"applications"`
}

type SeedApplication struct {
	Name        string       `yaml:"name"`
	Scopes      []string     `yaml:"scopes"`
	DefaultRole string       `yaml:"default_role"`
	Roles       []SeedRole   `yaml:"roles"`
	Clients     []SeedClient `yaml:"clients"`
	Users       []SeedUser   `yaml:"users"`
}

type SeedRole struct {
	Name   string   `yaml:"name"`
	Scopes []string `yaml:"scopes"`
}

type SeedClient struct {
	ID             string              `yaml:"id"` // generated when empty
	Name           string              `yaml:"name"`
	Type           domain.ClientType   `yaml:"type"`
	Secret         string              `yaml:"secret"`
	GenerateSecret bool                `yaml:"generate_secret"`
	RedirectURIs   []string            `yaml:"redirect_uris"`
	ReferrerURIs   []string            `yaml:"referrer_uris"`
	Scopes         []string            `yaml:"scopes"`
	CodeTTL        time.Duration       `yaml:"code_ttl"`
	AccessTTL      time.Duration       `yaml:"access_ttl"`
	RefreshTTL     time.Duration       `yaml:"refresh_ttl"`
	Authenticators []SeedAuthenticator `yaml:"authenticators"`
}

type SeedAuthenticator struct {
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// ProvisionedClient reports a created client. Secret is only set when it
// was generated.
type ProvisionedClient struct {
	Application string
	Name        string
	ID          string
	Secret      string
}

// ProvisionService populates an empty store from a seed file.
type ProvisionService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSeed, fmt.Sprintf(format, args...))
	}

	for _, app := range s.Applications {
		if app.Name == "" {
			return invalid("application without name")
		}

		roles := make([]string, 0, len(app.Roles))
		for _, r := range app.Roles {
			if slices.Contains(roles, r.Name) {
				return invalid("application %s: duplicate role %q", app.Name, r.Name)
			}
			for _, sc := range r.Scopes {
				if !slices.Contains(app.Scopes, sc) {
					return invalid("application %s: role %s grants unknown scope %q", app.Name, r.Name, sc)
				}
			}
			roles = append(roles, r.Name)
		}
		if app.DefaultRole != "" && !slices.Contains(roles, app.DefaultRole) {
			return invalid("application %s: default role %q is not defined", app.Name, app.DefaultRole)
		}

		for _, c := range app.Clients {
			if !c.Type.Valid() {
				return invalid("client %s: unknown type %q", c.Name, c.Type)
			}
			if c.Type == domain.ClientCredentials && c.Secret == "" && !c.GenerateSecret {
				return invalid("client %s: ClientCredentials clients need a secret", c.Name)
			}
			for _, sc := range c.Scopes {
				if !slices.Contains(app.Scopes, sc) {
					return invalid("client %s: unknown scope %q", c.Name, sc)
				}
			}
		}

		for _, u := range app.Users {
			if u.Username == "" || u.Password == "" {
				return invalid("application %s: users need username and password", app.Name)
			}
			if !slices.Contains(roles, u.Role) {
				return invalid("user %s: role %q is not defined", u.Username, u.Role)
			}
		}
	}
	return nil
}

// LoadSeed parses r and provisions it in one transaction. It refuses to run
// against a store that already has applications.
func (s *ProvisionService) LoadSeed(ctx context.Context, r io.Reader) ([]ProvisionedClient, error) {
	seed, err := ParseSeed(r)
	if err != nil {
		return nil, err
	}
	return s.Provision(ctx, seed)
}

func (s *ProvisionService) Provision(ctx context.Context, seed *Seed) ([]ProvisionedClient, error) {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Applications().IsEmpty(ctx)
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, ErrAlreadyProvisioned
	}

	var out []ProvisionedClient
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		out = out[:0]
		for _, app := range seed.Applications {
			created, err := s.provisionApplication(ctx, tx, app)
			if err != nil {
				return fmt.Errorf("application %s: %w", app.Name, err)
			}
			out = append(out, created...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range out {
		attrs := []any{
			slog.String("application", c.Application),
			slog.String("client", c.Name),
			slog.String("client_id", c.ID),
		}
		if c.Secret != "" {
			attrs = append(attrs, slog.String("client_secret", c.Secret))
		}
		l.Info("client provisioned", attrs...)
	}
	return out, nil
}

func (s *ProvisionService) provisionApplication(ctx context.Context, tx store.Tx, sa SeedApplication) ([]ProvisionedClient, error) {
	now := time.Now().UTC()
	app := domain.Application{
		ID:        idx.New().String(),
		Name:      sa.Name,
		Scopes:    sa.Scopes,
		CreatedAt: now,
	}
	if err := tx.Applications().CreateApplication(ctx, app); err != nil {
		return nil, err
	}

	roleIDs := make(map[string]string, len(sa.Roles))
	for _, sr := range sa.Roles {
		role := domain.Role{
			ID:            idx.New().String(),
			ApplicationID: app.ID,
			Name:          sr.Name,
			Scopes:        sr.Scopes,
			CreatedAt:     now,
		}
		if err := tx.Roles().CreateRole(ctx, role); err != nil {
			return nil, fmt.Errorf("role %s: %w", sr.Name, err)
		}
		roleIDs[sr.Name] = role.ID
	}
	if sa.DefaultRole != "" {
		if err := tx.Applications().SetDefaultRole(ctx, app.ID, roleIDs[sa.DefaultRole]); err != nil {
			return nil, err
		}
	}

	out := make([]ProvisionedClient, 0, len(sa.Clients))
	for _, sc := range sa.Clients {
		pc, err := s.provisionClient(ctx, tx, app, sc, now)
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", sc.Name, err)
		}
		out = append(out, pc)
	}

	for _, su := range sa.Users {
		if err := s.provisionUser(ctx, tx, app, roleIDs[su.Role], su, now); err != nil {
			return nil, fmt.Errorf("user %s: %w", su.Username, err)
		}
	}
	return out, nil
}

func (s *ProvisionService) provisionClient(ctx context.Context, tx store.Tx, app domain.Application, sc SeedClient, now time.Time) (ProvisionedClient, error) {
	pc := ProvisionedClient{Application: app.Name, Name: sc.Name, ID: sc.ID}
	if pc.ID == "" {
		pc.ID = idx.New().String()
	}

	secret := sc.Secret
	if secret == "" && sc.GenerateSecret {
		generated, err := cryptox.GenerateSecret(cryptox.SecretSize256)
		if err != nil {
			return ProvisionedClient{}, err
		}
		secret = generated
		pc.Secret = generated
	}

	var secretHash string
	if secret != "" {
		h, err := s.Hasher.Hash(secret)
		if err != nil {
			return ProvisionedClient{}, fmt.Errorf("hash secret: %w", err)
		}
		secretHash = h
	}

	client := domain.Client{
		ID:            pc.ID,
		ApplicationID: app.ID,
		Name:          sc.Name,
		Type:          sc.Type,
		SecretHash:    secretHash,
		RedirectURIs:  sc.RedirectURIs,
		ReferrerURIs:  sc.ReferrerURIs,
		Scopes:        sc.Scopes,
		Config: domain.ClientConfig{
			AuthorizationCodeTTL: sc.CodeTTL,
			AccessTokenTTL:       sc.AccessTTL,
			RefreshTokenTTL:      sc.RefreshTTL,
		},
		CreatedAt: now,
	}
	for _, a := range sc.Authenticators {
		client.Authenticators = append(client.Authenticators, domain.ClientAuthenticator{
			ID:       idx.New().String(),
			ClientID: client.ID,
			Type:     a.Type,
			Config:   a.Config,
		})
	}

	if err := tx.Clients().CreateClient(ctx, client); err != nil {
		return ProvisionedClient{}, err
	}
	return pc, nil
}

func (s *ProvisionService) provisionUser(ctx context.Context, tx store.Tx, app domain.Application, roleID string, su SeedUser, now time.Time) error {
	hash, err := s.Hasher.Hash(su.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{ID: idx.New().String(), ApplicationID: app.ID, RoleID: roleID, CreatedAt: now}
	if err := tx.Users().CreateUser(ctx, user); err != nil {
		return err
	}
	return tx.Identities().CreateIdentity(ctx, domain.UserIdentity{
		ID:           idx.New().String(),
		UserID:       user.ID,
		Type:         domain.IdentityPassword,
		RemoteID:     su.Username,
		PasswordHash: hash,
		CreatedAt:    now,
	})
}
