package authenticator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// FindOrCreateIdentity returns the identity for (typ, remoteID). The first
// login creates a user in app with the application's default role. Calling
// it again for the same pair returns the same identity.
func FindOrCreateIdentity(
	ctx context.Context,
	st store.Store,
	app domain.Application,
	typ, remoteID string,
	claims map[string]string,
) (domain.UserIdentity, error) {
	ident, err := st.Identities().GetIdentity(ctx, typ, remoteID)
	switch {
	case err == nil:
		user, err := st.Users().GetUserByID(ctx, ident.UserID)
		if err != nil {
			return domain.UserIdentity{}, fmt.Errorf("load identity user: %w", err)
		}
		if user.ApplicationID != app.ID {
			return domain.UserIdentity{}, ErrForeignIdentity
		}
		return ident, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.UserIdentity{}, err
	}

	if app.DefaultRoleID == "" {
		return domain.UserIdentity{}, fmt.Errorf("application %s has no default role", app.ID)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:            idx.New().String(),
		ApplicationID: app.ID,
		RoleID:        app.DefaultRoleID,
		CreatedAt:     now,
	}
	if err := st.Users().CreateUser(ctx, user); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("create user: %w", err)
	}

	ident = domain.UserIdentity{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Type:      typ,
		RemoteID:  remoteID,
		Claims:    maps.Clone(claims),
		CreatedAt: now,
	}
	if err := st.Identities().CreateIdentity(ctx, ident); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("create identity: %w", err)
	}

	slogx.FromContext(ctx).Info("user created on first login",
		"application_id", app.ID,
		"user_id", user.ID,
		"identity_type", typ,
	)
	return ident, nil
}
