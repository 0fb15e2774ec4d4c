package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

// ResolveScopes parses a space separated scope request. Every name must be
// in available, otherwise the whole request fails with invalid_scope. An
// empty request resolves to no scopes.
func ResolveScopes(requested string, available []string) ([]string, error) {
	names := strings.Fields(requested)
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !slices.Contains(available, name) {
			return nil, authsdk.ErrInvalidScope.WithDescription(fmt.Sprintf("unknown scope %q", name))
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// NarrowScopes drops every requested scope the role does not grant. It
// never adds scopes.
func NarrowScopes(requested []string, role domain.Role) []string {
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if role.Grants(s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if slices.Contains(b, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
