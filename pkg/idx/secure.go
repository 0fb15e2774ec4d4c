package idx

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// SecureIDSize is the raw width of a SecureID in bytes.
const SecureIDSize = 16

// SecureIDLength is the width of the canonical hex form.
const SecureIDLength = SecureIDSize * 2

// SecureID is a 128-bit identifier with its most significant bit cleared,
// giving 127 bits of entropy that always read as a non-negative value.
type SecureID [SecureIDSize]byte

// String returns the canonical 32 character lower-case hex form.
func (id SecureID) String() string {
	return hex.EncodeToString(id[:])
}

// MalformedIDError is returned when a string cannot be decoded as a SecureID.
type MalformedIDError struct {
	Input  string
	Reason string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("idx: malformed secure id %q: %s", e.Input, e.Reason)
}

// ToString encodes id. A nil id encodes as the empty string.
func ToString(id *SecureID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// FromString decodes the canonical hex form. The empty string decodes to
// nil without error. Shorter input is read as a left-truncated number and
// zero padded.
func FromString(s string) (*SecureID, error) {
	if s == "" {
		return nil, nil
	}
	if len(s) > SecureIDLength {
		return nil, &MalformedIDError{Input: s, Reason: "too long"}
	}

	padded := strings.Repeat("0", SecureIDLength-len(s)) + strings.ToLower(s)
	raw, err := hex.DecodeString(padded)
	if err != nil {
		return nil, &MalformedIDError{Input: s, Reason: "not hexadecimal"}
	}
	if raw[0]&0x80 != 0 {
		return nil, &MalformedIDError{Input: s, Reason: "sign bit set"}
	}

	var id SecureID
	copy(id[:], raw)
	return &id, nil
}

// ExistenceChecker reports whether an id is already taken in some store.
type ExistenceChecker interface {
	Exists(ctx context.Context, id SecureID) (bool, error)
}

// ExistenceFunc adapts a function to ExistenceChecker.
type ExistenceFunc func(ctx context.Context, id SecureID) (bool, error)

func (f ExistenceFunc) Exists(ctx context.Context, id SecureID) (bool, error) {
	return f(ctx, id)
}

// Generator produces SecureIDs from an injected random source. The source
// is expected to be cryptographically strong in production (crypto/rand).
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from r.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Next returns a fresh id. It does not check for collisions.
func (g *Generator) Next() (SecureID, error) {
	var id SecureID
	if _, err := io.ReadFull(g.rand, id[:]); err != nil {
		return SecureID{}, fmt.Errorf("idx: read random: %w", err)
	}
	id[0] &= 0x7f
	return id, nil
}

// NextUnique keeps generating ids until checker reports one as unused.
// There is no retry limit; at 127 bits a collision is negligible.
func (g *Generator) NextUnique(ctx context.Context, checker ExistenceChecker) (SecureID, error) {
	for {
		id, err := g.Next()
		if err != nil {
			return SecureID{}, err
		}

		taken, err := checker.Exists(ctx, id)
		if err != nil {
			return SecureID{}, err
		}
		if !taken {
			return id, nil
		}
	}
}
