package idx_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Exists(ctx context.Context, id idx.SecureID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func TestSecureIDRoundTrip(t *testing.T) {
	t.Parallel()

	gen := idx.NewGenerator(rand.Reader)
	for range 256 {
		id, err := gen.Next()
		require.NoError(t, err)

		s := idx.ToString(&id)
		require.Len(t, s, idx.SecureIDLength)
		require.Equal(t, strings.ToLower(s), s)

		back, err := idx.FromString(s)
		require.NoError(t, err)
		require.NotNil(t, back)
		require.Equal(t, id, *back)
	}
}

func TestSecureIDTopBitCleared(t *testing.T) {
	t.Parallel()

	// All ones from the source still produce a non-negative id.
	gen := idx.NewGenerator(bytes.NewReader(bytes.Repeat([]byte{0xff}, idx.SecureIDSize)))
	id, err := gen.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x7f), id[0])
	require.Equal(t, "7fffffffffffffffffffffffffffffff", id.String())
}

func TestSecureIDZeroPadding(t *testing.T) {
	t.Parallel()

	gen := idx.NewGenerator(bytes.NewReader(make([]byte, idx.SecureIDSize)))
	id, err := gen.Next()
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("0", 32), idx.ToString(&id))

	short, err := idx.FromString("ff")
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("0", 30)+"ff", short.String())
}

func TestFromString(t *testing.T) {
	t.Parallel()

	t.Run("empty passes through as nil", func(t *testing.T) {
		id, err := idx.FromString("")
		require.NoError(t, err)
		require.Nil(t, id)
		require.Equal(t, "", idx.ToString(nil))
	})

	t.Run("non hex is malformed", func(t *testing.T) {
		_, err := idx.FromString("zz")
		var malformed *idx.MalformedIDError
		require.ErrorAs(t, err, &malformed)
		require.Equal(t, "zz", malformed.Input)
	})

	t.Run("too long is malformed", func(t *testing.T) {
		_, err := idx.FromString(strings.Repeat("1", 33))
		var malformed *idx.MalformedIDError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("sign bit set is malformed", func(t *testing.T) {
		_, err := idx.FromString("8" + strings.Repeat("0", 31))
		var malformed *idx.MalformedIDError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("upper case is accepted", func(t *testing.T) {
		id, err := idx.FromString("0ABCDEF0" + strings.Repeat("0", 24))
		require.NoError(t, err)
		require.Equal(t, "0abcdef0"+strings.Repeat("0", 24), id.String())
	})
}

func TestNextUniqueRetriesUntilFree(t *testing.T) {
	t.Parallel()

	checker := &mockChecker{}
	checker.On("Exists", mock.Anything, mock.Anything).Return(true, nil).Twice()
	checker.On("Exists", mock.Anything, mock.Anything).Return(false, nil).Once()

	gen := idx.NewGenerator(rand.Reader)
	id, err := gen.NextUnique(context.Background(), checker)
	require.NoError(t, err)
	require.NotEqual(t, idx.SecureID{}, id)

	checker.AssertNumberOfCalls(t, "Exists", 3)
	checker.AssertExpectations(t)
}

func TestNextUniquePropagatesCheckerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("store down")
	checker := idx.ExistenceFunc(func(context.Context, idx.SecureID) (bool, error) {
		return false, boom
	})

	_, err := idx.NewGenerator(rand.Reader).NextUnique(context.Background(), checker)
	require.ErrorIs(t, err, boom)
}

func TestNextFailsOnShortRandomSource(t *testing.T) {
	t.Parallel()

	_, err := idx.NewGenerator(bytes.NewReader([]byte{1, 2, 3})).Next()
	require.Error(t, err)
}
