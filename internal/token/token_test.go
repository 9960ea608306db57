package token

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService([]byte("test-secret"), client, time.Hour), mr
}

func TestMintAndVerify(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	invoiceID := uuid.New()

	tok, err := svc.Mint(ctx, invoiceID, ActionPay)
	require.NoError(t, err)

	got, err := svc.Verify(ctx, tok, ActionPay)
	require.NoError(t, err)
	require.Equal(t, invoiceID, got)
}

func TestVerifyRejectsWrongAction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tok, err := svc.Mint(ctx, uuid.New(), ActionCancel)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tok, ActionPay)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestVerifyMutatingTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tok, err := svc.Mint(ctx, uuid.New(), ActionPay)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tok, ActionPay)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tok, ActionPay)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestVerifyViewTokenIsReusable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	invoiceID := uuid.New()

	tok, err := svc.Mint(ctx, invoiceID, ActionView)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := svc.Verify(ctx, tok, ActionView)
		require.NoError(t, err)
		require.Equal(t, invoiceID, got)
	}
}

func TestVerifyRejectsExpiredMarker(t *testing.T) {
	ctx := context.Background()
	svc, mr := newTestService(t)

	tok, err := svc.Mint(ctx, uuid.New(), ActionView)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = svc.Verify(ctx, tok, ActionView)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Verify(ctx, "not-a-token", ActionPay)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	minter := NewService([]byte("secret-a"), client, time.Hour)
	verifier := NewService([]byte("secret-b"), client, time.Hour)

	tok, err := minter.Mint(ctx, uuid.New(), ActionPay)
	require.NoError(t, err)

	_, err = verifier.Verify(ctx, tok, ActionPay)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}
