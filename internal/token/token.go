// Package token mints and verifies public action tokens. A token lets an
// external party (the invoiced client) view, pay or cancel one invoice
// without an account session. PAY and CANCEL tokens are single-use.
package token

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Action scopes a token to exactly one operation.
type Action string

const (
	ActionView   Action = "VIEW"
	ActionPay    Action = "PAY"
	ActionCancel Action = "CANCEL"
)

const markerPrefix = "public_action:"

type claims struct {
	InvoiceID string `json:"invoice_id"`
	Action    string `json:"action"`
	jwt.RegisteredClaims
}

// Service issues signed, expiring, action-scoped tokens and tracks their
// single-use markers in Redis.
type Service struct {
	secret []byte
	client *redis.Client
	ttl    time.Duration
}

// NewService constructs a Service. ttl bounds both the JWT expiry and the
// Redis marker lifetime.
func NewService(secret []byte, client *redis.Client, ttl time.Duration) *Service {
	return &Service{secret: secret, client: client, ttl: ttl}
}

// Mint creates a token bound to one invoice and one action.
func (s *Service) Mint(ctx context.Context, invoiceID uuid.UUID, action Action) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		InvoiceID: invoiceID.String(),
		Action:    string(action),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	if err := s.client.Set(ctx, markerKey(signed), invoiceID.String(), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("token: store marker: %w", err)
	}
	return signed, nil
}

// Verify validates the token signature, expiry and action scope, and returns
// the bound invoice id. Mutating actions (PAY, CANCEL) consume the token's
// marker atomically so a second use fails; VIEW tokens stay valid until
// expiry.
func (s *Service) Verify(ctx context.Context, tokenStr string, action Action) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, shared.ErrTokenInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Action != string(action) {
		return uuid.Nil, shared.ErrTokenInvalid
	}
	invoiceID, err := uuid.Parse(c.InvoiceID)
	if err != nil {
		return uuid.Nil, shared.ErrTokenInvalid
	}

	key := markerKey(tokenStr)
	if action == ActionView {
		exists, err := s.client.Exists(ctx, key).Result()
		if err != nil {
			return uuid.Nil, fmt.Errorf("token: check marker: %w", err)
		}
		if exists == 0 {
			return uuid.Nil, shared.ErrTokenInvalid
		}
		return invoiceID, nil
	}

	// GETDEL consumes the marker in one atomic step.
	if err := s.client.GetDel(ctx, key).Err(); err == redis.Nil {
		return uuid.Nil, shared.ErrTokenInvalid
	} else if err != nil {
		return uuid.Nil, fmt.Errorf("token: consume marker: %w", err)
	}
	return invoiceID, nil
}

// markerKey digests the raw token so signed JWTs are never stored verbatim.
func markerKey(tokenStr string) string {
	sum := blake2b.Sum256([]byte(tokenStr))
	return markerPrefix + hex.EncodeToString(sum[:])
}
