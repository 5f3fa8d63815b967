package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lfm-globe/globe/store"
)

// ErrInvalidToken covers every way a redemption can lose: the token
// expired, was never issued, does not match, or was already consumed by
// a concurrent request.
var ErrInvalidToken = errors.New("invalid or expired location token")

// Service issues and redeems one-time location-change authorizations.
type Service struct {
	store store.Store
	ttl   time.Duration
}

func NewService(s store.Store, ttl time.Duration) *Service {
	return &Service{store: s, ttl: ttl}
}

// Issue generates a fresh token for username and stores it with the
// configured expiry, replacing any token still outstanding. The
// returned secret is what gets handed to the client.
func (s *Service) Issue(ctx context.Context, username string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := s.store.SetWithTTL(ctx, store.TokenKey(username), secret, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store token for %s: %w", username, err)
	}
	return secret, nil
}

// Redeem consumes the outstanding token for username. The counted
// delete is the linearization point: under concurrent redemptions of
// the same token, exactly one caller sees the delete succeed and every
// other caller gets ErrInvalidToken.
func (s *Service) Redeem(ctx context.Context, username, presented string) error {
	stored, err := s.store.Get(ctx, store.TokenKey(username))
	if err != nil {
		return fmt.Errorf("failed to read token for %s: %w", username, err)
	}
	if stored == "" || stored != presented {
		return ErrInvalidToken
	}

	deleted, err := s.store.ConditionalDelete(ctx, store.TokenKey(username))
	if err != nil {
		return fmt.Errorf("failed to delete token for %s: %w", username, err)
	}
	if !deleted {
		// Lost the race to a concurrent redeemer.
		return ErrInvalidToken
	}
	return nil
}
