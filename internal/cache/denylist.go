package cache

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const revokedTokenPrefix = "revoked_token:"

// TokenDenylist records revoked access-token ids until their natural expiry.
type TokenDenylist struct {
	cache Cache
}

func NewTokenDenylist(c Cache) *TokenDenylist {
	return &TokenDenylist{cache: c}
}

func (d *TokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return d.cache.Set(ctx, revokedTokenPrefix+jti, true, ttl)
}

// IsRevoked reports whether jti was revoked. If the shared tier cannot be
// reached the token is treated as live and a warning is logged.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := d.cache.Exists(ctx, revokedTokenPrefix+jti)
	if err != nil {
		log.WithFields(log.Fields{
			"jti":   jti,
			"error": err.Error(),
		}).Warn("token revocation lookup failed")
		return false, nil
	}
	return revoked, nil
}
