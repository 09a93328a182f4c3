// Package otp issues the short numeric codes used for email verification and
// password reset. Codes are only ever stored as digests.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"
)

const (
	minCode = 1000
	maxCode = 9999

	// DefaultResetTTL is how long a password reset code stays valid.
	DefaultResetTTL = 10 * time.Minute
)

// Issuer generates and checks one-time codes.
type Issuer struct {
	pepper   []byte
	resetTTL time.Duration
	random   io.Reader
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithPepper mixes a server-side secret into every digest. Without it codes
// are hashed with plain SHA-256.
func WithPepper(pepper string) Option {
	return func(i *Issuer) { i.pepper = []byte(pepper) }
}

// WithResetTTL overrides DefaultResetTTL.
func WithResetTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.resetTTL = d
		}
	}
}

// WithRandom replaces the crypto/rand source. Tests only.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.random = r }
}

// NewIssuer creates an Issuer.
func NewIssuer(opts ...Option) *Issuer {
	i := &Issuer{resetTTL: DefaultResetTTL, random: rand.Reader}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue returns a uniformly random 4-digit code in [1000, 9999].
func (i *Issuer) Issue() (string, error) {
	n, err := rand.Int(i.random, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+minCode, 10), nil
}

// Hash returns the hex digest stored in place of the code.
func (i *Issuer) Hash(code string) string {
	if len(i.pepper) == 0 {
		sum := sha256.Sum256([]byte(code))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, i.pepper)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether code hashes to digest. The comparison is constant
// time and an empty digest never matches.
func (i *Issuer) Matches(code, digest string) bool {
	if digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(i.Hash(code)), []byte(digest)) == 1
}

// ResetExpiry returns when a reset code issued at now stops being valid.
func (i *Issuer) ResetExpiry(now time.Time) time.Time {
	return now.Add(i.resetTTL)
}
