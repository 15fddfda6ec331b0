// Package session keeps the faucet's short-lived server side state: proof
// of work salts bound to recipient addresses, and authenticated API
// sessions bound to user ids.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/fuellabs/go-faucet/chain"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// ErrUnknownSalt is returned when a proof of work references a salt that was
// never issued or has expired.
var ErrUnknownSalt = errors.New("Salt does not exist")

// gcInterval is how often expired entries are swept from the caches.
const gcInterval = 10 * time.Minute

// Salt is the 32 byte challenge issued to a proof of work client.
type Salt [32]byte

// Hex returns the salt as a bare hex string, the form clients hash.
func (s Salt) Hex() string {
	return hex.EncodeToString(s[:])
}

// ParseSalt decodes a bare hex salt string.
func ParseSalt(s string) (Salt, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Salt{}, errors.Wrap(err, "decode salt")
	}
	if len(raw) != 32 {
		return Salt{}, errors.Errorf("salt must be 32 bytes, got %d", len(raw))
	}
	var out Salt
	copy(out[:], raw)
	return out, nil
}

// Store issues proof of work salts and resolves them back to the recipient
// address they were created for. A salt stays stored until its TTL runs
// out, so a failed dispense can be retried with the same solved challenge;
// entries expire with the rate limit window, past which a challenge cannot
// be redeemed anyway.
type Store struct {
	salts *cache.Cache
}

// NewStore returns a salt store whose entries live for the given TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{salts: cache.New(ttl, gcInterval)}
}

// Create issues a fresh random salt bound to the recipient address.
func (s *Store) Create(recipient chain.Address) (Salt, error) {
	var salt Salt
	if _, err := rand.Read(salt[:]); err != nil {
		return Salt{}, errors.Wrap(err, "generate salt")
	}
	s.salts.SetDefault(salt.Hex(), recipient)
	return salt, nil
}

// Recipient resolves a salt back to its address, or ErrUnknownSalt.
func (s *Store) Recipient(salt Salt) (chain.Address, error) {
	v, ok := s.salts.Get(salt.Hex())
	if !ok {
		return chain.Address{}, ErrUnknownSalt
	}
	return v.(chain.Address), nil
}

// AuthStore maps opaque API session tokens to authenticated user ids.
type AuthStore struct {
	sessions *cache.Cache
}

// NewAuthStore returns an auth session store whose entries live for the
// given TTL.
func NewAuthStore(ttl time.Duration) *AuthStore {
	return &AuthStore{sessions: cache.New(ttl, gcInterval)}
}

// Create issues a random session token for the user id.
func (s *AuthStore) Create(userID string) (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", errors.Wrap(err, "generate session token")
	}
	token := hex.EncodeToString(raw[:])
	s.sessions.SetDefault(token, userID)
	return token, nil
}

// User resolves a session token to its user id.
func (s *AuthStore) User(token string) (string, bool) {
	v, ok := s.sessions.Get(token)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Remove invalidates a session token.
func (s *AuthStore) Remove(token string) {
	s.sessions.Delete(token)
}
