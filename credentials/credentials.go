// Package credentials persists the two independent token pairs (end-user and admin)
// and the serialized current-user summary for each realm.
package credentials

import (
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/go-storefront-gateway/internal/errors"
)

// Realm is one of the two independent authentication domains.
type Realm string

const (
	User  Realm = "user"
	Admin Realm = "admin"
)

// Realms lists every realm in a stable order.
var Realms = []Realm{User, Admin}

func (r Realm) Valid() bool {
	return r == User || r == Admin
}

// ParseRealm accepts "user" or "admin", case-insensitively.
func ParseRealm(s string) (Realm, error) {
	r := Realm(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%q: %w", s, apperrors.ErrUnknownRealm)
	}
	return r, nil
}

// Kind identifies which value of a realm is addressed.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
	// Profile is the serialized current-user summary, not a credential
	Profile Kind = "profile"
)

// Kinds lists every kind stored per realm.
var Kinds = []Kind{Access, Refresh, Profile}

// storageKeys maps realm/kind to the durable key names shared with the storefront UI
var storageKeys = map[Realm]map[Kind]string{
	User: {
		Access:  "token",
		Refresh: "refreshToken",
		Profile: "user",
	},
	Admin: {
		Access:  "adminToken",
		Refresh: "adminRefreshToken",
		Profile: "adminUser",
	},
}

// StorageKey returns the persisted key name for realm and kind.
func StorageKey(realm Realm, kind Kind) (string, error) {
	kinds, ok := storageKeys[realm]
	if !ok {
		return "", fmt.Errorf("%q: %w", realm, apperrors.ErrUnknownRealm)
	}
	key, ok := kinds[kind]
	if !ok {
		return "", fmt.Errorf("%q: %w", kind, apperrors.ErrUnknownKind)
	}
	return key, nil
}

// Pair is a realm's access token and optional refresh token.
type Pair struct {
	Access  string
	Refresh string
}

// CanRefresh reports whether the refresh path is available for this pair.
func (p Pair) CanRefresh() bool {
	return p.Refresh != ""
}

// Store is the credential storage contract. Tokens are opaque strings and are never
// validated here. Implementations must be safe for concurrent use; SetPair and
// ClearRealm apply to all of a realm's fields at once.
type Store interface {
	Get(realm Realm, kind Kind) (string, bool)
	Set(realm Realm, kind Kind, value string) error
	Clear(realm Realm, kind Kind) error

	// SetPair writes both tokens of a realm. An empty Refresh removes the stored one.
	SetPair(realm Realm, pair Pair) error
	// ClearRealm removes the realm's tokens and its current-user summary.
	ClearRealm(realm Realm) error
}

// GetPair reads a realm's tokens. ok is false when no access token is stored.
func GetPair(s Store, realm Realm) (Pair, bool) {
	access, ok := s.Get(realm, Access)
	if !ok || access == "" {
		return Pair{}, false
	}
	refresh, _ := s.Get(realm, Refresh)
	return Pair{Access: access, Refresh: refresh}, true
}
