// Package boltstore provides a BBolt-backed credential store that survives restarts.
package boltstore

import (
	"fmt"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

var (
	credentialsBucket = []byte("credentials")
	metaBucket        = []byte("meta")
	saltKey           = []byte("salt")
)

// Store implements credentials.Store backed by a BBolt database.
type Store struct {
	db     *bbolt.DB
	sealer *sealer // nil when values are stored in the clear
}

var _ credentials.Store = (*Store)(nil)

type Option func(*options)

type options struct {
	passphrase string
}

// WithPassphrase seals every stored value with a key derived from passphrase.
// An empty passphrase leaves sealing disabled.
func WithPassphrase(passphrase string) Option {
	return func(o *options) {
		o.passphrase = passphrase
	}
}

// New returns a Store backed by the given BBolt database.
func New(db *bbolt.DB, opts ...Option) (*Store, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{db: db}
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(credentialsBucket); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if o.passphrase == "" {
			return nil
		}
		salt := meta.Get(saltKey)
		if salt == nil {
			if salt, err = newSalt(); err != nil {
				return err
			}
			if err := meta.Put(saltKey, salt); err != nil {
				return err
			}
		}
		s.sealer = newSealer(o.passphrase, salt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("initialising credential buckets: %w", err)
	}
	return s, nil
}

// Open opens a BBolt database at the given path and returns a new Store.
func Open(path string, boltOptions *bbolt.Options, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0600, boltOptions)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(realm credentials.Realm, kind credentials.Kind) (string, bool) {
	key, err := credentials.StorageKey(realm, kind)
	if err != nil {
		return "", false
	}

	var value string
	var found bool
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(credentialsBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		plain, err := s.open(data)
		if err != nil {
			return err
		}
		value, found = string(plain), true
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Credential read failed")
		return "", false
	}
	return value, found
}

func (s *Store) Set(realm credentials.Realm, kind credentials.Kind, value string) error {
	key, err := credentials.StorageKey(realm, kind)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.put(tx.Bucket(credentialsBucket), key, value)
	})
}

func (s *Store) Clear(realm credentials.Realm, kind credentials.Kind) error {
	key, err := credentials.StorageKey(realm, kind)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(credentialsBucket).Delete([]byte(key))
	})
}

func (s *Store) SetPair(realm credentials.Realm, pair credentials.Pair) error {
	accessKey, err := credentials.StorageKey(realm, credentials.Access)
	if err != nil {
		return err
	}
	refreshKey, _ := credentials.StorageKey(realm, credentials.Refresh)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucket)
		if err := s.put(b, accessKey, pair.Access); err != nil {
			return err
		}
		return s.put(b, refreshKey, pair.Refresh)
	})
}

func (s *Store) ClearRealm(realm credentials.Realm) error {
	if _, err := credentials.StorageKey(realm, credentials.Access); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucket)
		for _, kind := range credentials.Kinds {
			key, _ := credentials.StorageKey(realm, kind)
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// put writes value under key; the empty string deletes the key.
func (s *Store) put(b *bbolt.Bucket, key, value string) error {
	if value == "" {
		return b.Delete([]byte(key))
	}
	data, err := s.seal([]byte(value))
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	if s.sealer == nil {
		return plain, nil
	}
	return s.sealer.seal(plain)
}

func (s *Store) open(data []byte) ([]byte, error) {
	if s.sealer == nil {
		// bbolt byte slices are only valid inside the transaction
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return s.sealer.open(data)
}
