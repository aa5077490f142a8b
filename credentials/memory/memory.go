package memory

import (
	"sync"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
)

var _ credentials.Store = (*Store)(nil)

// Store is a thread-safe in-memory credential store. Values live as long as the process.
type Store struct {
	values map[string]string // storage key -> value
	lock   sync.RWMutex
}

func New() *Store {
	return &Store{
		values: make(map[string]string),
	}
}

func (s *Store) Get(realm credentials.Realm, kind credentials.Kind) (string, bool) {
	key, err := credentials.StorageKey(realm, kind)
	if err != nil {
		return "", false
	}

	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(realm credentials.Realm, kind credentials.Kind, value string) error {
	key, err := credentials.StorageKey(realm, kind)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.put(key, value)
	return nil
}

func (s *Store) Clear(realm credentials.Realm, kind credentials.Kind) error {
	key, err := credentials.StorageKey(realm, kind)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.values, key)
	return nil
}

func (s *Store) SetPair(realm credentials.Realm, pair credentials.Pair) error {
	accessKey, err := credentials.StorageKey(realm, credentials.Access)
	if err != nil {
		return err
	}
	refreshKey, _ := credentials.StorageKey(realm, credentials.Refresh)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.put(accessKey, pair.Access)
	s.put(refreshKey, pair.Refresh)
	return nil
}

func (s *Store) ClearRealm(realm credentials.Realm) error {
	if !realm.Valid() {
		_, err := credentials.StorageKey(realm, credentials.Access)
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	for _, kind := range credentials.Kinds {
		key, _ := credentials.StorageKey(realm, kind)
		delete(s.values, key)
	}
	return nil
}

// Keys returns the storage keys currently holding a value
func (s *Store) Keys() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// put stores value under key, treating the empty string as removal. Callers hold the lock.
func (s *Store) put(key, value string) {
	if value == "" {
		delete(s.values, key)
		return
	}
	s.values[key] = value
}
