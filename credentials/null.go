package credentials

// Null is the store used when no persistent storage exists (for example while
// rendering server side). Every read misses and every write is dropped.
type Null struct{}

var _ Store = Null{}

func (Null) Get(Realm, Kind) (string, bool) { return "", false }
func (Null) Set(Realm, Kind, string) error { return nil }
func (Null) Clear(Realm, Kind) error { return nil }
func (Null) SetPair(Realm, Pair) error { return nil }
func (Null) ClearRealm(Realm) error { return nil }
