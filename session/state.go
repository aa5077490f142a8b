package session

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Kind is the session condition a realm is in.
type Kind int

const (
	Loading Kind = iota
	Authenticated
	Unauthenticated
	// SessionExpired is terminal until the next successful login
	SessionExpired
	// DataLoadError is dismissible and returns to the previous state
	DataLoadError
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case SessionExpired:
		return "sessionExpired"
	case DataLoadError:
		return "dataLoadError"
	default:
		return "unknown"
	}
}

// State is a snapshot of the controller. Principal is set only when
// authenticated and Message only for DataLoadError.
type State struct {
	Kind      Kind
	Principal *Principal
	Message   string
}

// Principal is the identity returned by the whoami endpoints. Beyond presence the
// fields are informational.
type Principal struct {
	ID    string
	Role  string
	Name  string
	Email string
	// Raw is the object as the backend sent it, persisted as the current-user summary
	Raw json.RawMessage
}

// principalContainers are searched in order for the identity object
var principalContainers = []string{"data.user", "data.admin", "user", "admin", "data", ""}

// ParsePrincipal finds the identity object in a whoami or login reply. Objects with
// neither an id nor an email are not identities.
func ParsePrincipal(body []byte) (Principal, bool) {
	if !gjson.ValidBytes(body) {
		return Principal{}, false
	}
	root := gjson.ParseBytes(body)
	for _, container := range principalContainers {
		obj := root
		if container != "" {
			obj = root.Get(container)
		}
		if !obj.IsObject() {
			continue
		}
		p := Principal{
			ID:    first(obj, "id", "_id", "userId"),
			Role:  first(obj, "role"),
			Name:  first(obj, "name", "fullName", "username"),
			Email: first(obj, "email"),
			Raw:   json.RawMessage(obj.Raw),
		}
		if p.ID == "" && p.Email == "" {
			continue
		}
		return p, true
	}
	return Principal{}, false
}

func first(obj gjson.Result, fields ...string) string {
	for _, f := range fields {
		if v := obj.Get(f); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
