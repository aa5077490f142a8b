package session

import (
	"time"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
)

const (
	// DefaultLivenessInterval is how often whoami is re-probed on protected views
	DefaultLivenessInterval = 5 * time.Minute
	// DefaultRedirectDelay is the countdown shown before redirecting an expired session
	DefaultRedirectDelay = 5 * time.Second
)

type Option func(*options)

type options struct {
	realm            credentials.Realm
	livenessInterval time.Duration
	redirectDelay    time.Duration
	notifier         Notifier
	navigator        Navigator
	homeRoute        string
	loginRoute       string
}

// WithRealm selects the realm the controller manages. Defaults to the user realm.
func WithRealm(realm credentials.Realm) Option {
	return func(o *options) {
		o.realm = realm
	}
}

func WithLivenessInterval(d time.Duration) Option {
	return func(o *options) {
		o.livenessInterval = d
	}
}

func WithRedirectDelay(d time.Duration) Option {
	return func(o *options) {
		o.redirectDelay = d
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

func WithNavigator(n Navigator) Option {
	return func(o *options) {
		o.navigator = n
	}
}

// WithRoutes sets the routes used after logout (home) and after an expired
// session's countdown (login). Empty values keep the realm defaults.
func WithRoutes(home, login string) Option {
	return func(o *options) {
		if home != "" {
			o.homeRoute = home
		}
		if login != "" {
			o.loginRoute = login
		}
	}
}

func defaultLoginRoute(realm credentials.Realm) string {
	if realm == credentials.Admin {
		return "/admin/login"
	}
	return "/login"
}
