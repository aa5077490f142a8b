package session

import (
	"time"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/rs/zerolog/log"
)

// Notifier surfaces session conditions to the user.
type Notifier interface {
	// SessionExpired shows the blocking expiry notice. The controller redirects to
	// the login route once redirectIn has elapsed.
	SessionExpired(realm credentials.Realm, redirectIn time.Duration)
	// DataLoadFailed shows a dismissible message naming the area that failed to load
	DataLoadFailed(message string)
}

// Navigator moves the user to another route.
type Navigator interface {
	Redirect(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Redirect(route string) {
	f(route)
}

// logNotifier is used when no notifier is configured
type logNotifier struct{}

func (logNotifier) SessionExpired(realm credentials.Realm, redirectIn time.Duration) {
	log.Warn().Str("realm", string(realm)).Dur("redirect_in", redirectIn).Msg("Session expired, please sign in again")
}

func (logNotifier) DataLoadFailed(message string) {
	log.Warn().Msg(message)
}

type logNavigator struct{}

func (logNavigator) Redirect(route string) {
	log.Info().Str("route", route).Msg("Redirect")
}
