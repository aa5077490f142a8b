// Package session owns the authentication state of one realm. It turns classified
// gateway errors into state transitions, probes the backend's whoami endpoint while
// a protected view is shown, and tells the UI when to show the expiry notice or a
// data-load error.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/gateway"
	apperrors "github.com/jrsteele09/go-storefront-gateway/internal/errors"
	"github.com/jrsteele09/go-storefront-gateway/internal/utils"
	"github.com/rs/zerolog/log"
)

// Gateway is the part of the API client the controller needs.
type Gateway interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Credentials are posted to the realm's login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Controller is the session state machine for a single realm. It is safe for
// concurrent use; listeners and notifier calls run outside its lock.
type Controller struct {
	gw    Gateway
	store credentials.Store
	opts  options

	mu        sync.Mutex
	state     State
	previous  State
	protected bool
	closed    bool
	listeners map[int]func(State)
	nextID    int
	liveness  *livenessRun
	redirect  *time.Timer
}

// New returns a controller in the loading state. Call Mount to resolve it.
func New(gw Gateway, store credentials.Store, opts ...Option) *Controller {
	o := options{
		realm:            credentials.User,
		livenessInterval: DefaultLivenessInterval,
		redirectDelay:    DefaultRedirectDelay,
		notifier:         logNotifier{},
		navigator:        logNavigator{},
		homeRoute:        "/",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loginRoute == "" {
		o.loginRoute = defaultLoginRoute(o.realm)
	}
	if store == nil {
		store = credentials.Null{}
	}

	return &Controller{
		gw:        gw,
		store:     store,
		opts:      o,
		state:     State{Kind: Loading},
		listeners: make(map[int]func(State)),
	}
}

func (c *Controller) Realm() credentials.Realm {
	return c.opts.realm
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Principal returns the authenticated identity, if any.
func (c *Controller) Principal() (Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Kind != Authenticated || c.state.Principal == nil {
		return Principal{}, false
	}
	return *c.state.Principal, true
}

// Subscribe registers fn to receive every state change. The returned function
// removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Mount resolves the initial state by probing whoami with the stored token.
func (c *Controller) Mount(ctx context.Context) {
	c.update(func() []func() {
		c.cancelRedirectLocked()
		return c.setLocked(State{Kind: Loading})
	})

	if _, ok := credentials.GetPair(c.store, c.opts.realm); !ok {
		c.update(func() []func() {
			return c.setLocked(State{Kind: Unauthenticated})
		})
		return
	}

	resp, err := c.whoami(ctx)
	c.update(func() []func() {
		if c.state.Kind != Loading {
			// A login or logout finished while the probe was in flight
			return nil
		}
		switch {
		case err == nil:
			return c.authenticateLocked(c.principalFrom(resp.Body))
		case gateway.KindOf(err) == gateway.KindAuthRequired:
			return c.setLocked(State{Kind: Unauthenticated})
		case gateway.IsAuthFailure(err):
			return c.expireLocked()
		}

		if cached, ok := c.cachedPrincipal(); ok {
			log.Warn().Err(err).Str("realm", string(c.opts.realm)).Msg("Session check failed, using cached user")
			return c.setLocked(State{Kind: Authenticated, Principal: &cached})
		}
		log.Err(err).Str("realm", string(c.opts.realm)).Msg("Session check failed")
		return c.dataErrorLocked("session")
	})
}

// Retry re-runs the mount probe. It is offered from the expiry notice and the
// data-load error message.
func (c *Controller) Retry(ctx context.Context) {
	c.Mount(ctx)
}

// Login posts creds to the realm's login endpoint. On success the tokens and the
// current-user summary are stored and the state becomes authenticated. Failures
// are logged and reported as false; the state is left as it was.
func (c *Controller) Login(ctx context.Context, creds Credentials) bool {
	realm := c.opts.realm
	resp, err := c.gw.Do(ctx, gateway.Request{
		Path:   gateway.LoginRoute(realm),
		Method: http.MethodPost,
		Body:   creds,
	})
	if err != nil {
		log.Err(err).Str("realm", string(realm)).Msg("Login failed")
		return false
	}

	tokens := gateway.ParseTokenResponse(resp.Body)
	if tokens.AccessToken == nil {
		log.Err(apperrors.ErrNoTokensIssued).Str("realm", string(realm)).Msg("Login failed")
		return false
	}
	pair := credentials.Pair{
		Access:  utils.Value(tokens.AccessToken),
		Refresh: utils.Value(tokens.RefreshToken),
	}
	if err := c.store.SetPair(realm, pair); err != nil {
		log.Err(err).Str("realm", string(realm)).Msg("Failed to store login tokens")
		return false
	}

	principal, ok := ParsePrincipal(resp.Body)
	if !ok {
		if me, err := c.whoami(ctx); err == nil {
			principal = c.principalFrom(me.Body)
		} else {
			log.Warn().Err(err).Str("realm", string(realm)).Msg("Signed in but the user summary could not be loaded")
		}
	}

	c.update(func() []func() {
		c.cancelRedirectLocked()
		return c.authenticateLocked(principal)
	})
	log.Info().Str("realm", string(realm)).Str("user", principal.Email).Msg("Signed in")
	return true
}

// Logout tells the backend (best effort), clears the realm and returns to the
// home route. The liveness probe has stopped when Logout returns.
func (c *Controller) Logout(ctx context.Context) {
	realm := c.opts.realm

	c.mu.Lock()
	done := c.stopLivenessLocked()
	c.cancelRedirectLocked()
	c.mu.Unlock()
	wait(done)

	if _, ok := credentials.GetPair(c.store, realm); ok {
		if _, err := c.gw.Do(ctx, gateway.Request{Path: gateway.LogoutRoute(realm), Method: http.MethodPost}); err != nil {
			log.Debug().Err(err).Str("realm", string(realm)).Msg("Logout call failed")
		}
	}
	if err := c.store.ClearRealm(realm); err != nil {
		log.Err(err).Str("realm", string(realm)).Msg("Failed to clear credentials")
	}

	c.update(func() []func() {
		return append(c.setLocked(State{Kind: Unauthenticated}), func() {
			c.opts.navigator.Redirect(c.opts.homeRoute)
		})
	})
	log.Info().Str("realm", string(realm)).Msg("Signed out")
}

// HandleAPIError is the single place a failed call is turned into a state change.
// Rejected credentials expire the session; any other failure becomes a data-load
// error naming area, with the backend's text kept out of the message.
func (c *Controller) HandleAPIError(err error, area string) {
	if err == nil {
		return
	}
	c.update(func() []func() {
		switch {
		case gateway.IsAuthFailure(err):
			return c.expireLocked()
		case gateway.KindOf(err) == gateway.KindAuthRequired:
			log.Warn().Err(err).Str("area", area).Msg("Authenticated call made without credentials")
			if c.state.Kind == SessionExpired {
				return nil
			}
			return c.setLocked(State{Kind: Unauthenticated})
		}

		log.Err(err).Str("realm", string(c.opts.realm)).Str("area", area).Msg("Failed to load data")
		if c.state.Kind == SessionExpired {
			return nil
		}
		return c.dataErrorLocked(area)
	})
}

// DismissError leaves DataLoadError for the state it interrupted.
func (c *Controller) DismissError() {
	c.update(func() []func() {
		if c.state.Kind != DataLoadError {
			return nil
		}
		next := c.previous
		if next.Kind != Authenticated {
			next = State{Kind: Unauthenticated}
		}
		return c.setLocked(next)
	})
}

// SetView records whether the active view is a protected area. Liveness probing
// and the expiry notice only apply to protected views.
func (c *Controller) SetView(protected bool) {
	c.update(func() []func() {
		c.protected = protected
		c.syncLivenessLocked()
		return nil
	})
}

// Close stops the liveness probe and any pending redirect. It blocks until the
// probe goroutine has exited.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	done := c.stopLivenessLocked()
	c.cancelRedirectLocked()
	c.mu.Unlock()
	wait(done)
}

// update runs fn under the lock, then the side effects it returns.
func (c *Controller) update(fn func() []func()) {
	c.mu.Lock()
	effects := fn()
	c.mu.Unlock()
	for _, effect := range effects {
		effect()
	}
}

// setLocked stores next and returns the listener calls for it.
func (c *Controller) setLocked(next State) []func() {
	if next.Kind == DataLoadError && c.state.Kind != DataLoadError {
		c.previous = c.state
	}
	c.state = next
	c.syncLivenessLocked()

	effects := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fn := fn
		effects = append(effects, func() { fn(next) })
	}
	return effects
}

func (c *Controller) authenticateLocked(p Principal) []func() {
	c.storeSummary(p)
	return c.setLocked(State{Kind: Authenticated, Principal: &p})
}

// storeSummary persists p as the realm's current-user summary
func (c *Controller) storeSummary(p Principal) {
	if len(p.Raw) == 0 {
		return
	}
	if err := c.store.Set(c.opts.realm, credentials.Profile, string(p.Raw)); err != nil {
		log.Warn().Err(err).Str("realm", string(c.opts.realm)).Msg("Failed to store user summary")
	}
}

// expireLocked enters SessionExpired. It clears the realm first and is a no-op
// when already expired.
func (c *Controller) expireLocked() []func() {
	if c.state.Kind == SessionExpired {
		return nil
	}
	realm := c.opts.realm
	if err := c.store.ClearRealm(realm); err != nil {
		log.Err(err).Str("realm", string(realm)).Msg("Failed to clear expired credentials")
	}
	log.Info().Str("realm", string(realm)).Bool("protected", c.protected).Msg("Session expired")

	effects := c.setLocked(State{Kind: SessionExpired})
	if !c.protected {
		return effects
	}

	delay := c.opts.redirectDelay
	c.cancelRedirectLocked()
	c.redirect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stillExpired := c.state.Kind == SessionExpired && !c.closed
		c.mu.Unlock()
		if stillExpired {
			c.opts.navigator.Redirect(c.opts.loginRoute)
		}
	})
	return append(effects, func() {
		c.opts.notifier.SessionExpired(realm, delay)
	})
}

func (c *Controller) dataErrorLocked(area string) []func() {
	message := fmt.Sprintf("failed to load %s", area)
	return append(c.setLocked(State{Kind: DataLoadError, Message: message}), func() {
		c.opts.notifier.DataLoadFailed(message)
	})
}

func (c *Controller) cancelRedirectLocked() {
	if c.redirect != nil {
		c.redirect.Stop()
		c.redirect = nil
	}
}

func (c *Controller) whoami(ctx context.Context) (*gateway.Response, error) {
	return c.gw.Do(ctx, gateway.Request{Path: gateway.WhoamiRoute(c.opts.realm), RequiresAuth: true})
}

// principalFrom parses a whoami reply, falling back to the cached summary
func (c *Controller) principalFrom(body []byte) Principal {
	if p, ok := ParsePrincipal(body); ok {
		return p
	}
	if cached, ok := c.cachedPrincipal(); ok {
		return cached
	}
	return Principal{}
}

func (c *Controller) cachedPrincipal() (Principal, bool) {
	raw, ok := c.store.Get(c.opts.realm, credentials.Profile)
	if !ok {
		return Principal{}, false
	}
	return ParsePrincipal([]byte(raw))
}

func wait(done chan struct{}) {
	if done != nil {
		<-done
	}
}
