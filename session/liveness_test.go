package session_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
	"github.com/jrsteele09/go-storefront-gateway/gateway"
	"github.com/jrsteele09/go-storefront-gateway/session"
	"github.com/stretchr/testify/require"
)

const probeInterval = 10 * time.Millisecond

func TestLiveness_NoCallsWhileUnauthenticated(t *testing.T) {
	f := setupFixture(t, session.WithLivenessInterval(probeInterval))
	f.ctrl.Mount(context.Background())
	f.ctrl.SetView(true)

	f.ctrl.CheckLiveness(context.Background())
	time.Sleep(10 * probeInterval)

	f.requireKind(t, session.Unauthenticated)
	require.Equal(t, 0, f.backend.total())
}

func TestLiveness_NoCallsOnPublicView(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, session.WithLivenessInterval(probeInterval))
	f.setPair(t, credentials.User, userAccess, "")
	f.ctrl.Mount(ctx)
	f.requireKind(t, session.Authenticated)
	before := f.backend.hitCount(http.MethodGet, gateway.RouteUserMe)

	f.ctrl.CheckLiveness(ctx)
	time.Sleep(10 * probeInterval)
	require.Equal(t, before, f.backend.hitCount(http.MethodGet, gateway.RouteUserMe))
}

func TestLiveness_ProbesWhileProtected(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, session.WithLivenessInterval(probeInterval))
	f.setPair(t, credentials.User, userAccess, "")
	f.ctrl.Mount(ctx)
	f.ctrl.SetView(true)

	require.Eventually(t, func() bool {
		return f.backend.hitCount(http.MethodGet, gateway.RouteUserMe) >= 3
	}, time.Second, probeInterval)
	f.requireKind(t, session.Authenticated)

	t.Run("stops on public view", func(t *testing.T) {
		f.ctrl.SetView(false)
		time.Sleep(3 * probeInterval)
		settled := f.backend.hitCount(http.MethodGet, gateway.RouteUserMe)
		time.Sleep(10 * probeInterval)
		require.Equal(t, settled, f.backend.hitCount(http.MethodGet, gateway.RouteUserMe))
	})
}

func TestLiveness_RejectionExpiresSession(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, session.WithLivenessInterval(probeInterval))
	require.True(t, f.ctrl.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret"}))
	f.ctrl.SetView(true)

	f.backend.revoke(userAccess)
	require.Eventually(t, func() bool {
		return f.ctrl.State().Kind == session.SessionExpired
	}, time.Second, probeInterval)

	// The refresh token was tried once and failed, so the realm is gone
	_, ok := f.store.Get(credentials.User, credentials.Access)
	require.False(t, ok)
	require.Equal(t, 1, f.rec.expiredCount())

	time.Sleep(5 * probeInterval)
	settled := f.backend.total()
	time.Sleep(10 * probeInterval)
	require.Equal(t, settled, f.backend.total(), "probing stops once expired")
}

func TestLiveness_CheckLivenessProbesOnce(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	f.setPair(t, credentials.User, userAccess, "")
	f.ctrl.Mount(ctx)
	f.ctrl.SetView(true)
	before := f.backend.hitCount(http.MethodGet, gateway.RouteUserMe)

	f.ctrl.CheckLiveness(ctx)
	require.Equal(t, before+1, f.backend.hitCount(http.MethodGet, gateway.RouteUserMe))
	f.requireKind(t, session.Authenticated)

	f.backend.revoke(userAccess)
	f.ctrl.CheckLiveness(ctx)
	f.requireKind(t, session.SessionExpired)
}

func TestLiveness_StoppedByLogoutAndClose(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, session.WithLivenessInterval(probeInterval))
	require.True(t, f.ctrl.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret"}))
	f.ctrl.SetView(true)
	require.Eventually(t, func() bool {
		return f.backend.hitCount(http.MethodGet, gateway.RouteUserMe) >= 1
	}, time.Second, probeInterval)

	f.ctrl.Logout(ctx)
	settled := f.backend.hitCount(http.MethodGet, gateway.RouteUserMe)
	time.Sleep(10 * probeInterval)
	require.Equal(t, settled, f.backend.hitCount(http.MethodGet, gateway.RouteUserMe))

	require.True(t, f.ctrl.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret"}))
	f.ctrl.Close()
	settled = f.backend.hitCount(http.MethodGet, gateway.RouteUserMe)
	time.Sleep(10 * probeInterval)
	require.Equal(t, settled, f.backend.hitCount(http.MethodGet, gateway.RouteUserMe))
}
