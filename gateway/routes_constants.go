package gateway

import (
	"strings"

	"github.com/jrsteele09/go-storefront-gateway/credentials"
)

// Backend route constants for the authentication endpoints of each realm
const (
	// User realm
	RouteUserLogin   = "/auth/login"
	RouteUserLogout  = "/auth/logout"
	RouteUserRefresh = "/auth/refresh"
	RouteUserMe      = "/auth/me"

	// Admin realm
	RouteAdminLogin   = "/admin/login"
	RouteAdminLogout  = "/admin/logout"
	RouteAdminRefresh = "/admin/refresh"
	RouteAdminMe      = "/admin/me"

	authPrefix  = "/auth"
	adminPrefix = "/admin"
)

var realmRoutes = map[credentials.Realm]struct {
	login, logout, refresh, me string
}{
	credentials.User:  {RouteUserLogin, RouteUserLogout, RouteUserRefresh, RouteUserMe},
	credentials.Admin: {RouteAdminLogin, RouteAdminLogout, RouteAdminRefresh, RouteAdminMe},
}

// adminAuthRoutes are the admin endpoints that issue, renew or check credentials
var adminAuthRoutes = map[string]struct{}{
	RouteAdminLogin:   {},
	RouteAdminLogout:  {},
	RouteAdminRefresh: {},
	RouteAdminMe:      {},
}

func LoginRoute(realm credentials.Realm) string { return realmRoutes[realm].login }
func LogoutRoute(realm credentials.Realm) string { return realmRoutes[realm].logout }
func RefreshRoute(realm credentials.Realm) string { return realmRoutes[realm].refresh }
func WhoamiRoute(realm credentials.Realm) string { return realmRoutes[realm].me }

// RealmFor resolves the credential realm from the path prefix: /admin and
// everything below it is the admin realm, every other path the user realm.
func RealmFor(path string) credentials.Realm {
	p := pathOnly(path)
	if hasSegmentPrefix(p, adminPrefix) {
		return credentials.Admin
	}
	return credentials.User
}

// IsAuthEndpoint reports whether path issues, renews or checks credentials.
// Responses from these endpoints are never replaced by offline content.
func IsAuthEndpoint(path string) bool {
	p := strings.TrimSuffix(pathOnly(path), "/")
	if hasSegmentPrefix(p, authPrefix) {
		return true
	}
	_, ok := adminAuthRoutes[p]
	return ok
}

func pathOnly(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
