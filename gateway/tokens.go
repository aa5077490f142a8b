package gateway

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-storefront-gateway/internal/utils"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// TokenResponse is the credential payload returned by the login and refresh endpoints.
// The backend is not consistent about where it puts the tokens, so ParseTokenResponse
// probes the known shapes.
type TokenResponse struct {
	// AccessToken is the bearer token attached to authenticated requests.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Found as: accessToken, token or access_token
	AccessToken *string `json:"accessToken,omitempty"`

	// RefreshToken is the opaque token exchanged at the realm's refresh endpoint.
	// Optional: a refresh reply without one keeps the previously stored token.
	// Found as: refreshToken or refresh_token
	RefreshToken *string `json:"refreshToken,omitempty"`
}

// tokenContainers are the object paths searched, most specific first
var tokenContainers = []string{"data.tokens", "data", "tokens", ""}

var (
	accessTokenFields  = []string{"accessToken", "token", "access_token"}
	refreshTokenFields = []string{"refreshToken", "refresh_token"}
)

// ParseTokenResponse extracts tokens from a login or refresh reply. The shapes
// {accessToken}, {data: {accessToken}} and {data: {tokens: {accessToken}}} are accepted.
func ParseTokenResponse(body []byte) TokenResponse {
	root := gjson.ParseBytes(body)
	for _, container := range tokenContainers {
		obj := root
		if container != "" {
			obj = root.Get(container)
		}
		if !obj.IsObject() {
			continue
		}
		access := firstString(obj, accessTokenFields)
		if access == "" {
			continue
		}
		return TokenResponse{
			AccessToken:  utils.Ptr(access),
			RefreshToken: utils.NonEmpty(firstString(obj, refreshTokenFields)),
		}
	}
	return TokenResponse{}
}

func firstString(obj gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := obj.Get(f); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// accessExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens and JWTs without exp are never considered expired here; the
// backend's 401 is the authority for those.
func accessExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	t := &oauth2.Token{AccessToken: token, Expiry: claims.ExpiresAt.Time}
	return !t.Valid()
}
