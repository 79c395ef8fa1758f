// Package jwtx inspects bearer tokens without verifying them.
//
// The Wishkro backend hands out whatever credential it feels like; usually a
// JWT, but nothing guarantees it. Every helper here is tolerant of that: a
// token that does not decode cleanly is treated as opaque with an unknown
// expiry, never as an error. Expiry enforcement for opaque tokens is the
// backend's job via 401 responses.
package jwtx

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSkew is the safety margin applied to expiry checks. A token within
// this window of its exp claim is treated as already expired so we don't fire
// a request that gets rejected mid-flight.
const DefaultSkew = 30 * time.Second

var parser = jwt.NewParser()

// Payload decodes the claims of a maybe-JWT. A token only counts as a JWT
// when it splits into exactly three dot-separated segments and the middle
// segment is base64url-encoded JSON; anything else returns ok=false.
func Payload(token string) (jwt.MapClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}

	raw, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, false
	}

	return claims, true
}

// ExpiryTime returns the token's expiry derived from its exp claim.
// ok is false when the token is not a JWT or carries no numeric exp.
func ExpiryTime(token string) (time.Time, bool) {
	claims, ok := Payload(token)
	if !ok {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// IsExpired reports whether the token is expired, with skew as a safety
// margin. Tokens with unknown expiry are never expired by this check.
func IsExpired(token string, skew time.Duration) bool {
	exp, ok := ExpiryTime(token)
	if !ok {
		return false
	}

	return !time.Now().Add(skew).Before(exp)
}

// Remaining returns the time until the token's expiry, or the maximum
// representable duration when the expiry is unknown.
func Remaining(token string) time.Duration {
	exp, ok := ExpiryTime(token)
	if !ok {
		return time.Duration(math.MaxInt64)
	}

	return time.Until(exp)
}
