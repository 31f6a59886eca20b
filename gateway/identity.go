package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"realtime-core/errors"
)

// Identity unwraps the caller identity the upstream auth layer attached to
// the request. Authentication decisions happen upstream; this only
// verifies the token signature and extracts the subject, and rejects the
// request before any registry mutation when nothing usable is attached.
type Identity struct {
	secret []byte
}

func NewIdentity(secret []byte) Identity {
	return Identity{secret: secret}
}

// FromRequest reads the bearer token from the Authorization header or,
// for browser WebSocket clients that cannot set headers, the token query
// parameter.
func (i Identity) FromRequest(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return "", errors.ErrMissingIdentity
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrMissingIdentity, err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.ErrMissingIdentity
	}
	return subject, nil
}
