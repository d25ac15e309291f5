package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"vaultauction/core/types"
	"vaultauction/crypto"
)

type contextKey string

const contextKeyCaller contextKey = "rpc.caller"

const defaultClockSkew = 2 * time.Minute

var (
	errMissingBearer = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid token")
)

// authenticator verifies HMAC-signed bearer tokens. The subject claim names
// the address the caller may sign for.
type authenticator struct {
	secret []byte
	issuer string
	skew   time.Duration
}

func newAuthenticator(secret, issuer string) *authenticator {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil
	}
	return &authenticator{secret: []byte(trimmed), issuer: strings.TrimSpace(issuer), skew: defaultClockSkew}
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// authenticate returns the caller address carried by the request token.
func (a *authenticator) authenticate(r *http.Request) (types.Address, error) {
	raw := extractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return types.Address{}, errMissingBearer
	}
	opts := []jwt.ParserOption{jwt.WithLeeway(a.skew), jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return types.Address{}, errInvalidToken
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return types.Address{}, errInvalidToken
	}
	addr, err := crypto.ParseAddress(subject)
	if err != nil || addr.IsZero() {
		return types.Address{}, errInvalidToken
	}
	return addr, nil
}

func withCaller(ctx context.Context, addr types.Address) context.Context {
	return context.WithValue(ctx, contextKeyCaller, addr)
}

func callerFrom(ctx context.Context) (types.Address, bool) {
	addr, ok := ctx.Value(contextKeyCaller).(types.Address)
	return addr, ok
}
