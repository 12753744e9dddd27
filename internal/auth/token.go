// Package auth supplies the bearer token the remote client sends. An empty
// token with a nil error means "not signed in" and puts the client in
// local-only mode.
package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/logger"
)

// TokenProvider returns the current bearer token, or "" when there is none
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static always returns tok
func Static(tok string) TokenProvider {
	return TokenFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(tok), nil
	})
}

// Env reads the token from an environment variable on every call
func Env(name string) TokenProvider {
	return TokenFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(os.Getenv(name)), nil
	})
}

// Keyring reads the token stored by `tally auth login`. A missing entry or an
// unavailable keyring both read as "no token".
func Keyring() TokenProvider {
	return TokenFunc(func(context.Context) (string, error) {
		tok, err := keyring.GetToken()
		switch {
		case err == nil:
			return tok, nil
		case errors.Is(err, keyring.ErrNotFound):
			return "", nil
		case errors.Is(err, keyring.ErrKeyringUnavailable):
			logger.Debug("Keyring unavailable, continuing without token", "error", err)
			return "", nil
		default:
			return "", err
		}
	})
}

// Chain returns the first non-empty token from providers, in order
func Chain(providers ...TokenProvider) TokenProvider {
	return TokenFunc(func(ctx context.Context) (string, error) {
		for _, p := range providers {
			tok, err := p.Token(ctx)
			if err != nil {
				return "", err
			}
			if tok != "" {
				return tok, nil
			}
		}
		return "", nil
	})
}

// FreshOnly hides tokens whose exp claim has passed. Opaque tokens pass through.
func FreshOnly(p TokenProvider, now func() time.Time) TokenProvider {
	if now == nil {
		now = time.Now
	}
	return TokenFunc(func(ctx context.Context) (string, error) {
		tok, err := p.Token(ctx)
		if err != nil || tok == "" {
			return tok, err
		}
		if Expired(tok, now()) {
			logger.Info("Stored token has expired, working offline")
			return "", nil
		}
		return tok, nil
	})
}

// Info is what can be read from a token without verifying it
type Info struct {
	Subject   string
	ExpiresAt *time.Time
	IsJWT     bool
}

// Inspect decodes the claims of a JWT without checking its signature. The
// server is the only party that verifies tokens.
func Inspect(tok string) Info {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return Info{}
	}
	info := Info{Subject: claims.Subject, IsJWT: true}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	return info
}

// Expired reports whether tok is a JWT whose exp is at or before now
func Expired(tok string, now time.Time) bool {
	info := Inspect(tok)
	return info.ExpiresAt != nil && !now.Before(*info.ExpiresAt)
}
