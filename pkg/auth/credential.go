package auth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no bearer token can be produced without user interaction.
var ErrNoToken = errors.New("no Google credential available; run `taskmind auth`")

// Credential is what every source fetcher and the Drive backup act with.
type Credential struct {
	TokenSource oauth2.TokenSource
	// Enhanced is set for work-tier accounts; only they may read Google Chat.
	Enhanced bool
}

// Valid reports whether the credential carries a token source.
func (c Credential) Valid() bool {
	return c.TokenSource != nil
}

// Provider supplies the credential for one pipeline run.
type Provider interface {
	Credential(ctx context.Context) (Credential, error)
}

// StaticProvider serves a pre-issued bearer token.
type StaticProvider struct {
	AccessToken string
	Enhanced    bool
}

func (p StaticProvider) Credential(context.Context) (Credential, error) {
	if p.AccessToken == "" {
		return Credential{}, ErrNoToken
	}
	return Credential{
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.AccessToken, TokenType: "Bearer"}),
		Enhanced:    p.Enhanced,
	}, nil
}
