package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const clientSecrets = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
"redirect_uris":["http://localhost"]}}`

func TestLocalRedirect(t *testing.T) {
	cases := map[string]string{
		"urn:ietf:wg:oauth:2.0:oob":       "http://localhost:6789/oauth2callback",
		"http://localhost":                "http://localhost:6789",
		"http://127.0.0.1:9999/cb":        "http://127.0.0.1:6789/cb",
		"http://localhost:6789/cb":        "http://localhost:6789/cb",
		"https://example.com/oauth2/done": "https://example.com/oauth2/done",
	}
	for in, want := range cases {
		if got := localRedirect(in); got != want {
			t.Errorf("localRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScopes(t *testing.T) {
	if n := len(Scopes(false)); n != 4 {
		t.Errorf("expected 4 personal scopes, got %d", n)
	}
	if n := len(Scopes(true)); n != 6 {
		t.Errorf("expected 6 work scopes, got %d", n)
	}
}

func TestOAuthProviderUsesCachedToken(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(clientSecrets), 0600); err != nil {
		t.Fatal(err)
	}
	tok := &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := saveToken(filepath.Join(dir, TokenFile), tok); err != nil {
		t.Fatal(err)
	}

	p := &OAuthProvider{Dir: dir, Enhanced: true}
	cred, err := p.Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential failed: %v", err)
	}
	if !cred.Valid() || !cred.Enhanced {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	got, err := cred.TokenSource.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got.AccessToken != "cached" {
		t.Errorf("expected cached access token, got %q", got.AccessToken)
	}
}

func TestOAuthProviderNonInteractiveWithoutToken(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(clientSecrets), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := (&OAuthProvider{Dir: dir}).Credential(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	if _, err := (StaticProvider{}).Credential(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	cred, err := StaticProvider{AccessToken: "abc"}.Credential(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	tok, _ := cred.TokenSource.Token()
	if tok.AccessToken != "abc" || cred.Enhanced {
		t.Errorf("unexpected credential %+v / %+v", cred, tok)
	}
}
