package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/chat/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
)

const (
	// ClientSecretsFile is the OAuth client downloaded from the Google Cloud console,
	// expected in the taskmind config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the user's access and refresh token next to the client secrets.
	TokenFile = "token.json"

	// LocalhostAuthPort is where the local listener captures the OAuth redirect.
	LocalhostAuthPort = "6789"
)

// Scopes returns the OAuth scopes taskmind asks for. Chat scopes are only
// requested for enhanced (work) accounts.
func Scopes(enhanced bool) []string {
	scopes := []string{
		gmail.GmailReadonlyScope,
		drive.DriveFileScope,
		calendar.CalendarEventsScope,
		calendar.CalendarReadonlyScope,
	}
	if enhanced {
		scopes = append(scopes, chat.ChatSpacesReadonlyScope, chat.ChatMessagesReadonlyScope)
	}
	return scopes
}

// GetConfig creates an oauth2.Config from the client secrets file in dir.
func GetConfig(dir string, scopes []string) (*oauth2.Config, error) {
	clientSecretsFile := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = localRedirect(config.RedirectURL)
	return config, nil
}

// localRedirect pins loopback and out-of-band redirect URIs to LocalhostAuthPort.
func localRedirect(redirect string) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" || redirect == "" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	}
	parsed, err := url.Parse(redirect)
	if err != nil {
		logger.Warn("could not parse redirect URL, using it as is", "redirect", redirect, "error", err)
		return redirect
	}
	if parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
		logger.Warn("redirect URL is not a localhost callback", "redirect", redirect)
		return redirect
	}
	if parsed.Port() != LocalhostAuthPort {
		parsed.Host = net.JoinHostPort(parsed.Hostname(), LocalhostAuthPort)
	}
	return parsed.String()
}

// OAuthProvider serves credentials from the cached installed-app token,
// refreshing and re-saving it as needed.
type OAuthProvider struct {
	Dir      string
	Enhanced bool
	// Interactive allows falling back to the browser flow when no token is cached.
	Interactive bool
}

func (p *OAuthProvider) Credential(ctx context.Context) (Credential, error) {
	config, err := GetConfig(p.Dir, Scopes(p.Enhanced))
	if err != nil {
		return Credential{}, err
	}

	tokenFile := filepath.Join(p.Dir, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if !p.Interactive {
			return Credential{}, fmt.Errorf("%w: %v", ErrNoToken, err)
		}
		logger.Info("no cached token, starting web authorization flow", "path", tokenFile)
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return Credential{}, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return Credential{}, err
		}
	}

	return Credential{
		TokenSource: &savingTokenSource{base: config.TokenSource(ctx, tok), path: tokenFile, last: tok},
		Enhanced:    p.Enhanced,
	}, nil
}

// Authenticate discards any cached token and runs the browser flow.
func Authenticate(ctx context.Context, dir string, enhanced bool) error {
	tokenFile := filepath.Join(dir, TokenFile)
	if err := os.Remove(tokenFile); err == nil {
		logger.Info("removed existing token file", "path", tokenFile)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("could not delete token file %s, delete it manually: %w", tokenFile, err)
	}
	p := &OAuthProvider{Dir: dir, Enhanced: enhanced, Interactive: true}
	_, err := p.Credential(ctx)
	return err
}

// savingTokenSource persists refreshed tokens so the next run starts warm.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			logger.Warn("could not re-save refreshed token", "error", err)
		}
		s.last = tok
	}
	return tok, nil
}

// getTokenFromWeb runs the authorization code flow through a local listener.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- fmt.Errorf("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()

	// AccessTypeOffline is required for a refresh token.
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize taskmind:\n%s\n", authURL)
	logger.Info("waiting for authorization code", "redirect", config.RedirectURL)

	select {
	case authCode := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exCtx, authCode)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timed out. Please try again")
	}
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
