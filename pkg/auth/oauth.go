package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the downloaded Google API credentials.json, read from
	// the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the access and refresh token in the config directory.
	TokenFile = "token.json"

	// LocalhostAuthPort is where the local server captures the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Scopes are the calendar permissions the mirror needs.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// ErrNoToken means no cached token exists and interactive login is disabled.
var ErrNoToken = errors.New("no cached calendar token, run `kanban calendar auth`")

// Flow runs the desktop OAuth flow against credentials stored in Dir.
type Flow struct {
	Dir    string
	Logger *log.Logger
	// Interactive allows starting a browser login when no token is cached.
	Interactive bool
}

func (f *Flow) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}

// Config creates an oauth2.Config from the client secrets file.
func (f *Flow) Config(scopes []string) (*oauth2.Config, error) {
	clientSecretsFile := filepath.Join(f.Dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = normalizeRedirect(config.RedirectURL, f.logger())
	return config, nil
}

// normalizeRedirect points localhost and out-of-band redirects at the port
// the local callback server listens on.
func normalizeRedirect(redirect string, logger *log.Logger) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" {
		fixed := fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		logger.Info("overriding out-of-band redirect", "redirect", fixed)
		return fixed
	}

	parsed, err := url.Parse(redirect)
	if err != nil {
		logger.Warn("could not parse redirect url, using it as is", "redirect", redirect, "err", err)
		return redirect
	}
	if parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
		logger.Warn("redirect url is not a localhost callback", "redirect", redirect)
		return redirect
	}
	if port := parsed.Port(); port != LocalhostAuthPort {
		if port != "" {
			logger.Warn("redirect port mismatch, forcing local port", "configured", port, "port", LocalhostAuthPort)
		}
		parsed.Host = net.JoinHostPort(parsed.Hostname(), LocalhostAuthPort)
	}
	return parsed.String()
}

// Client returns an authenticated *http.Client. A cached token is refreshed
// automatically; otherwise the browser flow runs when Interactive is set.
func (f *Flow) Client(ctx context.Context, scopes []string) (*http.Client, error) {
	config, err := f.Config(scopes)
	if err != nil {
		return nil, err
	}

	tokenFile := filepath.Join(f.Dir, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if !f.Interactive {
			return nil, ErrNoToken
		}
		f.logger().Info("no existing token, starting web authorization", "path", tokenFile)
		tok, err = f.tokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	src := config.TokenSource(ctx, tok)
	current, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh calendar token: %w", err)
	}
	if current.AccessToken != tok.AccessToken || current.RefreshToken != tok.RefreshToken {
		f.logger().Debug("token refreshed, saving", "path", tokenFile)
		if err := saveToken(tokenFile, current); err != nil {
			f.logger().Warn("could not save refreshed token", "err", err)
		}
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(current, src)), nil
}

// Authorize always runs the browser flow and replaces the cached token.
func (f *Flow) Authorize(ctx context.Context, scopes []string) error {
	config, err := f.Config(scopes)
	if err != nil {
		return err
	}
	tok, err := f.tokenFromWeb(ctx, config)
	if err != nil {
		return err
	}
	return saveToken(filepath.Join(f.Dir, TokenFile), tok)
}

// tokenFromWeb starts a local server, prints the consent URL and waits for the
// redirect carrying the authorization code.
func (f *Flow) tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", LocalhostAuthPort))
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
				case errCh <- errors.New("authorization code not found in redirect URL"):
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

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize kanban:\n%s\n", authURL)
	f.logger().Info("waiting for authorization code", "redirect", config.RedirectURL)

	select {
	case authCode := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exchangeCtx, authCode)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

// tokenFromFile reads an oauth2.Token from a JSON file.
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

// saveToken writes token to path, readable by the owner only.
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

// CalendarService creates an authenticated Google Calendar service.
func (f *Flow) CalendarService(ctx context.Context) (*calendar.Service, error) {
	client, err := f.Client(ctx, Scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client for Calendar API: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}
