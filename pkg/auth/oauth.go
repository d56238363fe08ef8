package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultScopes is what the client needs to move and relabel conversations
var DefaultScopes = []string{gmail.GmailModifyScope}

// OAuth2Config holds OAuth2 configuration
type OAuth2Config struct {
	CredentialsPath string
	TokenPath       string
	Scopes          []string
	// ListenAddr is where the redirect handler listens during authorization
	ListenAddr string
	// Prompt receives the authorization instructions
	Prompt io.Writer
	// AuthTimeout bounds how long authorization waits for the browser
	AuthTimeout time.Duration
}

// NewOAuth2Config creates a new OAuth2 configuration
func NewOAuth2Config(credentialsPath string, tokenPath string, scopes ...string) *OAuth2Config {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &OAuth2Config{
		CredentialsPath: credentialsPath,
		TokenPath:       tokenPath,
		Scopes:          scopes,
		ListenAddr:      "localhost:8080",
		Prompt:          os.Stdout,
		AuthTimeout:     5 * time.Minute,
	}
}

// LoadCredentials loads OAuth2 credentials from file
func (c *OAuth2Config) LoadCredentials() (*oauth2.Config, error) {
	data, err := os.ReadFile(c.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(data, c.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials file: %w", err)
	}

	return config, nil
}

// LoadToken loads the cached token
func (c *OAuth2Config) LoadToken() (*oauth2.Token, error) {
	f, err := os.Open(c.TokenPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	return token, nil
}

// SaveToken saves token to file
func (c *OAuth2Config) SaveToken(token *oauth2.Token) error {
	if token == nil {
		return errors.New("no token to save")
	}
	if c.TokenPath == "" {
		return errors.New("token path is empty")
	}
	// Ensure directory exists
	dir := filepath.Dir(c.TokenPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(c.TokenPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("could not save OAuth token: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// GetToken retrieves a token, refreshing or re-authorizing when needed
func (c *OAuth2Config) GetToken(ctx context.Context) (*oauth2.Token, error) {
	config, err := c.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return c.token(ctx, config)
}

func (c *OAuth2Config) token(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	token, err := c.LoadToken()
	if err != nil {
		token, err = c.authenticate(ctx, config)
		if err != nil {
			return nil, err
		}
	}

	if !token.Valid() {
		token, err = c.refreshToken(ctx, config, token)
		if err != nil {
			if !isRevoked(err) {
				return nil, fmt.Errorf("token refresh failed: %w", err)
			}
			c.printf("\nYour Gmail access has expired or been revoked. Re-authorization is required.\n")
			token, err = c.authenticate(ctx, config)
			if err != nil {
				return nil, fmt.Errorf("re-authentication failed: %w", err)
			}
		}
	}

	if err := c.SaveToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

func isRevoked(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "Token has been expired or revoked")
}

func (c *OAuth2Config) printf(format string, args ...interface{}) {
	if c.Prompt != nil {
		fmt.Fprintf(c.Prompt, format, args...)
	}
}

// authenticate performs OAuth2 authentication with a local redirect server
func (c *OAuth2Config) authenticate(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", c.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("could not start redirect listener: %w", err)
	}

	state := fmt.Sprintf("leavebehind-%d", time.Now().UnixNano())
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	server := &http.Server{
		Handler:           redirectHandler(state, codeChan, errorChan),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errorChan <- err:
			default:
			}
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	localConfig := *config
	localConfig.RedirectURL = "http://" + listener.Addr().String()

	authURL := localConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.printf("\nAuthorization required\n")
	c.printf("1. Open this link: %s\n", authURL)
	c.printf("2. Grant access to the application\n")
	c.printf("3. You will be redirected automatically\n")
	c.printf("\nWaiting for authorization...\n")

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errorChan:
		return nil, fmt.Errorf("local server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.AuthTimeout):
		return nil, fmt.Errorf("authorization timeout exceeded")
	}

	token, err := localConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("could not exchange authorization code for token: %w", err)
	}

	c.printf("Authorization successful.\n")
	return token, nil
}

func redirectHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := q.Get("code")
		if code == "" || q.Get("state") != state {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`<html><body><h2>Authorization error</h2><p>Authorization code not received.</p></body></html>`))
			select {
			case errs <- fmt.Errorf("authorization code not received"):
			default:
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><body><h2>Authorization successful</h2><p>You can close this window and return to the application.</p></body></html>`))
		select {
		case codes <- code:
		default:
		}
	})
}

// refreshToken refreshes an expired token
func (c *OAuth2Config) refreshToken(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*oauth2.Token, error) {
	newToken, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("could not refresh token: %w", err)
	}
	return newToken, nil
}

// NewGmailService creates a Gmail service authorized with the cached or a
// freshly obtained token
func NewGmailService(ctx context.Context, cfg *OAuth2Config) (*gmail.Service, error) {
	config, err := cfg.LoadCredentials()
	if err != nil {
		return nil, err
	}
	token, err := cfg.token(ctx, config)
	if err != nil {
		return nil, err
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("could not create Gmail service: %w", err)
	}
	return service, nil
}
