package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/server"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL   = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	googleRevokeURL = "https://oauth2.googleapis.com/revoke"

	interactiveTimeout = 2 * time.Minute
)

// Scopes requested at sign-in: read-only Drive access plus the profile shown in the library header.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// retryLogger adapts [log.Logger] to [retryablehttp.LeveledLogger].
type retryLogger struct {
	l *log.Logger
}

func (r retryLogger) Error(msg string, kv ...any) { r.l.Error(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...any)  { r.l.Debug(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...any) { r.l.Debug(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...any)  { r.l.Warn(msg, kv...) }

// OAuthProviderOpts configures an [OAuthProvider].
type OAuthProviderOpts struct {
	Google       shared.GoogleConfig
	CallbackAddr string       // loopback listen address, e.g. 127.0.0.1:3000
	AuthURL      string       // default: Google's authorization endpoint
	TokenURL     string       // default: Google's token endpoint
	RevokeURL    string       // default: Google's revocation endpoint
	Prompt       io.Writer    // receives the consent URL when the browser cannot be opened
	OpenBrowser  func(string) error
	Logger       *log.Logger
	RetryMax     int // retries against the token endpoint during silent renewal
}

// OAuthProvider implements [TokenProvider] with the authorization code flow over a loopback callback.
type OAuthProvider struct {
	config       *oauth2.Config
	callbackAddr string
	revokeURL    string
	prompt       io.Writer
	openBrowser  func(string) error
	httpClient   *http.Client
	logger       *log.Logger
}

// NewOAuthProvider builds a provider from the Google client credentials.
func NewOAuthProvider(opts OAuthProviderOpts) (*OAuthProvider, error) {
	if opts.Google.ClientID == "" || opts.Google.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret must be set in [credentials.google]", shared.ErrMissingCredentials)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = googleAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = googleTokenURL
	}
	if opts.RevokeURL == "" {
		opts.RevokeURL = googleRevokeURL
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 2
	}

	redirect := opts.Google.RedirectURI
	if redirect == "" {
		redirect = "http://" + opts.CallbackAddr + "/callback"
	}
	if opts.CallbackAddr == "" {
		u, err := url.Parse(redirect)
		if err != nil {
			return nil, fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
		}
		opts.CallbackAddr = u.Host
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = retryLogger{l: opts.Logger}

	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     opts.Google.ClientID,
			ClientSecret: opts.Google.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		callbackAddr: opts.CallbackAddr,
		revokeURL:    opts.RevokeURL,
		prompt:       opts.Prompt,
		openBrowser:  opts.OpenBrowser,
		httpClient:   retryClient.StandardClient(),
		logger:       opts.Logger,
	}, nil
}

// AuthURL returns the consent URL for state.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *OAuthProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Interactive implements [TokenProvider]. It waits at most two minutes for the callback.
func (p *OAuthProvider) Interactive(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, interactiveTimeout)
	defer cancel()

	state := shared.GenerateID()
	authURL := p.AuthURL(state)
	handler := server.NewOAuthHandler(p.clientContext(ctx), p.config, state)

	p.logger.Info("starting sign-in callback server", "addr", p.callbackAddr)
	return server.ServeCallback(ctx, p.callbackAddr, handler, p.logger, func() error {
		if err := p.openBrowser(authURL); err != nil {
			fmt.Fprintf(p.prompt, "Open this URL in your browser to sign in:\n%s\n", authURL)
			return err
		}
		fmt.Fprintln(p.prompt, "→ Waiting for sign-in in your browser...")
		return nil
	})
}

// Silent implements [TokenProvider] by exchanging current's refresh token.
func (p *OAuthProvider) Silent(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = current.RefreshToken
	}
	return tok, nil
}

// Revoke implements [TokenProvider].
func (p *OAuthProvider) Revoke(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	if value == "" {
		return nil
	}

	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revoke failed: status %d", resp.StatusCode)
	}
	return nil
}
