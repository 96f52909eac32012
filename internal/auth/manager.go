package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
	"golang.org/x/oauth2"
)

const subscriberBuffer = 8

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Provider   TokenProvider
	KV         KV
	HTTPClient *http.Client // Client for authorized requests (default: [http.DefaultClient])
	Config     shared.AuthConfig
	Logger     *log.Logger
	Now        func() time.Time
}

// Manager owns the credential, its state machine and the background refresher.
type Manager struct {
	mu    sync.Mutex
	state State
	cred  *Credential

	provider TokenProvider
	kv       KV
	client   *http.Client
	logger   *log.Logger
	now      func() time.Time

	ttl           time.Duration
	checkInterval time.Duration
	silentTimeout time.Duration

	subs     []chan StateChange
	clearers []Clearer

	baseCtx       context.Context
	stopRefresher context.CancelFunc
	refresherDone chan struct{}
}

// NewManager creates a manager and restores any persisted credential.
func NewManager(opts ManagerOpts) *Manager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		state:         SignedOut,
		provider:      opts.Provider,
		kv:            opts.KV,
		client:        opts.HTTPClient,
		logger:        opts.Logger,
		now:           opts.Now,
		ttl:           opts.Config.TokenTTL(),
		checkInterval: opts.Config.CheckInterval(),
		silentTimeout: opts.Config.SilentTimeout(),
	}
	m.load()
	return m
}

func (m *Manager) load() {
	if m.kv == nil {
		return
	}

	raw, ok, err := m.kv.Get(CredentialKey)
	if err != nil {
		m.logger.Warn("failed to read stored credential", "error", err)
		return
	}
	if !ok {
		return
	}

	cred, err := decodeCredential(raw)
	if err != nil {
		m.logger.Warn("discarding corrupt stored credential", "error", err)
		m.removeStored()
		return
	}

	m.cred = cred
	if m.now().Before(cred.ExpiresAt()) {
		m.state = SignedIn
	} else {
		m.state = Expired
	}
	m.logger.Debug("restored credential", "state", m.state, "expires", cred.ExpiresAt())
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mode returns the access mode remote requests should use right now.
func (m *Manager) Mode() services.AuthMode {
	if m.State() == SignedIn {
		return services.Authenticated
	}
	return services.Public
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return Credential{}, false
	}
	return *m.cred, true
}

// Subscribe returns a channel receiving every subsequent [StateChange].
//
// Delivery is non-blocking; a subscriber that falls behind misses changes.
func (m *Manager) Subscribe() <-chan StateChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan StateChange, subscriberBuffer)
	m.subs = append(m.subs, ch)
	return ch
}

// RegisterClearer adds fn to the state cleared on sign-out.
func (m *Manager) RegisterClearer(fn Clearer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearers = append(m.clearers, fn)
}

// EnterPublic switches a signed-out or expired manager into the token-less [Public] state.
// A signed-in manager stays signed in.
func (m *Manager) EnterPublic() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == SignedOut || m.state == Expired {
		m.transitionLocked(Public, nil)
	}
	return m.state
}

// AuthorizedFetch performs a GET of url with the bearer token attached.
//
// A 401 moves the manager to [Expired] and returns an error matching [shared.ErrCredentialExpired].
// The request is never retried.
func (m *Manager) AuthorizedFetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	switch m.state {
	case SignedIn:
	case Expired:
		m.mu.Unlock()
		return nil, shared.ErrCredentialExpired
	default:
		m.mu.Unlock()
		return nil, shared.ErrNotAuthenticated
	}
	token := m.cred.AccessToken()
	m.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRemoteRequest, err)
	}

	body, err := services.ReadResponse(resp)
	if err == nil {
		return body, nil
	}
	if !services.IsUnauthorized(err) {
		return nil, err
	}

	expired := fmt.Errorf("%w: %w", shared.ErrCredentialExpired, err)
	m.mu.Lock()
	if m.state == SignedIn && m.cred.AccessToken() == token {
		m.transitionLocked(Expired, expired)
	}
	m.mu.Unlock()
	m.logger.Warn("credential rejected by remote store", "url", url)
	return nil, expired
}

type renewal struct {
	token *oauth2.Token
	err   error
}

// RenewSilently requests a token without user interaction, bounded by the silent timeout.
//
// Failure, including timeout, moves the manager to [SignedOut] and stops the background refresher.
func (m *Manager) RenewSilently(ctx context.Context) (Credential, error) {
	if m.provider == nil {
		return Credential{}, fmt.Errorf("%w: no token provider", shared.ErrRenewalFailed)
	}

	var current *oauth2.Token
	if c, ok := m.Credential(); ok {
		current = c.Token
	}

	ctx, cancel := context.WithTimeout(ctx, m.silentTimeout)
	defer cancel()

	done := make(chan renewal, 1)
	go func() {
		tok, err := m.provider.Silent(ctx, current)
		done <- renewal{token: tok, err: err}
	}()

	var res renewal
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		res.err = fmt.Errorf("%w after %v", shared.ErrRenewalTimeout, m.silentTimeout)
	case res.err != nil:
		res.err = fmt.Errorf("%w: %v", shared.ErrRenewalFailed, res.err)
	case res.token == nil || res.token.AccessToken == "":
		res.err = fmt.Errorf("%w: provider returned no token", shared.ErrRenewalFailed)
	}

	if res.err != nil {
		m.logger.Warn("silent renewal failed", "error", res.err)
		m.mu.Lock()
		m.cred = nil
		m.transitionLocked(SignedOut, res.err)
		// May run on the refresher goroutine itself, so cancel without waiting on it.
		if m.stopRefresher != nil {
			m.stopRefresher()
			m.stopRefresher, m.refresherDone = nil, nil
		}
		m.mu.Unlock()
		m.removeStored()
		return Credential{}, res.err
	}

	return m.accept(res.token), nil
}

// RenewInteractive runs the interactive consent flow. The state is unchanged on failure.
func (m *Manager) RenewInteractive(ctx context.Context) (Credential, error) {
	if m.provider == nil {
		return Credential{}, fmt.Errorf("%w: no token provider", shared.ErrAuthFailed)
	}

	tok, err := m.provider.Interactive(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: provider returned no token", shared.ErrAuthFailed)
	}
	return m.accept(tok), nil
}

// SignIn is an interactive renewal from any state.
func (m *Manager) SignIn(ctx context.Context) (Credential, error) {
	cred, err := m.RenewInteractive(ctx)
	if err != nil {
		return Credential{}, err
	}
	m.logger.Info("signed in", "expires", cred.ExpiresAt())
	return cred, nil
}

// SignOut revokes the token best-effort, stops the refresher and clears all derived persisted state.
func (m *Manager) SignOut(ctx context.Context) error {
	m.stopRefreshLoop()

	m.mu.Lock()
	cred := m.cred
	m.cred = nil
	m.transitionLocked(SignedOut, nil)
	clearers := append([]Clearer(nil), m.clearers...)
	m.mu.Unlock()

	if cred != nil && m.provider != nil {
		if err := m.provider.Revoke(ctx, cred.Token); err != nil {
			m.logger.Warn("token revocation failed", "error", err)
		}
	}

	errs := []error{m.removeStored()}
	for _, fn := range clearers {
		errs = append(errs, fn())
	}
	m.logger.Info("signed out")
	return errors.Join(errs...)
}

// Start runs the background refresher until ctx is done or the user signs out.
//
// A later sign-in restarts it under the same ctx. Calling Start while a refresher runs is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseCtx = ctx
	m.startLocked()
}

func (m *Manager) startLocked() {
	if m.baseCtx == nil || m.stopRefresher != nil {
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	done := make(chan struct{})
	m.stopRefresher = cancel
	m.refresherDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.CheckExpiry(ctx); err != nil {
					m.logger.Warn("background renewal failed", "error", err)
				}
			}
		}
	}()
}

func (m *Manager) stopRefreshLoop() {
	m.mu.Lock()
	cancel, done := m.stopRefresher, m.refresherDone
	m.stopRefresher, m.refresherDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Refreshing reports whether the background refresher is running.
func (m *Manager) Refreshing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopRefresher != nil
}

// CheckExpiry renews silently when the credential expires within one check interval.
func (m *Manager) CheckExpiry(ctx context.Context) error {
	m.mu.Lock()
	due := m.state == SignedIn && m.cred != nil &&
		!m.now().Add(m.checkInterval).Before(m.cred.ExpiresAt())
	m.mu.Unlock()

	if !due {
		return nil
	}

	m.logger.Debug("credential near expiry, renewing")
	_, err := m.RenewSilently(ctx)
	return err
}

func (m *Manager) accept(tok *oauth2.Token) Credential {
	cred := newCredential(tok, m.now(), m.ttl)

	m.mu.Lock()
	m.cred = &cred
	m.transitionLocked(SignedIn, nil)
	m.startLocked()
	m.mu.Unlock()

	if m.kv != nil {
		if data, err := shared.MarshalJSON(cred, false); err != nil {
			m.logger.Warn("failed to encode credential", "error", err)
		} else if err := m.kv.Set(CredentialKey, string(data)); err != nil {
			m.logger.Warn("failed to persist credential", "error", err)
		}
	}
	return cred
}

func (m *Manager) removeStored() error {
	if m.kv == nil {
		return nil
	}
	if err := m.kv.Remove(CredentialKey); err != nil {
		m.logger.Warn("failed to remove stored credential", "error", err)
		return err
	}
	return nil
}

func (m *Manager) transitionLocked(to State, cause error) {
	from := m.state
	m.state = to
	if from == to {
		return
	}

	change := StateChange{From: from, To: to, Err: cause}
	for _, ch := range m.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
