// Package session owns the lifecycle of the single temporary mailbox:
// provisioning, authentication, the client-side expiry clock and teardown.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nhle/meltmail/internal/credential"
	"github.com/nhle/meltmail/internal/provider"
	"github.com/nhle/meltmail/internal/schedule"
)

// DefaultLifetime is how long a mailbox is shown as usable after creation.
const DefaultLifetime = 10 * time.Minute

// credentialKey is the credential store key of the active mailbox.
const credentialKey = "active-mailbox"

const (
	localPartLength = 8
	passwordLength  = 12
	maxSuffix       = 9999
)

// Provider is the part of the provider API the session needs.
type Provider interface {
	ListDomains(ctx context.Context) []string
	CreateAccount(ctx context.Context, address, password string) (*provider.Account, error)
	FetchToken(ctx context.Context, address, password string) (string, error)
}

// Account is a provisioned mailbox.
type Account struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Session holds at most one mailbox. All methods are safe for concurrent
// use.
type Session struct {
	provider Provider
	creds    credential.Store
	now      func() time.Time
	tick     time.Duration
	lifetime time.Duration

	mu         sync.Mutex
	address    string
	token      string
	expiresAt  time.Time
	expired    bool
	generation uint64
	ticker     *schedule.Task
	listener   func(Countdown)
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTickInterval sets how often the countdown listener is called.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.tick = d }
}

// WithLifetime sets the expiry used by Start.
func WithLifetime(d time.Duration) Option {
	return func(s *Session) { s.lifetime = d }
}

// WithCredentials sets where the mailbox password is kept.
func WithCredentials(store credential.Store) Option {
	return func(s *Session) { s.creds = store }
}

// New creates an empty session.
func New(p Provider, opts ...Option) *Session {
	s := &Session{
		provider: p,
		creds:    credential.NewMemory(),
		now:      time.Now,
		tick:     time.Second,
		lifetime: DefaultLifetime,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnTick registers the countdown listener. It is called from the ticker
// goroutine and must not call Destroy or StartExpiry.
func (s *Session) OnTick(fn func(Countdown)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Provision creates a mailbox named after preferredName on the first
// domain the provider offers. The session itself is not changed.
func (s *Session) Provision(ctx context.Context, preferredName string) (Account, error) {
	domain := provider.DefaultFallbackDomain
	if domains := s.provider.ListDomains(ctx); len(domains) > 0 {
		domain = domains[0]
	}

	local := SanitizeName(preferredName)
	if local == "" {
		local = randomToken(localPartLength)
	}
	address := fmt.Sprintf("%s%d@%s", local, randomInt(1, maxSuffix), domain)
	password := randomToken(passwordLength)

	acct, err := s.provider.CreateAccount(ctx, address, password)
	if err != nil {
		return Account{}, err
	}
	return Account{Address: acct.Address, Password: password}, nil
}

// Authenticate exchanges credentials for a bearer token. The session
// itself is not changed.
func (s *Session) Authenticate(ctx context.Context, address, password string) (string, error) {
	return s.provider.FetchToken(ctx, address, password)
}

// Start provisions and authenticates a new mailbox, replaces any current
// one and starts its expiry clock. On failure the session is unchanged.
func (s *Session) Start(ctx context.Context, preferredName string) (Account, error) {
	acct, err := s.Provision(ctx, preferredName)
	if err != nil {
		return Account{}, err
	}
	token, err := s.Authenticate(ctx, acct.Address, acct.Password)
	if err != nil {
		return Account{}, err
	}

	if err := s.saveCredential(acct); err != nil {
		log.Printf("storing mailbox credential: %v", err)
	}

	s.mu.Lock()
	s.address = acct.Address
	s.token = token
	s.generation++
	s.mu.Unlock()

	s.StartExpiry(s.lifetime)
	return acct, nil
}

// StartExpiry sets the deadline to now+d and reports the countdown to the
// listener immediately and then every tick until it runs out.
func (s *Session) StartExpiry(d time.Duration) {
	s.mu.Lock()
	old := s.ticker
	s.ticker = nil
	s.expiresAt = s.now().Add(d)
	s.expired = false
	s.mu.Unlock()

	old.Cancel()

	if !s.emit() {
		return
	}

	task := schedule.Every(s.tick, s.emit)

	s.mu.Lock()
	if s.ticker == nil && !s.expiresAt.IsZero() {
		s.ticker = task
		task = nil
	}
	s.mu.Unlock()

	// Lost a race with Destroy or another StartExpiry.
	task.Cancel()
}

// emit sends the current countdown to the listener and reports whether
// the clock should keep running.
func (s *Session) emit() bool {
	s.mu.Lock()
	c := s.countdownLocked()
	if c.Active && c.Remaining <= 0 {
		s.expired = true
		c.Expired = true
	}
	fn := s.listener
	s.mu.Unlock()

	if fn != nil {
		fn(c)
	}
	return c.Active && !c.Expired
}

// Expired reports whether the deadline has passed. A session that was
// never started is not expired.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked()
}

func (s *Session) expiredLocked() bool {
	return !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)
}

// Remaining returns the time left, clamped at zero.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() time.Duration {
	if s.expiresAt.IsZero() {
		return 0
	}
	if d := s.expiresAt.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// Countdown returns a snapshot of the expiry clock.
func (s *Session) Countdown() Countdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdownLocked()
}

func (s *Session) countdownLocked() Countdown {
	if s.expiresAt.IsZero() {
		return Countdown{}
	}
	return Countdown{
		Remaining: s.remainingLocked(),
		Active:    true,
		Expired:   s.expired || s.expiredLocked(),
	}
}

// Reauthenticate fetches a fresh token with the stored credential and
// installs it if the mailbox has not changed meanwhile.
func (s *Session) Reauthenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	address, gen := s.address, s.generation
	s.mu.Unlock()

	if address == "" {
		return "", provider.ErrNoToken
	}

	acct, err := s.loadCredential()
	if err != nil {
		return "", err
	}
	if acct.Address != address {
		return "", fmt.Errorf("stored credential is for %s, not %s", acct.Address, address)
	}

	token, err := s.provider.FetchToken(ctx, acct.Address, acct.Password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return "", errors.New("mailbox changed during re-authentication")
	}
	s.token = token
	return token, nil
}

// Destroy forgets the mailbox and stops the expiry clock. The provider
// account is not deleted. Calling Destroy on an empty session is a no-op.
func (s *Session) Destroy() {
	s.mu.Lock()
	task := s.ticker
	hadMailbox := s.address != ""
	s.ticker = nil
	s.address = ""
	s.token = ""
	s.expiresAt = time.Time{}
	s.expired = false
	if hadMailbox {
		s.generation++
	}
	s.mu.Unlock()

	task.Cancel()

	if err := s.creds.Delete(credentialKey); err != nil {
		log.Printf("deleting mailbox credential: %v", err)
	}
}

// PurgeCredential removes a credential left behind by an earlier run.
func (s *Session) PurgeCredential() error {
	return s.creds.Delete(credentialKey)
}

// Address returns the active address, or "" when there is none.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Token returns the bearer token, or "" when there is none.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Generation identifies the current mailbox. It changes whenever a
// mailbox is started or destroyed, so results fetched for an older
// mailbox can be recognised and dropped.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Active reports whether a mailbox exists.
func (s *Session) Active() bool {
	return s.Address() != ""
}

func (s *Session) saveCredential(acct Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	return s.creds.Set(credentialKey, string(data))
}

func (s *Session) loadCredential() (Account, error) {
	raw, err := s.creds.Get(credentialKey)
	if err != nil {
		return Account{}, err
	}
	var acct Account
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return Account{}, fmt.Errorf("decoding credential: %w", err)
	}
	return acct, nil
}
