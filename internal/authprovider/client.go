package authprovider

import (
	"context"
	"sort"
	"sync"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// EventType names an auth-state transition.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventRestored  EventType = "restored"
	EventSignedOut EventType = "signed_out"
)

// AuthEvent is delivered to state listeners. Account is nil on sign-out.
type AuthEvent struct {
	Type    EventType
	Account *Account
}

// StateListener observes auth-state transitions of one Client.
type StateListener func(ctx context.Context, event AuthEvent)

// Backend is the provider surface a Client drives.
type Backend interface {
	RegisterWithPassword(ctx context.Context, email, password, displayName string, persistence enums.Persistence) (*Credential, error)
	SignInWithPassword(ctx context.Context, email, password string, persistence enums.Persistence) (*Credential, error)
	SignInWithGoogle(ctx context.Context, idToken string, persistence enums.Persistence) (*Credential, error)
	SignInWithFacebook(ctx context.Context, accessToken string, persistence enums.Persistence) (*Credential, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*Credential, error)
	SignOut(ctx context.Context, accessToken string) error
	Restore(ctx context.Context, accessToken string) (*Account, error)
	SendEmailVerification(ctx context.Context, accessToken string) error
	SendPasswordReset(ctx context.Context, email string) error
}

// Client holds the auth state of a single caller session and fans state
// changes out to listeners. Listeners run synchronously on the goroutine that
// caused the transition.
type Client struct {
	backend Backend

	mu          sync.Mutex
	account     *Account
	accessToken string
	listeners   map[uint64]StateListener
	nextID      uint64
}

var _ Backend = (*Provider)(nil)

// NewClient returns a signed-out client.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend, listeners: map[uint64]StateListener{}}
}

// OnAuthStateChanged registers fn and returns its cancel func. Cancelling
// twice is harmless.
func (c *Client) OnAuthStateChanged(fn StateListener) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// CurrentAccount returns the signed-in account, or nil.
func (c *Client) CurrentAccount() *Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil {
		return nil
	}
	acct := *c.account
	return &acct
}

// AccessToken returns the bearer token of the current sign-in.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) Register(ctx context.Context, email, password, displayName string, persistence enums.Persistence) (*Credential, error) {
	return c.signedIn(ctx)(c.backend.RegisterWithPassword(ctx, email, password, displayName, persistence))
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string, persistence enums.Persistence) (*Credential, error) {
	return c.signedIn(ctx)(c.backend.SignInWithPassword(ctx, email, password, persistence))
}

func (c *Client) SignInWithGoogle(ctx context.Context, idToken string, persistence enums.Persistence) (*Credential, error) {
	return c.signedIn(ctx)(c.backend.SignInWithGoogle(ctx, idToken, persistence))
}

func (c *Client) SignInWithFacebook(ctx context.Context, accessToken string, persistence enums.Persistence) (*Credential, error) {
	return c.signedIn(ctx)(c.backend.SignInWithFacebook(ctx, accessToken, persistence))
}

// Refresh rotates the current sign-in. It does not notify listeners; the
// account is unchanged.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	cred, err := c.backend.Refresh(ctx, c.AccessToken(), refreshToken)
	if err != nil {
		return nil, err
	}
	c.set(&cred.Account, cred.AccessToken)
	return cred, nil
}

// Restore adopts an existing bearer token and emits EventRestored.
func (c *Client) Restore(ctx context.Context, accessToken string) (*Account, error) {
	acct, err := c.backend.Restore(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	c.set(acct, accessToken)
	c.emit(ctx, AuthEvent{Type: EventRestored, Account: acct})
	return acct, nil
}

// Reload re-reads the current account, picking up a freshly verified email.
// Listeners are not notified.
func (c *Client) Reload(ctx context.Context) (*Account, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, newError(ErrNoCurrentUser, nil)
	}
	acct, err := c.backend.Restore(ctx, token)
	if err != nil {
		return nil, err
	}
	c.set(acct, token)
	return acct, nil
}

// IsEmailVerified reports the verified flag of the current account.
func (c *Client) IsEmailVerified() bool {
	acct := c.CurrentAccount()
	return acct != nil && acct.EmailVerified
}

// SendEmailVerification mails a confirmation link for the current account.
func (c *Client) SendEmailVerification(ctx context.Context) error {
	token := c.AccessToken()
	if token == "" {
		return newError(ErrNoCurrentUser, nil)
	}
	return c.backend.SendEmailVerification(ctx, token)
}

// SendPasswordReset needs no sign-in.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.backend.SendPasswordReset(ctx, email)
}

// SignOut revokes the current sign-in and emits EventSignedOut. A client
// that was never signed in only emits.
func (c *Client) SignOut(ctx context.Context) error {
	if token := c.AccessToken(); token != "" {
		if err := c.backend.SignOut(ctx, token); err != nil {
			return err
		}
	}
	c.set(nil, "")
	c.emit(ctx, AuthEvent{Type: EventSignedOut})
	return nil
}

func (c *Client) signedIn(ctx context.Context) func(*Credential, error) (*Credential, error) {
	return func(cred *Credential, err error) (*Credential, error) {
		if err != nil {
			return nil, err
		}
		acct := cred.Account
		c.set(&acct, cred.AccessToken)
		c.emit(ctx, AuthEvent{Type: EventSignedIn, Account: &acct})
		return cred, nil
	}
}

func (c *Client) set(acct *Account, token string) {
	c.mu.Lock()
	c.account = acct
	c.accessToken = token
	c.mu.Unlock()
}

// emit calls listeners in registration order outside the lock so a listener
// may cancel itself.
func (c *Client) emit(ctx context.Context, event AuthEvent) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]StateListener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, event)
	}
}
