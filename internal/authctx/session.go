// Package authctx holds the identity of one caller session and orchestrates
// sign-in across the auth provider and the profile store.
package authctx

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateSignedOut     State = "signed_out"
	StateSignedIn      State = "signed_in"
	StateClosed        State = "closed"
)

const (
	msgProfileNotFound = "User profile not found"
	msgNoUser          = "No user logged in"
	msgLogoutFailed    = "Failed to logout. Please try again."
)

type identityManager interface {
	LoadProfile(ctx context.Context, accountID string) (*models.User, error)
	CreateProfile(ctx context.Context, accountID string, seed users.ProfileSeed) (*models.User, error)
	TouchLastLogin(ctx context.Context, accountID string)
	LinkProvider(ctx context.Context, accountID string, link users.ProviderLink) error
	UpdateProfile(ctx context.Context, accountID string, update users.ProfileUpdate) (*models.User, error)
	SetEmailVerified(ctx context.Context, accountID string, verified bool) (*models.User, error)
}

type authClient interface {
	OnAuthStateChanged(fn authprovider.StateListener) func()
	Register(ctx context.Context, email, password, displayName string, persistence enums.Persistence) (*authprovider.Credential, error)
	SignInWithPassword(ctx context.Context, email, password string, persistence enums.Persistence) (*authprovider.Credential, error)
	SignInWithGoogle(ctx context.Context, idToken string, persistence enums.Persistence) (*authprovider.Credential, error)
	SignInWithFacebook(ctx context.Context, accessToken string, persistence enums.Persistence) (*authprovider.Credential, error)
	Restore(ctx context.Context, accessToken string) (*authprovider.Account, error)
	Reload(ctx context.Context) (*authprovider.Account, error)
	SendEmailVerification(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Country     string
	Persistence enums.Persistence
}

// Session is the identity holder of one caller. Calls on one Session are not
// deduplicated; the mutex only guards the held state.
type Session struct {
	client authClient
	users  identityManager
	logg   *logger.Logger

	mu          sync.RWMutex
	state       State
	account     *authprovider.Account
	credential  *authprovider.Credential
	profile     *models.User
	errMsg      string
	unsubscribe func()
}

// SessionParams bundles the dependencies of a Session.
type SessionParams struct {
	Client authClient
	Users  identityManager
	Logger *logger.Logger
}

func NewSession(params SessionParams) (*Session, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("auth client is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("identity manager is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Session{
		client: params.Client,
		users:  params.Users,
		logg:   logg,
		state:  StateUninitialized,
	}, nil
}

// Start subscribes to the provider's auth state. Starting twice is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "session is closed")
	case StateUninitialized:
		s.unsubscribe = s.client.OnAuthStateChanged(s.onAuthState)
		s.state = StateSignedOut
	}
	return nil
}

// Close drops the auth-state listener and the held identity.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.state = StateClosed
	s.account, s.credential, s.profile = nil, nil, nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Restore adopts a bearer token. The profile is loaded by the auth-state
// listener; a missing profile leaves the session signed in without one.
// Restoring never stamps lastLoginAt.
func (s *Session) Restore(ctx context.Context, accessToken string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.client.Restore(ctx, accessToken); err != nil {
		return s.fail(ctx, "restore", err)
	}
	return nil
}

// Register creates the provider account and its student profile.
func (s *Session) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(input.FirstName + " " + input.LastName)
	cred, err := s.client.Register(ctx, input.Email, input.Password, displayName, input.Persistence)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}
	if _, err := s.users.CreateProfile(ctx, cred.Account.ID, users.ProfileSeed{
		Email:         cred.Account.Email,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Country:       input.Country,
		Role:          enums.RoleStudent,
		EmailVerified: cred.Account.EmailVerified,
		AuthProviders: []users.ProviderLink{{ProviderID: enums.AuthProviderPassword, Email: cred.Account.Email}},
	}); err != nil {
		return nil, s.fail(ctx, "register", err)
	}
	profile, err := s.users.LoadProfile(ctx, cred.Account.ID)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}
	s.hold(cred, profile)
	_ = pkgerrors.RunStep(ctx, pkgerrors.Step{
		Name:     "send_verification_email",
		Severity: pkgerrors.SeverityBestEffort,
		Run:      s.client.SendEmailVerification,
	}, s.reportBestEffort)
	return profile, nil
}

// Login signs in with email and password and requires an existing profile.
func (s *Session) Login(ctx context.Context, email, password string, persistence enums.Persistence) (*models.User, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	cred, err := s.client.SignInWithPassword(ctx, email, password, persistence)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	profile, err := s.users.LoadProfile(ctx, cred.Account.ID)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	if profile == nil {
		return nil, s.fail(ctx, "login", pkgerrors.New(pkgerrors.CodeNotFound, msgProfileNotFound))
	}
	s.users.TouchLastLogin(ctx, cred.Account.ID)
	s.hold(cred, profile)
	return profile, nil
}

func (s *Session) LoginWithGoogle(ctx context.Context, idToken string, persistence enums.Persistence) (*models.User, error) {
	return s.loginSocial(ctx, enums.AuthProviderGoogle, func() (*authprovider.Credential, error) {
		return s.client.SignInWithGoogle(ctx, idToken, persistence)
	})
}

func (s *Session) LoginWithFacebook(ctx context.Context, accessToken string, persistence enums.Persistence) (*models.User, error) {
	return s.loginSocial(ctx, enums.AuthProviderFacebook, func() (*authprovider.Credential, error) {
		return s.client.SignInWithFacebook(ctx, accessToken, persistence)
	})
}

// loginSocial touches and links an existing profile, or seeds a new one from
// the provider claims.
func (s *Session) loginSocial(ctx context.Context, provider enums.AuthProviderID, signIn func() (*authprovider.Credential, error)) (*models.User, error) {
	op := "login_" + strings.TrimSuffix(provider.String(), ".com")
	if err := s.begin(); err != nil {
		return nil, err
	}
	cred, err := signIn()
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	acct := cred.Account

	existing, err := s.users.LoadProfile(ctx, acct.ID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if existing == nil {
		seed := users.ExtractProfileFromSocial(acct.Email, acct.DisplayName, acct.PhotoURL, provider)
		created, err := s.users.CreateProfile(ctx, acct.ID, seed)
		switch {
		case err == nil:
			s.hold(cred, created)
			return created, nil
		case !pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			return nil, s.fail(ctx, op, err)
		}
		// Lost a concurrent first sign-in; fall through to the existing-profile path.
	} else {
		s.users.TouchLastLogin(ctx, acct.ID)
	}

	if err := s.users.LinkProvider(ctx, acct.ID, users.ProviderLink{ProviderID: provider, Email: acct.Email}); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	profile, err := s.users.LoadProfile(ctx, acct.ID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if profile == nil {
		return nil, s.fail(ctx, op, pkgerrors.New(pkgerrors.CodeNotFound, msgProfileNotFound))
	}
	s.hold(cred, profile)
	return profile, nil
}

// Logout revokes the sign-in. The listener clears the held identity.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.client.SignOut(ctx); err != nil {
		return s.fail(ctx, "logout", pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgLogoutFailed))
	}
	s.clear()
	return nil
}

// SendVerificationEmail mails a confirmation link for the signed-in account.
func (s *Session) SendVerificationEmail(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.client.SendEmailVerification(ctx); err != nil {
		return s.fail(ctx, "send_verification_email", err)
	}
	return nil
}

// ReloadUser re-reads the account from the provider. A newly verified email
// is copied onto the profile; the profile flag is never cleared here.
func (s *Session) ReloadUser(ctx context.Context) (*models.User, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	current := s.Profile()
	if current == nil {
		return nil, s.fail(ctx, "reload_user", pkgerrors.New(pkgerrors.CodeUnauthorized, msgNoUser))
	}
	acct, err := s.client.Reload(ctx)
	if err != nil {
		return nil, s.fail(ctx, "reload_user", err)
	}

	var profile *models.User
	if acct.EmailVerified && !current.EmailVerified {
		profile, err = s.users.SetEmailVerified(ctx, acct.ID, true)
	} else {
		profile, err = s.users.LoadProfile(ctx, acct.ID)
	}
	if err != nil {
		return nil, s.fail(ctx, "reload_user", err)
	}
	if profile == nil {
		return nil, s.fail(ctx, "reload_user", pkgerrors.New(pkgerrors.CodeNotFound, msgProfileNotFound))
	}

	s.mu.Lock()
	held := *acct
	s.account = &held
	s.profile = profile
	s.mu.Unlock()
	return profile, nil
}

// IsEmailVerified reports the provider's view of the held account.
func (s *Session) IsEmailVerified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account != nil && s.account.EmailVerified
}

// ResetPassword mails a reset link. It needs no sign-in.
func (s *Session) ResetPassword(ctx context.Context, email string) error {
	if err := s.begin(); err != nil {
		return err
	}
	if err := s.client.SendPasswordReset(ctx, email); err != nil {
		return s.fail(ctx, "reset_password", err)
	}
	return nil
}

// UpdateProfile merges update into the held profile.
func (s *Session) UpdateProfile(ctx context.Context, update users.ProfileUpdate) (*models.User, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	current := s.Profile()
	if current == nil {
		return nil, s.fail(ctx, "update_profile", pkgerrors.New(pkgerrors.CodeUnauthorized, msgNoUser))
	}
	updated, err := s.users.UpdateProfile(ctx, current.ID, update)
	if err != nil {
		return nil, s.fail(ctx, "update_profile", err)
	}
	s.mu.Lock()
	s.profile = updated
	s.mu.Unlock()
	return updated, nil
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Profile returns a copy of the held profile, or nil.
func (s *Session) Profile() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	profile := *s.profile
	return &profile
}

// Account returns the provider account, which may exist without a profile.
func (s *Session) Account() *authprovider.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return nil
	}
	acct := *s.account
	return &acct
}

// Credential returns the tokens of the latest interactive sign-in. A restored
// session has none.
func (s *Session) Credential() *authprovider.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Err returns the message of the latest failed operation.
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Session) HasRole(role enums.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.profile.Role == role
}

func (s *Session) HasAnyRole(roles ...enums.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return false
	}
	for _, role := range roles {
		if s.profile.Role == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the held profile has any back-office role.
func (s *Session) IsAdmin() bool {
	return s.HasAnyRole(enums.AdminRoles()...)
}

func (s *Session) onAuthState(ctx context.Context, event authprovider.AuthEvent) {
	switch event.Type {
	case authprovider.EventSignedOut:
		s.clear()
	case authprovider.EventSignedIn:
		s.mu.Lock()
		s.account = event.Account
		s.state = StateSignedIn
		s.mu.Unlock()
	case authprovider.EventRestored:
		s.mu.Lock()
		s.account = event.Account
		s.state = StateSignedIn
		s.mu.Unlock()
		s.loadRestored(ctx, event.Account)
	}
}

func (s *Session) loadRestored(ctx context.Context, acct *authprovider.Account) {
	if acct == nil {
		return
	}
	profile, err := s.users.LoadProfile(ctx, acct.ID)
	if err != nil {
		_ = s.fail(ctx, "restore_profile", err)
		return
	}
	// lastLoginAt tracks interactive sign-ins only; a restore runs on every request
	if profile == nil {
		s.logg.Warn(s.logg.WithUserID(ctx, acct.ID), "profile not found for authenticated account")
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
}

func (s *Session) ready() error {
	switch s.State() {
	case StateUninitialized:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "session not started")
	case StateClosed:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "session is closed")
	}
	return nil
}

// begin clears the error slot for a new operation.
func (s *Session) begin() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

func (s *Session) hold(cred *authprovider.Credential, profile *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := cred.Account
	s.account = &acct
	s.credential = cred
	s.profile = profile
	s.state = StateSignedIn
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account, s.credential, s.profile = nil, nil, nil
	if s.state != StateClosed {
		s.state = StateSignedOut
	}
}

func (s *Session) reportBestEffort(ctx context.Context, step string, err error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{"step": step, "error": err.Error()})
	s.logg.Warn(logCtx, "best-effort step failed")
}

// fail records the human message of err and hands err back to the caller.
func (s *Session) fail(ctx context.Context, op string, err error) error {
	msg := authprovider.MessageFor("")
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		msg = typed.Message()
	}
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()

	logCtx := s.logg.WithField(ctx, "operation", op)
	s.logg.Warn(logCtx, "session operation failed: "+msg)
	return err
}
