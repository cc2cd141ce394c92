package authctx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/dbtest"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
)

// fakeClient stands in for the auth provider. Accounts are keyed by the
// token or email the test passes in.
type fakeClient struct {
	accounts  map[string]authprovider.Account
	listener  authprovider.StateListener
	cancelled bool
	signOut   error

	current       string
	verifications int
	resets        []string
	mailErr       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{accounts: map[string]authprovider.Account{}}
}

func (f *fakeClient) OnAuthStateChanged(fn authprovider.StateListener) func() {
	f.listener = fn
	return func() { f.cancelled = true; f.listener = nil }
}

func (f *fakeClient) emit(ctx context.Context, ev authprovider.AuthEvent) {
	if f.listener != nil {
		f.listener(ctx, ev)
	}
}

func (f *fakeClient) credential(ctx context.Context, key string) (*authprovider.Credential, error) {
	acct, ok := f.accounts[key]
	if !ok {
		return nil, errors.New("unknown account")
	}
	f.current = key
	f.emit(ctx, authprovider.AuthEvent{Type: authprovider.EventSignedIn, Account: &acct})
	return &authprovider.Credential{Account: acct, AccessToken: "at-" + acct.ID, Persistence: enums.PersistenceLocal}, nil
}

func (f *fakeClient) Register(ctx context.Context, email, _, _ string, _ enums.Persistence) (*authprovider.Credential, error) {
	f.accounts[email] = authprovider.Account{ID: "acct-" + email, Email: email, ProviderID: enums.AuthProviderPassword}
	return f.credential(ctx, email)
}

func (f *fakeClient) SignInWithPassword(ctx context.Context, email, _ string, _ enums.Persistence) (*authprovider.Credential, error) {
	return f.credential(ctx, email)
}

func (f *fakeClient) SignInWithGoogle(ctx context.Context, token string, _ enums.Persistence) (*authprovider.Credential, error) {
	return f.credential(ctx, token)
}

func (f *fakeClient) SignInWithFacebook(ctx context.Context, token string, _ enums.Persistence) (*authprovider.Credential, error) {
	return f.credential(ctx, token)
}

func (f *fakeClient) Restore(ctx context.Context, token string) (*authprovider.Account, error) {
	acct, ok := f.accounts[token]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "No account found with this email.")
	}
	f.current = token
	f.emit(ctx, authprovider.AuthEvent{Type: authprovider.EventRestored, Account: &acct})
	return &acct, nil
}

func (f *fakeClient) Reload(_ context.Context) (*authprovider.Account, error) {
	acct, ok := f.accounts[f.current]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "No user is currently signed in.")
	}
	return &acct, nil
}

func (f *fakeClient) SendEmailVerification(_ context.Context) error {
	if f.mailErr != nil {
		return f.mailErr
	}
	f.verifications++
	return nil
}

func (f *fakeClient) SendPasswordReset(_ context.Context, email string) error {
	if f.mailErr != nil {
		return f.mailErr
	}
	f.resets = append(f.resets, email)
	return nil
}

func (f *fakeClient) SignOut(ctx context.Context) error {
	if f.signOut != nil {
		return f.signOut
	}
	f.emit(ctx, authprovider.AuthEvent{Type: authprovider.EventSignedOut})
	return nil
}

func newStartedSession(t *testing.T) (*Session, *fakeClient, *users.Manager) {
	t.Helper()
	mgr, err := users.NewManager(users.ManagerParams{Repo: users.NewRepository(dbtest.Open(t))})
	require.NoError(t, err)
	client := newFakeClient()
	sess, err := NewSession(SessionParams{Client: client, Users: mgr})
	require.NoError(t, err)
	require.NoError(t, sess.Start())
	return sess, client, mgr
}

func TestSessionLifecycle(t *testing.T) {
	sess, client, _ := newStartedSession(t)
	assert.Equal(t, StateSignedOut, sess.State())
	require.NoError(t, sess.Start())

	sess.Close()
	assert.Equal(t, StateClosed, sess.State())
	assert.True(t, client.cancelled)
	require.Error(t, sess.Start())

	_, err := sess.Login(context.Background(), "a@example.com", "pw", enums.PersistenceLocal)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestSessionRequiresStart(t *testing.T) {
	sess, err := NewSession(SessionParams{Client: newFakeClient(), Users: &users.Manager{}})
	require.NoError(t, err)

	_, err = sess.Login(context.Background(), "a@example.com", "pw", enums.PersistenceLocal)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRegisterCreatesStudentProfile(t *testing.T) {
	sess, _, _ := newStartedSession(t)

	profile, err := sess.Register(context.Background(), RegisterInput{
		Email:     "anna@example.com",
		Password:  "correct horse",
		FirstName: "Anna",
		LastName:  "Kim",
		Country:   "DE",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleStudent, profile.Role)
	assert.False(t, profile.EmailVerified)
	require.Len(t, profile.AuthProviders, 1)
	assert.Equal(t, enums.AuthProviderPassword, profile.AuthProviders[0].ProviderID)
	assert.Equal(t, StateSignedIn, sess.State())
	assert.False(t, sess.IsAdmin())
	assert.True(t, sess.HasRole(enums.RoleStudent))
}

func TestLoginWithoutProfileFails(t *testing.T) {
	sess, client, _ := newStartedSession(t)
	client.accounts["ghost@example.com"] = authprovider.Account{ID: "ghost", Email: "ghost@example.com"}

	_, err := sess.Login(context.Background(), "ghost@example.com", "pw", enums.PersistenceLocal)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, "User profile not found", sess.Err())
	assert.Nil(t, sess.Profile())
}

func TestLoginWithGoogleCreatesThenLinks(t *testing.T) {
	sess, client, mgr := newStartedSession(t)
	ctx := context.Background()
	client.accounts["g-token"] = authprovider.Account{
		ID:            "acct-1",
		Email:         "anna@gmail.com",
		DisplayName:   "Anna Maria Schmidt",
		EmailVerified: true,
		ProviderID:    enums.AuthProviderGoogle,
	}

	profile, err := sess.LoginWithGoogle(ctx, "g-token", enums.PersistenceLocal)
	require.NoError(t, err)
	assert.Equal(t, "Anna", profile.FirstName)
	assert.Equal(t, "Maria Schmidt", profile.LastName)
	assert.True(t, profile.EmailVerified)

	client.accounts["fb-token"] = authprovider.Account{ID: "acct-1", Email: "anna@gmail.com", ProviderID: enums.AuthProviderFacebook}
	profile, err = sess.LoginWithFacebook(ctx, "fb-token", enums.PersistenceLocal)
	require.NoError(t, err)
	assert.Len(t, profile.AuthProviders, 2)

	_, err = sess.LoginWithGoogle(ctx, "g-token", enums.PersistenceLocal)
	require.NoError(t, err)
	stored, err := mgr.LoadProfile(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, stored.AuthProviders, 2)
}

func TestSocialLoginFallsBackOnConcurrentCreate(t *testing.T) {
	sess, client, mgr := newStartedSession(t)
	ctx := context.Background()
	client.accounts["g-token"] = authprovider.Account{ID: "acct-1", Email: "anna@gmail.com", ProviderID: enums.AuthProviderGoogle}

	racing := &racingManager{Manager: mgr}
	sess.users = racing

	profile, err := sess.LoginWithGoogle(ctx, "g-token", enums.PersistenceLocal)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", profile.ID)
	assert.True(t, racing.raced)
}

// racingManager creates the profile behind the caller's back on the first
// CreateProfile, so the caller's own insert conflicts.
type racingManager struct {
	*users.Manager
	raced bool
}

func (r *racingManager) CreateProfile(ctx context.Context, accountID string, seed users.ProfileSeed) (*models.User, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.Manager.CreateProfile(ctx, accountID, seed); err != nil {
			return nil, err
		}
	}
	return r.Manager.CreateProfile(ctx, accountID, seed)
}

func TestRestoreLoadsProfileThroughListener(t *testing.T) {
	sess, client, mgr := newStartedSession(t)
	ctx := context.Background()
	client.accounts["at-acct-1"] = authprovider.Account{ID: "acct-1", Email: "anna@example.com"}
	_, err := mgr.CreateProfile(ctx, "acct-1", users.ProfileSeed{Email: "anna@example.com", Role: enums.RoleSuperAdmin})
	require.NoError(t, err)

	require.NoError(t, sess.Restore(ctx, "at-acct-1"))
	require.NotNil(t, sess.Profile())
	assert.Equal(t, StateSignedIn, sess.State())
	assert.True(t, sess.IsAdmin())
	assert.True(t, sess.HasAnyRole(enums.RoleAnalyst, enums.RoleSuperAdmin))
	assert.Nil(t, sess.Credential())

	err = sess.Restore(ctx, "unknown")
	require.Error(t, err)
	assert.Equal(t, "No account found with this email.", sess.Err())
}

func TestRestoreLeavesLastLoginAlone(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr, err := users.NewManager(users.ManagerParams{
		Repo:  users.NewRepository(dbtest.Open(t)),
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)
	client := newFakeClient()
	sess, err := NewSession(SessionParams{Client: client, Users: mgr})
	require.NoError(t, err)
	require.NoError(t, sess.Start())

	client.accounts["at-acct-1"] = authprovider.Account{ID: "acct-1", Email: "anna@example.com"}
	client.accounts["anna@example.com"] = client.accounts["at-acct-1"]
	_, err = mgr.CreateProfile(ctx, "acct-1", users.ProfileSeed{Email: "anna@example.com", Role: enums.RoleStudent})
	require.NoError(t, err)
	created := now

	for i := 0; i < 2; i++ {
		now = now.Add(time.Hour)
		require.NoError(t, sess.Restore(ctx, "at-acct-1"))
		require.NotNil(t, sess.Profile())
	}
	stored, err := mgr.LoadProfile(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, stored.LastLoginAt.Equal(created), "restore moved lastLoginAt to %s", stored.LastLoginAt)

	now = now.Add(time.Hour)
	_, err = sess.Login(ctx, "anna@example.com", "pw", enums.PersistenceLocal)
	require.NoError(t, err)
	stored, err = mgr.LoadProfile(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, stored.LastLoginAt.Equal(now))
}

func TestRegisterSendsVerificationEmail(t *testing.T) {
	sess, client, _ := newStartedSession(t)
	ctx := context.Background()

	_, err := sess.Register(ctx, RegisterInput{Email: "anna@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.verifications)

	client.mailErr = errors.New("smtp down")
	_, err = sess.Register(ctx, RegisterInput{Email: "min@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Empty(t, sess.Err())
}

func TestReloadUserCopiesVerifiedFlag(t *testing.T) {
	sess, client, mgr := newStartedSession(t)
	ctx := context.Background()

	_, err := sess.ReloadUser(ctx)
	require.Error(t, err)
	assert.Equal(t, "No user logged in", sess.Err())

	_, err = sess.Register(ctx, RegisterInput{Email: "anna@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.False(t, sess.IsEmailVerified())

	profile, err := sess.ReloadUser(ctx)
	require.NoError(t, err)
	assert.False(t, profile.EmailVerified)

	acct := client.accounts["anna@example.com"]
	acct.EmailVerified = true
	client.accounts["anna@example.com"] = acct

	profile, err = sess.ReloadUser(ctx)
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified)
	assert.True(t, sess.IsEmailVerified())
	assert.True(t, sess.Profile().EmailVerified)
	stored, err := mgr.LoadProfile(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	acct.EmailVerified = false
	client.accounts["anna@example.com"] = acct
	profile, err = sess.ReloadUser(ctx)
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified, "reload never clears a verified profile")
	assert.False(t, sess.IsEmailVerified())
}

func TestSendVerificationAndResetPassword(t *testing.T) {
	sess, client, _ := newStartedSession(t)
	ctx := context.Background()

	require.NoError(t, sess.ResetPassword(ctx, "anna@example.com"))
	assert.Equal(t, []string{"anna@example.com"}, client.resets)

	client.mailErr = pkgerrors.New(pkgerrors.CodeDependency, "Failed to send verification email. Please try again.")
	require.Error(t, sess.SendVerificationEmail(ctx))
	assert.Equal(t, "Failed to send verification email. Please try again.", sess.Err())

	client.mailErr = nil
	require.NoError(t, sess.SendVerificationEmail(ctx))
	assert.Empty(t, sess.Err())
	assert.Equal(t, 1, client.verifications)
}

func TestLogoutClearsState(t *testing.T) {
	sess, client, _ := newStartedSession(t)
	ctx := context.Background()

	_, err := sess.Register(ctx, RegisterInput{Email: "anna@example.com", Password: "correct horse"})
	require.NoError(t, err)

	client.signOut = errors.New("redis down")
	require.Error(t, sess.Logout(ctx))
	assert.Equal(t, "Failed to logout. Please try again.", sess.Err())
	assert.NotNil(t, sess.Profile())

	client.signOut = nil
	require.NoError(t, sess.Logout(ctx))
	assert.Empty(t, sess.Err())
	assert.Nil(t, sess.Profile())
	assert.Nil(t, sess.Account())
	assert.Equal(t, StateSignedOut, sess.State())
	assert.False(t, sess.HasRole(enums.RoleStudent))
}

func TestUpdateProfile(t *testing.T) {
	sess, _, _ := newStartedSession(t)
	ctx := context.Background()

	country := "KR"
	_, err := sess.UpdateProfile(ctx, users.ProfileUpdate{Country: &country})
	require.Error(t, err)
	assert.Equal(t, "No user logged in", sess.Err())

	_, err = sess.Register(ctx, RegisterInput{Email: "anna@example.com", Password: "correct horse", FirstName: "Anna"})
	require.NoError(t, err)

	updated, err := sess.UpdateProfile(ctx, users.ProfileUpdate{Country: &country})
	require.NoError(t, err)
	require.NotNil(t, updated.Country)
	assert.Equal(t, "KR", *sess.Profile().Country)
}
