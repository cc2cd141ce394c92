package authprovider

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/pkg/auth/session"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/dbtest"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

type memoryActions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemoryActions() *memoryActions {
	return &memoryActions{tokens: map[string]string{}}
}

func (m *memoryActions) Issue(_ context.Context, purpose session.ActionPurpose, subject string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.NewString()
	m.tokens[string(purpose)+":"+token] = subject
	return token, nil
}

func (m *memoryActions) Consume(_ context.Context, purpose session.ActionPurpose, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(purpose) + ":" + token
	subject, ok := m.tokens[key]
	if !ok {
		return "", session.ErrInvalidActionToken
	}
	delete(m.tokens, key)
	return subject, nil
}

type mailed struct {
	kind string
	to   string
	link string
}

type sentMail struct {
	mu   sync.Mutex
	sent []mailed
}

func (s *sentMail) SendVerificationEmail(_ context.Context, to, link string) error {
	s.record("verify", to, link)
	return nil
}

func (s *sentMail) SendPasswordResetEmail(_ context.Context, to, link string) error {
	s.record("reset", to, link)
	return nil
}

func (s *sentMail) record(kind, to, link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, mailed{kind: kind, to: to, link: link})
}

func (s *sentMail) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// last returns the newest mail and the oobCode carried by its link.
func (s *sentMail) last(t *testing.T) (mailed, string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	m := s.sent[len(s.sent)-1]
	u, err := url.Parse(m.link)
	require.NoError(t, err)
	return m, u.Query().Get("oobCode")
}

func TestEmailVerificationFlow(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	cred, err := f.provider.RegisterWithPassword(ctx, "anna@example.com", "correct horse", "Anna", enums.PersistenceLocal)
	require.NoError(t, err)
	assert.False(t, cred.Account.EmailVerified)

	require.NoError(t, f.provider.SendEmailVerification(ctx, cred.AccessToken))
	mail, token := f.mail.last(t)
	assert.Equal(t, "verify", mail.kind)
	assert.Equal(t, "anna@example.com", mail.to)
	assert.Contains(t, mail.link, "https://tokorea.test/auth/action?")
	assert.Contains(t, mail.link, "mode=verifyEmail")
	require.NotEmpty(t, token)

	acct, err := f.provider.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, acct.EmailVerified)
	assert.Equal(t, cred.Account.ID, acct.ID)

	restored, err := f.provider.Restore(ctx, cred.AccessToken)
	require.NoError(t, err)
	assert.True(t, restored.EmailVerified)

	_, err = f.provider.ConfirmEmail(ctx, token)
	requireAuthCode(t, err, ErrInvalidActionCode)

	require.NoError(t, f.provider.SendEmailVerification(ctx, cred.AccessToken))
	assert.Equal(t, 1, f.mail.count(), "a verified email is not mailed again")
}

func TestSendEmailVerificationNeedsLiveSession(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	err := f.provider.SendEmailVerification(ctx, "not-a-jwt")
	requireAuthCode(t, err, ErrInvalidCredential)

	cred, err := f.provider.RegisterWithPassword(ctx, "anna@example.com", "correct horse", "", enums.PersistenceLocal)
	require.NoError(t, err)
	require.NoError(t, f.provider.SignOut(ctx, cred.AccessToken))
	err = f.provider.SendEmailVerification(ctx, cred.AccessToken)
	requireAuthCode(t, err, ErrSessionExpired)
	assert.Zero(t, f.mail.count())
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.provider.RegisterWithPassword(ctx, "anna@example.com", "correct horse", "", enums.PersistenceLocal)
	require.NoError(t, err)

	require.NoError(t, f.provider.SendPasswordReset(ctx, "  ANNA@example.com "))
	mail, token := f.mail.last(t)
	assert.Equal(t, "reset", mail.kind)
	assert.Contains(t, mail.link, "mode=resetPassword")

	err = f.provider.ConfirmPasswordReset(ctx, token, "short")
	requireAuthCode(t, err, ErrWeakPassword)

	require.NoError(t, f.provider.ConfirmPasswordReset(ctx, token, "battery staple"))

	_, err = f.provider.SignInWithPassword(ctx, "anna@example.com", "correct horse", enums.PersistenceLocal)
	requireAuthCode(t, err, ErrWrongPassword)
	_, err = f.provider.SignInWithPassword(ctx, "anna@example.com", "battery staple", enums.PersistenceLocal)
	require.NoError(t, err)

	err = f.provider.ConfirmPasswordReset(ctx, token, "another password")
	requireAuthCode(t, err, ErrInvalidActionCode)
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	err := f.provider.SendPasswordReset(ctx, "ghost@example.com")
	requireAuthCode(t, err, ErrUserNotFound)
	err = f.provider.SendPasswordReset(ctx, "not an email")
	requireAuthCode(t, err, ErrInvalidEmail)
	assert.Zero(t, f.mail.count())
}

func TestActionTokensAreNotInterchangeable(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	cred, err := f.provider.RegisterWithPassword(ctx, "anna@example.com", "correct horse", "", enums.PersistenceLocal)
	require.NoError(t, err)
	require.NoError(t, f.provider.SendEmailVerification(ctx, cred.AccessToken))
	_, verifyToken := f.mail.last(t)

	err = f.provider.ConfirmPasswordReset(ctx, verifyToken, "battery staple")
	requireAuthCode(t, err, ErrInvalidActionCode)

	_, err = f.provider.ConfirmEmail(ctx, verifyToken)
	require.NoError(t, err)
}

func TestEmailActionsDisabledWithoutTokens(t *testing.T) {
	provider, err := NewProvider(ProviderParams{
		Identities:     NewRepository(dbtest.Open(t)),
		Sessions:       newMemorySessions(),
		JWTConfig:      testJWT,
		PasswordConfig: testPasswords,
	})
	require.NoError(t, err)
	ctx := context.Background()

	requireAuthCode(t, provider.SendPasswordReset(ctx, "anna@example.com"), ErrProviderNotConfigured)
	_, err = provider.ConfirmEmail(ctx, "token")
	requireAuthCode(t, err, ErrProviderNotConfigured)
}

func TestClientReloadPicksUpVerification(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	client := NewClient(f.provider)

	_, err := client.Reload(ctx)
	requireAuthCode(t, err, ErrNoCurrentUser)
	requireAuthCode(t, client.SendEmailVerification(ctx), ErrNoCurrentUser)

	_, err = client.Register(ctx, "anna@example.com", "correct horse", "", enums.PersistenceLocal)
	require.NoError(t, err)
	var events []EventType
	client.OnAuthStateChanged(func(_ context.Context, ev AuthEvent) { events = append(events, ev.Type) })

	require.NoError(t, client.SendEmailVerification(ctx))
	_, token := f.mail.last(t)
	_, err = f.provider.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.False(t, client.IsEmailVerified())

	acct, err := client.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, acct.EmailVerified)
	assert.True(t, client.IsEmailVerified())
	assert.Empty(t, events)
}

func TestActionLinkKeepsBaseQuery(t *testing.T) {
	link := actionLink("https://tokorea.test/action?lang=ko", modeResetPassword, "a b")
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "ko", u.Query().Get("lang"))
	assert.Equal(t, "resetPassword", u.Query().Get("mode"))
	assert.Equal(t, "a b", u.Query().Get("oobCode"))
}
