package authprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgAuth "github.com/tomaskub292929/to-korea-sub000/pkg/auth"
	"github.com/tomaskub292929/to-korea-sub000/pkg/auth/session"
	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/security"
)

const identityUniqueIndex = "ux_auth_identities_provider_subject"

const msgVerificationFailed = "Failed to send verification email. Please try again."

type identityRepository interface {
	Create(ctx context.Context, identity *models.AuthIdentity) error
	FindBySubject(ctx context.Context, provider enums.AuthProviderID, subject string) (*models.AuthIdentity, error)
	FindByAccount(ctx context.Context, accountID string, provider enums.AuthProviderID) (*models.AuthIdentity, error)
	FindByEmail(ctx context.Context, email string) ([]models.AuthIdentity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AuthIdentity, error)
	TouchSignIn(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, persistence enums.Persistence) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
	HasSession(ctx context.Context, accessID string) (bool, error)
	TTL(persistence enums.Persistence) time.Duration
}

type actionTokens interface {
	Issue(ctx context.Context, purpose session.ActionPurpose, subject string) (string, error)
	Consume(ctx context.Context, purpose session.ActionPurpose, token string) (string, error)
}

// Provider is the auth layer. It vouches for an account id and the claims
// that come with it, and knows nothing about platform profiles.
type Provider struct {
	identities  identityRepository
	sessions    sessionManager
	google      SocialVerifier
	facebook    SocialVerifier
	actions     actionTokens
	mailer      Mailer
	actionURL   string
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	validate    *validator.Validate
	logg        *logger.Logger
	now         func() time.Time
}

// ProviderParams bundles the dependencies required to build a Provider.
// Google and Facebook are optional; a nil verifier disables that method.
// Without Actions, email verification and password reset are disabled. A nil
// Mailer logs the links.
type ProviderParams struct {
	Identities     identityRepository
	Sessions       sessionManager
	Google         SocialVerifier
	Facebook       SocialVerifier
	Actions        actionTokens
	Mailer         Mailer
	EmailAction    config.EmailActionConfig
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Clock          func() time.Time
}

func NewProvider(params ProviderParams) (*Provider, error) {
	if params.Identities == nil {
		return nil, fmt.Errorf("identity repository is required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	mailer := params.Mailer
	if mailer == nil {
		mailer = NewLogMailer(logg)
	}
	return &Provider{
		identities:  params.Identities,
		sessions:    params.Sessions,
		google:      params.Google,
		facebook:    params.Facebook,
		actions:     params.Actions,
		mailer:      mailer,
		actionURL:   params.EmailAction.ActionURL,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		validate:    validator.New(),
		logg:        logg,
		now:         clock,
	}, nil
}

// RegisterWithPassword creates a password identity under a fresh account id.
// The email starts unverified.
func (p *Provider) RegisterWithPassword(ctx context.Context, email, password, displayName string, persistence enums.Persistence) (*Credential, error) {
	normalized, err := p.normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := security.CheckStrength(password, p.passwordCfg); err != nil {
		return nil, newError(ErrWeakPassword, err)
	}
	existing, err := p.identities.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if len(existing) > 0 {
		return nil, newError(ErrEmailAlreadyInUse, nil)
	}

	hash, err := security.HashPassword(password, p.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	now := p.now()
	identity := &models.AuthIdentity{
		AccountID:    uuid.NewString(),
		ProviderID:   enums.AuthProviderPassword,
		Subject:      normalized,
		Email:        normalized,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: &hash,
		CreatedAt:    now,
		LastSignInAt: now,
	}
	if err := p.identities.Create(ctx, identity); err != nil {
		if db.IsUniqueViolation(err, identityUniqueIndex) {
			return nil, newError(ErrEmailAlreadyInUse, err)
		}
		return nil, newError(ErrNetworkRequestFailed, err)
	}

	cred, err := p.issue(ctx, identity, persistence)
	if err != nil {
		return nil, err
	}
	cred.IsNewAccount = true
	return cred, nil
}

// SignInWithPassword checks an email and password pair.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string, persistence enums.Persistence) (*Credential, error) {
	normalized, err := p.normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	identity, err := p.identities.FindBySubject(ctx, enums.AuthProviderPassword, normalized)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if identity == nil || identity.PasswordHash == nil {
		return nil, newError(ErrUserNotFound, nil)
	}
	ok, err := security.VerifyPassword(password, *identity.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, newError(ErrWrongPassword, nil)
	}
	if security.NeedsRehash(*identity.PasswordHash, p.passwordCfg) {
		p.rehash(ctx, identity, password)
	}
	p.touch(ctx, identity)
	return p.issue(ctx, identity, persistence)
}

// SignInWithGoogle trusts Google's verified email: an unknown Google subject
// whose verified email already belongs to an account joins that account.
func (p *Provider) SignInWithGoogle(ctx context.Context, idToken string, persistence enums.Persistence) (*Credential, error) {
	return p.signInSocial(ctx, enums.AuthProviderGoogle, p.google, idToken, persistence, true)
}

// SignInWithFacebook refuses to attach a Facebook subject to an email that is
// already owned by another account.
func (p *Provider) SignInWithFacebook(ctx context.Context, accessToken string, persistence enums.Persistence) (*Credential, error) {
	return p.signInSocial(ctx, enums.AuthProviderFacebook, p.facebook, accessToken, persistence, false)
}

func (p *Provider) signInSocial(ctx context.Context, provider enums.AuthProviderID, verifier SocialVerifier, token string, persistence enums.Persistence, trustEmail bool) (*Credential, error) {
	if verifier == nil {
		return nil, newError(ErrProviderNotConfigured, fmt.Errorf("%s sign-in is not configured", provider))
	}
	profile, err := verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, errTokenRejected) {
			return nil, newError(ErrInvalidCredential, err)
		}
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	identity, err := p.identities.FindBySubject(ctx, provider, profile.Subject)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if identity != nil {
		p.touch(ctx, identity)
		return p.issue(ctx, identity, persistence)
	}

	accountID := uuid.NewString()
	isNew := true
	if email != "" {
		owners, err := p.identities.FindByEmail(ctx, email)
		if err != nil {
			return nil, newError(ErrNetworkRequestFailed, err)
		}
		if len(owners) > 0 {
			if !trustEmail || !profile.EmailVerified {
				return nil, newError(ErrAccountExistsDifferent, nil)
			}
			accountID = owners[0].AccountID
			isNew = false
		}
	}

	now := p.now()
	identity = &models.AuthIdentity{
		AccountID:     accountID,
		ProviderID:    provider,
		Subject:       profile.Subject,
		Email:         email,
		EmailVerified: profile.EmailVerified,
		DisplayName:   profile.DisplayName,
		CreatedAt:     now,
		LastSignInAt:  now,
	}
	if profile.PhotoURL != "" {
		photo := profile.PhotoURL
		identity.PhotoURL = &photo
	}
	if err := p.identities.Create(ctx, identity); err != nil {
		if !db.IsUniqueViolation(err, identityUniqueIndex) {
			return nil, newError(ErrNetworkRequestFailed, err)
		}
		// A concurrent first sign-in for the same subject won the insert.
		identity, err = p.identities.FindBySubject(ctx, provider, profile.Subject)
		if err != nil || identity == nil {
			return nil, newError(ErrNetworkRequestFailed, err)
		}
		isNew = false
	}

	cred, err := p.issue(ctx, identity, persistence)
	if err != nil {
		return nil, err
	}
	cred.IsNewAccount = isNew
	return cred, nil
}

// Refresh rotates the refresh token bound to accessToken. The access token may
// be expired; the new pair keeps the original persistence.
func (p *Provider) Refresh(ctx context.Context, accessToken, refreshToken string) (*Credential, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(p.jwtCfg, accessToken)
	if err != nil {
		return nil, newError(ErrInvalidCredential, err)
	}
	rotation, err := p.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, newError(ErrSessionExpired, err)
		}
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	identity, err := p.identities.FindByAccount(ctx, claims.AccountID, claims.ProviderID)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if identity == nil {
		_ = p.sessions.Revoke(ctx, rotation.AccessID)
		return nil, newError(ErrUserNotFound, nil)
	}
	return p.mint(identity, rotation.AccessID, rotation.RefreshToken, rotation.Persistence)
}

// SignOut revokes the refresh session behind accessToken. Signing out an
// already revoked session succeeds.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(p.jwtCfg, accessToken)
	if err != nil {
		return newError(ErrInvalidCredential, err)
	}
	if err := p.sessions.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to logout. Please try again.")
	}
	return nil
}

// Restore resolves a live bearer token back into its account.
func (p *Provider) Restore(ctx context.Context, accessToken string) (*Account, error) {
	identity, err := p.signedInIdentity(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	acct := accountFromIdentity(identity)
	return &acct, nil
}

// SendEmailVerification mails a confirmation link for the identity behind
// accessToken. An already verified email is left alone.
func (p *Provider) SendEmailVerification(ctx context.Context, accessToken string) error {
	if p.actions == nil {
		return newError(ErrProviderNotConfigured, errors.New("email actions are not configured"))
	}
	identity, err := p.signedInIdentity(ctx, accessToken)
	if err != nil {
		return err
	}
	if identity.EmailVerified {
		return nil
	}
	if identity.Email == "" {
		return newError(ErrInvalidEmail, errors.New("identity has no email"))
	}
	token, err := p.actions.Issue(ctx, session.PurposeVerifyEmail, identity.ID.String())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgVerificationFailed)
	}
	if err := p.mailer.SendVerificationEmail(ctx, identity.Email, actionLink(p.actionURL, modeVerifyEmail, token)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgVerificationFailed)
	}
	return nil
}

// ConfirmEmail redeems a verification token and returns the verified account.
func (p *Provider) ConfirmEmail(ctx context.Context, token string) (*Account, error) {
	identity, err := p.redeem(ctx, session.PurposeVerifyEmail, token)
	if err != nil {
		return nil, err
	}
	if !identity.EmailVerified {
		if err := p.identities.MarkEmailVerified(ctx, identity.ID); err != nil {
			return nil, newError(ErrNetworkRequestFailed, err)
		}
		identity.EmailVerified = true
	}
	acct := accountFromIdentity(identity)
	return &acct, nil
}

// SendPasswordReset mails a reset link to the password identity of email.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	if p.actions == nil {
		return newError(ErrProviderNotConfigured, errors.New("email actions are not configured"))
	}
	normalized, err := p.normalizeEmail(email)
	if err != nil {
		return err
	}
	identity, err := p.identities.FindBySubject(ctx, enums.AuthProviderPassword, normalized)
	if err != nil {
		return newError(ErrNetworkRequestFailed, err)
	}
	if identity == nil || identity.PasswordHash == nil {
		return newError(ErrUserNotFound, nil)
	}
	token, err := p.actions.Issue(ctx, session.PurposeResetPassword, identity.ID.String())
	if err != nil {
		return newError(ErrNetworkRequestFailed, err)
	}
	if err := p.mailer.SendPasswordResetEmail(ctx, identity.Email, actionLink(p.actionURL, modeResetPassword, token)); err != nil {
		return newError(ErrNetworkRequestFailed, err)
	}
	return nil
}

// ConfirmPasswordReset redeems a reset token and stores newPassword. A weak
// password is rejected before the token is spent.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := security.CheckStrength(newPassword, p.passwordCfg); err != nil {
		return newError(ErrWeakPassword, err)
	}
	identity, err := p.redeem(ctx, session.PurposeResetPassword, token)
	if err != nil {
		return err
	}
	hash, err := security.HashPassword(newPassword, p.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := p.identities.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
		return newError(ErrNetworkRequestFailed, err)
	}
	logCtx := p.logg.WithUserID(ctx, identity.AccountID)
	p.logg.Info(logCtx, "password reset completed")
	return nil
}

func (p *Provider) redeem(ctx context.Context, purpose session.ActionPurpose, token string) (*models.AuthIdentity, error) {
	if p.actions == nil {
		return nil, newError(ErrProviderNotConfigured, errors.New("email actions are not configured"))
	}
	subject, err := p.actions.Consume(ctx, purpose, token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidActionToken) {
			return nil, newError(ErrInvalidActionCode, err)
		}
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, newError(ErrInvalidActionCode, err)
	}
	identity, err := p.identities.FindByID(ctx, id)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if identity == nil {
		return nil, newError(ErrInvalidActionCode, nil)
	}
	return identity, nil
}

func (p *Provider) signedInIdentity(ctx context.Context, accessToken string) (*models.AuthIdentity, error) {
	claims, err := pkgAuth.ParseAccessToken(p.jwtCfg, accessToken)
	if err != nil {
		return nil, newError(ErrInvalidCredential, err)
	}
	ok, err := p.sessions.HasSession(ctx, claims.ID)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if !ok {
		return nil, newError(ErrSessionExpired, nil)
	}
	identity, err := p.identities.FindByAccount(ctx, claims.AccountID, claims.ProviderID)
	if err != nil {
		return nil, newError(ErrNetworkRequestFailed, err)
	}
	if identity == nil {
		return nil, newError(ErrUserNotFound, nil)
	}
	return identity, nil
}

func (p *Provider) issue(ctx context.Context, identity *models.AuthIdentity, persistence enums.Persistence) (*Credential, error) {
	if !persistence.IsValid() {
		persistence = enums.PersistenceLocal
	}
	accessID := session.NewAccessID()
	refreshToken, err := p.sessions.Generate(ctx, accessID, persistence)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return p.mint(identity, accessID, refreshToken, persistence)
}

func (p *Provider) mint(identity *models.AuthIdentity, accessID, refreshToken string, persistence enums.Persistence) (*Credential, error) {
	now := p.now()
	accessToken, err := pkgAuth.MintAccessToken(p.jwtCfg, now, pkgAuth.AccessTokenPayload{
		AccountID:   identity.AccountID,
		ProviderID:  identity.ProviderID,
		Persistence: persistence,
		JTI:         accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &Credential{
		Account:      accountFromIdentity(identity),
		AccessToken:  accessToken,
		AccessID:     accessID,
		RefreshToken: refreshToken,
		Persistence:  persistence,
		ExpiresAt:    now.Add(time.Duration(p.jwtCfg.ExpirationMinutes) * time.Minute),
		RefreshTTL:   p.sessions.TTL(persistence),
	}, nil
}

func (p *Provider) touch(ctx context.Context, identity *models.AuthIdentity) {
	_ = pkgerrors.RunStep(ctx, pkgerrors.Step{
		Name:     "touch_identity_sign_in",
		Severity: pkgerrors.SeverityBestEffort,
		Run: func(ctx context.Context) error {
			return p.identities.TouchSignIn(ctx, identity.ID, p.now())
		},
	}, func(ctx context.Context, step string, err error) {
		p.logg.Warn(p.logg.WithFields(ctx, map[string]any{"step": step, "error": err.Error()}), "best-effort step failed")
	})
}

// rehash upgrades a stored hash to the configured argon2 costs.
func (p *Provider) rehash(ctx context.Context, identity *models.AuthIdentity, password string) {
	_ = pkgerrors.RunStep(ctx, pkgerrors.Step{
		Name:     "rehash_password",
		Severity: pkgerrors.SeverityBestEffort,
		Run: func(ctx context.Context) error {
			hash, err := security.HashPassword(password, p.passwordCfg)
			if err != nil {
				return err
			}
			return p.identities.UpdatePasswordHash(ctx, identity.ID, hash)
		},
	}, func(ctx context.Context, step string, err error) {
		p.logg.Warn(p.logg.WithFields(ctx, map[string]any{"step": step, "error": err.Error()}), "best-effort step failed")
	})
}

func (p *Provider) normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := p.validate.Var(normalized, "required,email"); err != nil {
		return "", newError(ErrInvalidEmail, err)
	}
	return normalized, nil
}
