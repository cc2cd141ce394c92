package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

const usersPrimaryKey = "users_pkey"

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SaveProviders(ctx context.Context, id string, providers []models.AuthProvider, at time.Time) error
	UpdateColumns(ctx context.Context, id string, cols map[string]any) (bool, error)
	ListByRole(ctx context.Context, roles ...enums.Role) ([]models.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Manager translates authenticated-provider events into durable profiles.
type Manager struct {
	repo userRepository
	logg *logger.Logger
	now  func() time.Time
}

// ManagerParams bundles the dependencies of a Manager.
type ManagerParams struct {
	Repo   userRepository
	Logger *logger.Logger
	Clock  func() time.Time
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{repo: params.Repo, logg: logg, now: clock}, nil
}

// LoadProfile returns nil, nil when the account has no profile yet.
func (m *Manager) LoadProfile(ctx context.Context, accountID string) (*models.User, error) {
	user, err := m.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load user profile")
	}
	return user, nil
}

// Exists reports whether a profile is stored for accountID.
func (m *Manager) Exists(ctx context.Context, accountID string) (bool, error) {
	ok, err := m.repo.Exists(ctx, accountID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check user profile")
	}
	return ok, nil
}

// CreateProfile stores a new profile. An existing profile at accountID is a
// CONFLICT, never an overwrite.
func (m *Manager) CreateProfile(ctx context.Context, accountID string, seed ProfileSeed) (*models.User, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if seed.Role != "" && !seed.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	user := seed.toModel(accountID, m.now())
	if err := m.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, usersPrimaryKey) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user profile already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create user profile. Please try again.")
	}
	return user, nil
}

// TouchLastLogin stamps lastLoginAt. It never fails the caller.
func (m *Manager) TouchLastLogin(ctx context.Context, accountID string) {
	_ = pkgerrors.RunStep(ctx, pkgerrors.Step{
		Name:     "touch_last_login",
		Severity: pkgerrors.SeverityBestEffort,
		Run: func(ctx context.Context) error {
			return m.repo.UpdateLastLogin(ctx, accountID, m.now())
		},
	}, m.reportBestEffort)
}

// LinkProvider appends link unless a provider with the same id is already
// attached. Re-linking is a no-op.
func (m *Manager) LinkProvider(ctx context.Context, accountID string, link ProviderLink) error {
	if !link.ProviderID.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid auth provider")
	}
	user, err := m.LoadProfile(ctx, accountID)
	if err != nil {
		return err
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if user.HasProvider(link.ProviderID) {
		return nil
	}
	providers := append(append([]models.AuthProvider(nil), user.AuthProviders...), models.AuthProvider{
		ProviderID: link.ProviderID,
		Email:      link.Email,
	})
	if err := m.repo.SaveProviders(ctx, accountID, providers, m.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to link account. Please try again.")
	}
	return nil
}

// AssignRole is a privileged write; callers gate who may invoke it.
func (m *Manager) AssignRole(ctx context.Context, userID string, role enums.Role, assignedBy string) error {
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	found, err := m.repo.UpdateColumns(ctx, userID, map[string]any{
		"role":       role,
		"updated_at": m.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to assign role. Please try again.")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"user_id":     userID,
		"role":        role,
		"assigned_by": assignedBy,
	})
	m.logg.Info(logCtx, "role assigned")
	return nil
}

// UpdateProfile merges the supplied fields and returns the stored profile.
func (m *Manager) UpdateProfile(ctx context.Context, accountID string, update ProfileUpdate) (*models.User, error) {
	if update.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no profile fields supplied")
	}
	cols := update.columns()
	cols["updated_at"] = m.now()
	found, err := m.repo.UpdateColumns(ctx, accountID, cols)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update user profile. Please try again.")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return m.LoadProfile(ctx, accountID)
}

// SetEmailVerified mirrors the provider's verified flag onto the profile. It
// is kept apart from ProfileUpdate so callers cannot set it from user input.
func (m *Manager) SetEmailVerified(ctx context.Context, accountID string, verified bool) (*models.User, error) {
	found, err := m.repo.UpdateColumns(ctx, accountID, map[string]any{
		"email_verified": verified,
		"updated_at":     m.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update user profile. Please try again.")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return m.LoadProfile(ctx, accountID)
}

// ListByRole returns every profile with role, newest first.
func (m *Manager) ListByRole(ctx context.Context, role enums.Role) ([]models.User, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	rows, err := m.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list users")
	}
	return rows, nil
}

// ListAdmins returns every profile holding an admin role.
func (m *Manager) ListAdmins(ctx context.Context) ([]models.User, error) {
	rows, err := m.repo.ListByRole(ctx, enums.AdminRoles()...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list admin users")
	}
	return rows, nil
}

// DeleteProfile removes a profile. It is not audited.
func (m *Manager) DeleteProfile(ctx context.Context, accountID string) error {
	found, err := m.repo.Delete(ctx, accountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to delete user. Please try again.")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (m *Manager) reportBestEffort(ctx context.Context, step string, err error) {
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
	m.logg.Warn(logCtx, "best-effort step failed")
}

// ExtractProfileFromSocial derives a profile seed from provider claims. The
// display name is split on its first space; without one the email local part
// becomes the first name.
func ExtractProfileFromSocial(email, displayName, photoURL string, providerID enums.AuthProviderID) ProfileSeed {
	name := displayName
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	first, last, _ := strings.Cut(name, " ")
	return ProfileSeed{
		Email:         email,
		FirstName:     first,
		LastName:      last,
		PhotoURL:      photoURL,
		EmailVerified: true,
		Role:          enums.RoleStudent,
		AuthProviders: []ProviderLink{{ProviderID: providerID, Email: email}},
	}
}
