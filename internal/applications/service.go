package applications

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tomaskub292929/to-korea-sub000/internal/realtime"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox/payloads"
)

const (
	minStep = 1
	maxStep = 3

	referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceLength   = 6
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the application lifecycle manager.
type Service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	changes realtime.Publisher
	logg    *logger.Logger
	now     func() time.Time
	strict  bool
}

// ServiceParams bundles the dependencies of a Service. Outbox and Changes are
// optional; without them no events or change notifications are produced.
type ServiceParams struct {
	Repo               *Repository
	Tx                 txRunner
	Outbox             outbox.Emitter
	Changes            realtime.Publisher
	Logger             *logger.Logger
	Clock              func() time.Time
	EnforceTransitions bool
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("applications repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		changes: params.Changes,
		logg:    logg,
		now:     clock,
		strict:  params.EnforceTransitions,
	}, nil
}

// GetOrCreateApplication returns the draft for (userID, schoolID), creating
// one when none exists. A concurrent create that wins the draft index is
// re-read instead of duplicated.
func (s *Service) GetOrCreateApplication(ctx context.Context, userID, schoolID, schoolName string) (*models.Application, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(schoolID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and school id are required")
	}
	existing, err := s.repo.FindDraft(ctx, userID, schoolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find draft application")
	}
	if existing != nil {
		return existing, nil
	}

	reference, err := GenerateReferenceNumber(s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reference number")
	}
	now := s.now()
	app := &models.Application{
		ID:              uuid.New(),
		UserID:          userID,
		SchoolID:        schoolID,
		SchoolName:      schoolName,
		ReferenceNumber: reference,
		Status:          enums.ApplicationStatusDraft,
		CurrentStep:     minStep,
		Documents:       []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, app); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventApplicationCreated, app.ID, payloads.ApplicationCreatedEvent{
			ApplicationID:   app.ID,
			UserID:          app.UserID,
			SchoolID:        app.SchoolID,
			ReferenceNumber: app.ReferenceNumber,
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, draftIndex) {
			winner, findErr := s.repo.FindDraft(ctx, userID, schoolID)
			if findErr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to create application")
	}

	s.publish(ctx, realtime.Change{Op: realtime.OpCreate, DocumentID: app.ID.String(), After: indexedFields(app)})
	return app, nil
}

// GetApplication returns NOT_FOUND when id is unknown.
func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	if app == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
	}
	return app, nil
}

// GetApplicationsByUserID lists a user's applications newest first.
func (s *Service) GetApplicationsByUserID(ctx context.Context, userID string) ([]models.Application, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applications")
	}
	return rows, nil
}

// ListApplications is the admin listing.
func (s *Service) ListApplications(ctx context.Context, filter ListFilter) ([]models.Application, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid application status")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applications")
	}
	return rows, nil
}

// UpdateApplicationStep merges data and moves the wizard to step. Field
// contents are not validated here.
func (s *Service) UpdateApplicationStep(ctx context.Context, id uuid.UUID, step int, data StepData) (*models.Application, error) {
	if step < minStep || step > maxStep {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("step must be between %d and %d", minStep, maxStep))
	}
	cols := data.columns()
	cols["current_step"] = step
	cols["updated_at"] = s.now()
	return s.update(ctx, id, cols, nil)
}

// SubmitApplication marks the application submitted and stamps submittedAt.
// Calling it again re-stamps.
func (s *Service) SubmitApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	now := s.now()
	cols := map[string]any{
		"status":       enums.ApplicationStatusSubmitted,
		"submitted_at": now,
		"updated_at":   now,
	}
	return s.update(ctx, id, cols, func(ctx context.Context, tx *gorm.DB, current *models.Application) error {
		if _, err := s.checkTransition(ctx, current, enums.ApplicationStatusSubmitted); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventApplicationSubmitted, current.ID, payloads.ApplicationSubmittedEvent{
			ApplicationID: current.ID,
			UserID:        current.UserID,
			SchoolID:      current.SchoolID,
			SubmittedAt:   now,
		})
	})
}

// UpdateApplicationPayment records the payment fields. Only a completed
// payment moves the application to paid; any other status leaves the
// lifecycle where it is.
func (s *Service) UpdateApplicationPayment(ctx context.Context, id uuid.UUID, paymentID string, status enums.PaymentStatus, amount decimal.Decimal) (*models.Application, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	now := s.now()
	cols := map[string]any{
		"payment_id":     paymentID,
		"payment_status": status,
		"payment_amount": amount,
		"updated_at":     now,
	}
	completed := status.SettlesApplication()
	if completed {
		cols["status"] = enums.ApplicationStatusPaid
		cols["paid_at"] = now
	}
	return s.update(ctx, id, cols, func(ctx context.Context, tx *gorm.DB, current *models.Application) error {
		switch {
		case completed:
			if _, err := s.checkTransition(ctx, current, enums.ApplicationStatusPaid); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventApplicationPaid, current.ID, payloads.ApplicationPaidEvent{
				ApplicationID: current.ID,
				UserID:        current.UserID,
				PaymentID:     paymentID,
				Amount:        amount,
				Currency:      enums.CurrencyUSD,
				PaidAt:        now,
			})
		case status == enums.PaymentStatusFailed:
			return s.emit(ctx, tx, enums.EventApplicationPaymentFailed, current.ID, payloads.ApplicationPaymentFailedEvent{
				ApplicationID: current.ID,
				UserID:        current.UserID,
				PaymentID:     paymentID,
				Reason:        "payment failed",
			})
		}
		return nil
	})
}

// UpdateApplicationStatus is the admin status move.
func (s *Service) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status enums.ApplicationStatus, changedBy string) (*models.Application, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid application status")
	}
	cols := map[string]any{
		"status":     status,
		"updated_at": s.now(),
	}
	return s.update(ctx, id, cols, func(ctx context.Context, tx *gorm.DB, current *models.Application) error {
		outOfSequence, err := s.checkTransition(ctx, current, status)
		if err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventApplicationStatusChanged, current.ID, payloads.ApplicationStatusChangedEvent{
			ApplicationID: current.ID,
			UserID:        current.UserID,
			From:          current.Status,
			To:            status,
			ChangedBy:     changedBy,
			OutOfSequence: outOfSequence,
		})
	})
}

// DeleteApplication removes an application outright.
func (s *Service) DeleteApplication(ctx context.Context, id uuid.UUID) error {
	current, err := s.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete application")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
	}
	s.publish(ctx, realtime.Change{Op: realtime.OpDelete, DocumentID: id.String(), Before: indexedFields(current)})
	return nil
}

type beforeUpdate func(ctx context.Context, tx *gorm.DB, current *models.Application) error

// update loads the current row, runs hook and the column merge in one
// transaction, then publishes the change once committed.
func (s *Service) update(ctx context.Context, id uuid.UUID, cols map[string]any, hook beforeUpdate) (*models.Application, error) {
	var before, after *models.Application
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
		}
		before = current
		if hook != nil {
			if err := hook(ctx, tx, current); err != nil {
				return err
			}
		}
		if _, err := txRepo.UpdateColumns(ctx, id, cols); err != nil {
			if db.IsUniqueViolation(err, draftIndex) {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err,
					"another draft application already exists for this school")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update application")
		}
		after, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload application")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update application")
		}
		return nil, err
	}
	s.publish(ctx, realtime.Change{
		Op:         realtime.OpUpdate,
		DocumentID: id.String(),
		Before:     indexedFields(before),
		After:      indexedFields(after),
	})
	return after, nil
}

// checkTransition reports whether current -> next is off the intended path.
// In strict mode such a move is refused; otherwise it is logged and allowed.
func (s *Service) checkTransition(ctx context.Context, current *models.Application, next enums.ApplicationStatus) (bool, error) {
	if current.Status.CanTransitionTo(next) {
		return false, nil
	}
	details := map[string]any{"from": current.Status, "to": next}
	if s.strict {
		return true, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move application from %s to %s", current.Status, next)).WithDetails(details)
	}
	logCtx := s.logg.WithApplicationID(ctx, current.ID.String())
	logCtx = s.logg.WithFields(logCtx, details)
	s.logg.Warn(logCtx, "application status transition out of sequence")
	return true, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, id uuid.UUID, data any) error {
	if s.outbox == nil {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateApplication,
		AggregateID:   id,
		Data:          data,
		OccurredAt:    s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue outbox event")
	}
	return nil
}

// publish notifies live queries. A lost notification never fails the write.
func (s *Service) publish(ctx context.Context, change realtime.Change) {
	if s.changes == nil {
		return
	}
	change.Collection = Collection
	_ = pkgerrors.RunStep(ctx, pkgerrors.Step{
		Name:     "publish_application_change",
		Severity: pkgerrors.SeverityBestEffort,
		Run: func(ctx context.Context) error {
			return s.changes.Publish(ctx, change)
		},
	}, func(ctx context.Context, step string, err error) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"step":        step,
			"document_id": change.DocumentID,
			"error":       err.Error(),
		})
		s.logg.Warn(logCtx, "best-effort step failed")
	})
}

// GenerateReferenceNumber returns APP-<year>-<6 uppercase base36 chars>.
func GenerateReferenceNumber(now time.Time) (string, error) {
	var b strings.Builder
	radix := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceLength; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", err
		}
		b.WriteByte(referenceAlphabet[n.Int64()])
	}
	return fmt.Sprintf("APP-%d-%s", now.Year(), b.String()), nil
}
