package applications

import (
	"context"

	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/internal/realtime"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
)

// Collection is the change-feed name of the applications table.
const Collection = "applications"

// Indexed fields a live query may filter on.
const (
	FieldUserID   = "userId"
	FieldSchoolID = "schoolId"
	FieldStatus   = "status"
)

// UserApplicationsQuery is a student's dashboard, newest first.
func UserApplicationsQuery(userID string) realtime.Query {
	return realtime.Query{
		Collection: Collection,
		Filters:    map[string]string{FieldUserID: userID},
		OrderBy:    "createdAt",
		Descending: true,
	}
}

// ApplicationQuery follows one application.
func ApplicationQuery(id uuid.UUID) realtime.Query {
	return realtime.Query{Collection: Collection, DocumentID: id.String()}
}

// AllApplicationsQuery is the admin board, newest first.
func AllApplicationsQuery() realtime.Query {
	return realtime.Query{Collection: Collection, OrderBy: "createdAt", Descending: true}
}

// Load re-reads the result set of q. It is the loader behind application
// live queries; a single-document query yields zero or one element.
func (s *Service) Load(ctx context.Context, q realtime.Query) ([]models.Application, error) {
	if q.DocumentID != "" {
		id, err := uuid.Parse(q.DocumentID)
		if err != nil {
			return []models.Application{}, nil
		}
		app, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if app == nil {
			return []models.Application{}, nil
		}
		return []models.Application{*app}, nil
	}
	return s.repo.Query(ctx, q.Filters, q.OrderBy, q.Descending)
}

func indexedFields(app *models.Application) map[string]string {
	if app == nil {
		return nil
	}
	return map[string]string{
		FieldUserID:   app.UserID,
		FieldSchoolID: app.SchoolID,
		FieldStatus:   app.Status.String(),
	}
}
