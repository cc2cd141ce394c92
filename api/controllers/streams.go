package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/internal/realtime"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

const defaultKeepAlive = 25 * time.Second

type applicationHub interface {
	Subscribe(ctx context.Context, q realtime.Query, onChange func([]models.Application), opts ...realtime.SubscribeOption) (func(), error)
}

// StreamMyApplications pushes the caller's application list on every change.
func StreamMyApplications(hub applicationHub, keepAlive time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := applications.UserApplicationsQuery(middleware.UserIDFromContext(r.Context()))
		streamSnapshots(w, r, hub, q, keepAlive, logg, func(list []models.Application) any {
			return applications.FromModels(list)
		})
	}
}

// StreamApplication pushes one application, or null once it is deleted.
func StreamApplication(hub applicationHub, svc applicationService, keepAlive time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := loadVisible(r.Context(), svc, id, true); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		streamSnapshots(w, r, hub, applications.ApplicationQuery(id), keepAlive, logg, func(list []models.Application) any {
			if len(list) == 0 {
				return nil
			}
			return applications.FromModel(&list[0])
		})
	}
}

// StreamAllApplications is the admin board feed.
func StreamAllApplications(hub applicationHub, keepAlive time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSnapshots(w, r, hub, applications.AllApplicationsQuery(), keepAlive, logg, func(list []models.Application) any {
			return applications.FromModels(list)
		})
	}
}

// streamSnapshots writes server-sent events until the client goes away. Only
// the latest snapshot is kept when the client reads slower than changes land.
func streamSnapshots(
	w http.ResponseWriter,
	r *http.Request,
	hub applicationHub,
	q realtime.Query,
	keepAlive time.Duration,
	logg *logger.Logger,
	shape func([]models.Application) any,
) {
	ctx := r.Context()
	if logg == nil {
		logg = logger.Nop()
	}
	if hub == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "live queries unavailable"))
		return
	}
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	snapshots := make(chan []models.Application, 1)
	failures := make(chan error, 1)
	unsubscribe, err := hub.Subscribe(ctx, q, func(list []models.Application) {
		select {
		case <-snapshots:
		default:
		}
		snapshots <- list
	}, realtime.WithErrorHandler(func(err error) {
		select {
		case failures <- err:
		default:
		}
	}))
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid live query"))
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logg.Warn(ctx, "stream flush unsupported")
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case list := <-snapshots:
			seq++
			if err := writeEvent(w, seq, "snapshot", map[string]any{"data": shape(list)}); err != nil {
				return
			}
		case err := <-failures:
			logg.Error(ctx, "live query reload failed", err)
			if werr := writeEvent(w, 0, "error", map[string]any{"error": map[string]string{
				"code":    string(pkgerrors.CodeDependency),
				"message": "live query reload failed",
			}}); werr != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, id int, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	return err
}
