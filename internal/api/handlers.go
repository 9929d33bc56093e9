package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/logging"
	"github.com/kdimtricp/anilights/internal/metrics"
	"github.com/kdimtricp/anilights/internal/models"
	"github.com/kdimtricp/anilights/internal/onboarding"
	"github.com/kdimtricp/anilights/internal/recommend"
)

// SubmissionLog stores one row per hand-off attempt.
type SubmissionLog interface {
	Record(ctx context.Context, s *database.Submission) error
}

type App struct {
	Sessions    *onboarding.Manager
	Recommender recommend.Recommender
	// Submissions is optional.
	Submissions SubmissionLog
	CORSOrigins []string
}

func (app *App) corsOrigins() []string {
	if len(app.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return app.CORSOrigins
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type categoryResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Items int    `json:"items"`
}

func (app *App) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	classification := app.Sessions.Classification()
	counts := classification.Counts()

	out := make([]categoryResponse, 0, len(counts))
	for i, cat := range classification.Categories() {
		out = append(out, categoryResponse{Index: i, Name: string(cat), Items: counts[i]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": out})
}

type sessionState struct {
	ID       string               `json:"id"`
	Step     int                  `json:"step"`
	Total    int                  `json:"total"`
	Complete bool                 `json:"complete"`
	Pending  bool                 `json:"pending"`
	Category string               `json:"category,omitempty"`
	Picks    []int                `json:"picks"`
	Options  []models.CatalogItem `json:"options"`
}

// stateOf renders s. For an open session this enters the current step, which
// samples its display set on first visit.
func stateOf(id string, s *onboarding.Session, pending bool) (*sessionState, error) {
	st := &sessionState{
		ID:       id,
		Step:     s.Step(),
		Total:    s.Total(),
		Complete: s.Complete(),
		Pending:  pending,
		Picks:    s.Picks(),
		Options:  []models.CatalogItem{},
	}
	if cat, ok := s.Category(); ok {
		st.Category = string(cat)
		options, err := s.Options()
		if err != nil {
			return nil, err
		}
		st.Options = options
	}
	return st, nil
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := app.Sessions.Create()

	var st *sessionState
	err := app.Sessions.View(id, func(s *onboarding.Session, pending bool) error {
		var err error
		st, err = stateOf(id, s, pending)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var st *sessionState
	err := app.Sessions.View(id, func(s *onboarding.Session, pending bool) error {
		var err error
		st, err = stateOf(id, s, pending)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := app.Sessions.Discard(id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// act runs one session action, records its metric and answers with the new state.
func (app *App) act(w http.ResponseWriter, r *http.Request, action string, fn func(*onboarding.Session) error) {
	id := chi.URLParam(r, "id")

	var st *sessionState
	err := app.Sessions.Do(id, func(s *onboarding.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		var err error
		st, err = stateOf(id, s, false)
		return err
	})

	_, result := statusFor(err)
	if err == nil {
		result = "ok"
	}
	metrics.SessionActions.WithLabelValues(action, result).Inc()

	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type pickRequest struct {
	ItemID *int `json:"itemId" validate:"required"`
}

func (app *App) PickHandler(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	app.act(w, r, "pick", func(s *onboarding.Session) error {
		complete, err := s.Pick(*req.ItemID)
		if err != nil {
			return err
		}
		if complete {
			logging.Ctx(r.Context()).Info().Str("session_id", chi.URLParam(r, "id")).Ints("picks", s.Picks()).Msg("Session complete")
		}
		return nil
	})
}

func (app *App) BackHandler(w http.ResponseWriter, r *http.Request) {
	app.act(w, r, "back", func(s *onboarding.Session) error {
		return s.Back()
	})
}

type jumpRequest struct {
	Step *int `json:"step" validate:"required,gte=0"`
}

func (app *App) JumpHandler(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	app.act(w, r, "jump", func(s *onboarding.Session) error {
		return s.JumpTo(*req.Step)
	})
}

func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	app.act(w, r, "reset", func(s *onboarding.Session) error {
		s.Reset()
		return nil
	})
}

type submitResponse struct {
	Recommendations []models.Recommendation `json:"recommendations"`
}

// SubmitHandler hands a complete pick list to the recommendation service. The
// session is frozen while the call is out. On success it is discarded; on an
// upstream failure it reopens at its last round so the user can pick again.
func (app *App) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	log := logging.Ctx(ctx)

	picks, err := app.Sessions.BeginSubmit(id)
	if err != nil {
		_, result := statusFor(err)
		metrics.SessionActions.WithLabelValues("submit", result).Inc()
		writeError(w, r, err)
		return
	}
	metrics.SessionActions.WithLabelValues("submit", "ok").Inc()

	start := time.Now()
	recs, callErr := app.Recommender.Recommend(ctx, picks)
	elapsed := time.Since(start)

	outcome := onboarding.Delivered
	switch {
	case callErr == nil:
	case ctx.Err() != nil && (errors.Is(callErr, context.Canceled) || errors.Is(callErr, context.DeadlineExceeded)):
		outcome = onboarding.Abandoned
	default:
		outcome = onboarding.Failed
	}

	if err := app.Sessions.FinishSubmit(id, outcome); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("Failed to finish submission")
	}
	metrics.Submissions.WithLabelValues(outcome.String()).Inc()
	app.recordSubmission(ctx, id, picks, outcome, recs, callErr, elapsed)

	switch outcome {
	case onboarding.Delivered:
		log.Info().Str("session_id", id).Int("recommendations", len(recs)).Dur("elapsed", elapsed).Msg("Recommendations delivered")
		writeJSON(w, http.StatusOK, submitResponse{Recommendations: recs})

	case onboarding.Abandoned:
		log.Info().Str("session_id", id).Msg("Submission abandoned by client")

	case onboarding.Failed:
		log.Warn().Err(callErr).Str("session_id", id).Msg("Recommendation request failed")
		resp := errorResponse{Error: callErr.Error()}
		_ = app.Sessions.View(id, func(s *onboarding.Session, pending bool) error {
			st, err := stateOf(id, s, pending)
			if err == nil {
				resp.Session = st
			}
			return err
		})
		status, _ := statusFor(callErr)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
	}
}

func (app *App) recordSubmission(ctx context.Context, id string, picks []int, outcome onboarding.Outcome, recs []models.Recommendation, callErr error, elapsed time.Duration) {
	if app.Submissions == nil {
		return
	}

	sub := &database.Submission{
		SessionID:   id,
		Picks:       picks,
		Outcome:     outcome.String(),
		ResultCount: len(recs),
		Duration:    elapsed,
	}
	if callErr != nil {
		sub.Error = callErr.Error()
	}

	// The audit row is written even when the client has gone away.
	if err := app.Submissions.Record(context.WithoutCancel(ctx), sub); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("session_id", id).Msg("Failed to record submission")
	}
}
