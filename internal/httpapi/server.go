package httpapi

// #region imports
import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hashtagcpt/psychophysics-parrot/internal/report"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

// #endregion

// #region server

// Server exposes stored sessions read-only over HTTP.
type Server struct {
	store  *store.Store
	router *chi.Mux
}

// NewServer builds the router over st.
func NewServer(st *store.Store) *Server {
	s := &Server{store: st, router: chi.NewRouter()}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Get("/{id}/trials", s.handleTrials)
		r.Get("/{id}/tallies", s.handleTallies)
		r.Get("/{id}/summary", s.handleSummary)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// #endregion server

// #region views
type sessionView struct {
	SessionID      string           `json:"session_id"`
	Track          string           `json:"track"`
	Config         staircase.Config `json:"config"`
	CreatedAt      time.Time        `json:"created_at"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	Threshold      *float64         `json:"threshold"`
	ThresholdError *float64         `json:"threshold_error"`
	FinishReasons  []string         `json:"finish_reasons"`
}

type trialView struct {
	Response   int                 `json:"response"`
	Level      float64             `json:"level"`
	LevelIndex int                 `json:"level_index"`
	Correct    bool                `json:"correct"`
	Reversal   bool                `json:"reversal"`
	RevCount   int                 `json:"rev_count"`
	TrialCount int                 `json:"trial_count"`
	NextLevel  float64             `json:"next_level"`
	Direction  staircase.Direction `json:"direction"`
}

type tallyView struct {
	Level    float64  `json:"level"`
	NTrials  int      `json:"n_trials"`
	NCorrect int      `json:"n_correct"`
	PCorrect *float64 `json:"p_correct"`
}

func viewSession(rec store.SessionRecord) sessionView {
	v := sessionView{
		SessionID:      rec.SessionID,
		Track:          rec.Track,
		Config:         rec.Config,
		CreatedAt:      rec.CreatedAt,
		Threshold:      finite(rec.Threshold),
		ThresholdError: finite(rec.ThresholdError),
		FinishReasons:  rec.FinishReasons,
	}
	if rec.Finished() {
		t := rec.FinishedAt
		v.FinishedAt = &t
	}
	if v.FinishReasons == nil {
		v.FinishReasons = []string{}
	}
	return v
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// #endregion views

// #region handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := s.store.ListSessions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]sessionView, len(recs))
	for i, rec := range recs {
		out[i] = viewSession(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewSession(rec))
}

func (s *Server) handleTrials(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.session(w, r)
	if !ok {
		return
	}
	trials, err := s.store.ListTrials(rec.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]trialView, len(trials))
	for i, t := range trials {
		out[i] = trialView{
			Response:   t.Response,
			Level:      t.Level,
			LevelIndex: t.LevelIndex,
			Correct:    t.Correct,
			Reversal:   t.Reversal,
			RevCount:   t.RevCount,
			TrialCount: t.TrialCount,
			NextLevel:  t.NextLevel,
			Direction:  t.Direction,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTallies(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.session(w, r)
	if !ok {
		return
	}
	tallies, err := s.store.GetTallies(rec.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]tallyView, len(tallies))
	for i, t := range tallies {
		out[i] = tallyView{Level: t.Level, NTrials: t.NTrials, NCorrect: t.NCorrect, PCorrect: finite(t.ProportionCorrect())}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.session(w, r)
	if !ok {
		return
	}
	trials, err := s.store.ListTrials(rec.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	tallies, err := s.store.GetTallies(rec.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sum := report.FromStore(rec, trials, tallies)
	w.Header().Set("Content-Type", "application/yaml")
	if err := report.WriteYAML(w, []report.Summary{sum}); err != nil {
		log.Printf("[HTTP] write summary %s: %v", rec.SessionID, err)
	}
}

// session loads {id} or writes 404/500 and returns false.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (store.SessionRecord, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.GetSession(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return store.SessionRecord{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return store.SessionRecord{}, false
	}
	return rec, true
}

// #endregion handlers

// #region helpers
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// #endregion helpers
