// Package web exposes the timer engine over a JSON HTTP API: timer commands
// and queries, interrupted-session recovery, session and node management,
// and the aggregation endpoints the charts are drawn from.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tverberg/punch/internal/model"
	"github.com/tverberg/punch/internal/stats"
	"github.com/tverberg/punch/internal/store"
	"github.com/tverberg/punch/internal/timer"
)

type Server struct {
	store       store.Store
	machine     *timer.Machine
	excludeZero bool
	now         func() time.Time
}

type Option func(*Server)

// WithExcludeZeroDays sets the default zero-day policy for summary averages;
// requests can still override it per call.
func WithExcludeZeroDays(exclude bool) Option {
	return func(s *Server) { s.excludeZero = exclude }
}

// WithClock substitutes the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(st store.Store, machine *timer.Machine, opts ...Option) *Server {
	s := &Server{store: st, machine: machine, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/timer", s.timerHandler)
	mux.HandleFunc("/api/timer/start", s.timerStartHandler)
	mux.HandleFunc("/api/timer/pause", s.timerPauseHandler)
	mux.HandleFunc("/api/timer/resume", s.timerResumeHandler)
	mux.HandleFunc("/api/timer/stop", s.timerStopHandler)
	mux.HandleFunc("/api/timer/interrupted", s.interruptedHandler)
	mux.HandleFunc("/api/sessions", s.sessionsHandler)
	mux.HandleFunc("/api/sessions/", s.sessionHandler)
	mux.HandleFunc("/api/nodes", s.nodesHandler)
	mux.HandleFunc("/api/nodes/", s.nodeHandler)
	mux.HandleFunc("/api/days", s.daysHandler)
	mux.HandleFunc("/api/summary", s.summaryHandler)
	return mux
}

type snapshotJSON struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type sessionJSON struct {
	ID        string           `json:"id"`
	TaskID    string           `json:"task_id"`
	Note      string           `json:"note,omitempty"`
	Intervals []model.Interval `json:"intervals"`
	TotalMs   int64            `json:"total_ms"`
}

type dayJSON struct {
	Date    string           `json:"date"`
	TotalMs int64            `json:"total_ms"`
	ByTask  map[string]int64 `json:"by_task"`
}

type weekdayJSON struct {
	Days     int              `json:"days"`
	PerDayMs int64            `json:"per_day_ms"`
	PerTask  map[string]int64 `json:"per_task"`
}

type averagesJSON struct {
	ActiveDays int              `json:"active_days"`
	PerDayMs   int64            `json:"per_day_ms"`
	PerTask    map[string]int64 `json:"per_task"`
	PerWeekday [7]weekdayJSON   `json:"per_weekday"`
}

func (s *Server) toSessionJSON(session model.Session) sessionJSON {
	return sessionJSON{
		ID:        session.ID,
		TaskID:    session.TaskID,
		Note:      session.Note,
		Intervals: session.Intervals,
		TotalMs:   session.Duration(s.now()).Milliseconds(),
	}
}

func toDayJSON(day model.DayData) dayJSON {
	out := dayJSON{
		Date:    day.Date,
		TotalMs: day.Total.Milliseconds(),
		ByTask:  make(map[string]int64, len(day.ByTask)),
	}
	for taskID, d := range day.ByTask {
		out.ByTask[taskID] = d.Milliseconds()
	}
	return out
}

func toDaysJSON(days []model.DayData) []dayJSON {
	out := make([]dayJSON, len(days))
	for i, day := range days {
		out[i] = toDayJSON(day)
	}
	return out
}

func toAveragesJSON(averages stats.Averages) averagesJSON {
	out := averagesJSON{
		ActiveDays: averages.ActiveDays,
		PerDayMs:   averages.PerDay.Milliseconds(),
		PerTask:    make(map[string]int64, len(averages.PerTask)),
	}
	for taskID, d := range averages.PerTask {
		out.PerTask[taskID] = d.Milliseconds()
	}
	for wd, bucket := range averages.PerWeekday {
		out.PerWeekday[wd] = weekdayJSON{
			Days:     bucket.Days,
			PerDayMs: bucket.PerDay.Milliseconds(),
			PerTask:  make(map[string]int64, len(bucket.PerTask)),
		}
		for taskID, d := range bucket.PerTask {
			out.PerWeekday[wd].PerTask[taskID] = d.Milliseconds()
		}
	}
	return out
}

func (s *Server) timerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}
	snap := s.machine.Snapshot()
	writeJSON(w, snapshotJSON{
		Status:    string(snap.Status),
		SessionID: snap.SessionID,
		TaskID:    snap.TaskID,
		ElapsedMs: snap.Elapsed.Milliseconds(),
	})
}

func (s *Server) timerStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}

	var body struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	session, err := s.machine.Start(r.Context(), body.TaskID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, s.toSessionJSON(session))
}

func (s *Server) timerPauseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}
	session, err := s.machine.Pause(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, s.toSessionJSON(session))
}

func (s *Server) timerResumeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}
	session, err := s.machine.Resume(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, s.toSessionJSON(session))
}

func (s *Server) timerStopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}

	var body struct {
		Save bool `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	session, err := s.machine.Stop(r.Context(), body.Save)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, s.toSessionJSON(session))
}

func (s *Server) interruptedHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		session, err := s.machine.DetectInterrupted(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if session == nil {
			writeJSON(w, nil)
			return
		}
		writeJSON(w, s.toSessionJSON(*session))
	case http.MethodPost:
		var body struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		session, err := s.machine.ResolveInterrupted(r.Context(), timer.RecoveryAction(body.Action))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, s.toSessionJSON(*session))
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethod)
	}
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := s.store.ListSessions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out := make([]sessionJSON, 0, len(sessions))
		for _, session := range sessions {
			out = append(out, s.toSessionJSON(session))
		}
		writeJSON(w, out)
	case http.MethodPost:
		s.createManualSession(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethod)
	}
}

// createManualSession records a whole closed session from user input, the
// manual-entry path. Unlike timer start, the task id is checked against the
// tree here since the request carries arbitrary data.
func (s *Server) createManualSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string    `json:"task_id"`
		Start  time.Time `json:"start"`
		End    time.Time `json:"end"`
		Note   string    `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if body.Start.IsZero() || body.End.IsZero() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("start and end are required"))
		return
	}
	if body.End.Before(body.Start) {
		writeError(w, http.StatusBadRequest, model.ErrBadInterval)
		return
	}

	nodes, err := s.store.ListNodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var task *model.Node
	for i := range nodes {
		if nodes[i].ID == body.TaskID {
			task = &nodes[i]
			break
		}
	}
	if task == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("task %q: %w", body.TaskID, store.ErrNotFound))
		return
	}
	if task.Kind != model.KindTask {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("node %q is a folder, not a task", body.TaskID))
		return
	}

	session := model.Session{
		ID:     uuid.NewString(),
		TaskID: body.TaskID,
		Note:   body.Note,
		Intervals: []model.Interval{
			{Start: body.Start, End: &body.End},
		},
	}
	if err := s.store.PutSession(r.Context(), session); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, s.toSessionJSON(session))
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("missing session id"))
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) nodesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		nodes, err := s.store.ListNodes(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, nodes)
	case http.MethodPost:
		var node model.Node
		if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		if node.ID == "" {
			node.ID = uuid.NewString()
		}
		if err := s.store.PutNode(r.Context(), node); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, node)
	default:
		writeError(w, http.StatusMethodNotAllowed, errMethod)
	}
}

func (s *Server) nodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/nodes/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("missing node id"))
		return
	}

	strategy := store.DeleteStrategy(r.URL.Query().Get("strategy"))
	if strategy == "" {
		strategy = store.DeleteCascade
	}
	if err := s.store.DeleteNode(r.Context(), id, strategy); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) daysHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}

	from, to, err := dateRangeFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	days := stats.Aggregate(sessions, from, to, s.now())
	writeJSON(w, toDaysJSON(days))
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethod)
		return
	}

	from, to, err := dateRangeFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var selected []string
	if value := strings.TrimSpace(r.URL.Query().Get("selected")); value != "" {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				selected = append(selected, trimmed)
			}
		}
	}

	excludeZero := s.excludeZero
	if value := r.URL.Query().Get("exclude_zero"); value != "" {
		excludeZero = value == "true" || value == "1"
	}

	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	nodes, err := s.store.ListNodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	days := stats.Aggregate(sessions, from, to, s.now())
	display := stats.ResolveDisplayIDs(nodes, selected)
	merged := stats.MergeByDisplay(days, display)
	averages := stats.ComputeAverages(merged, excludeZero)

	payload := struct {
		Days     []dayJSON         `json:"days"`
		Averages averagesJSON      `json:"averages"`
		Display  map[string]string `json:"display"`
	}{
		Days:     toDaysJSON(merged),
		Averages: toAveragesJSON(averages),
		Display:  display,
	}
	writeJSON(w, payload)
}

func dateRangeFromRequest(r *http.Request) (time.Time, time.Time, error) {
	fromValue := strings.TrimSpace(r.URL.Query().Get("from"))
	toValue := strings.TrimSpace(r.URL.Query().Get("to"))
	if fromValue == "" || toValue == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to are required")
	}

	from, err := time.ParseInLocation("2006-01-02", fromValue, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse from: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", toValue, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse to: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to precedes from")
	}
	return from, to, nil
}

var errMethod = errors.New("method not allowed")

func statusFor(err error) int {
	switch {
	case errors.Is(err, timer.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, timer.ErrNoInterruptedSession):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCycle):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrBadInterval):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
