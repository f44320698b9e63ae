package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/collegeai/internal/chat"
	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/oracle"
	"github.com/kalambet/collegeai/internal/pipeline"
	"github.com/kalambet/collegeai/internal/profile"
	"github.com/kalambet/collegeai/internal/storage"
	"github.com/kalambet/collegeai/internal/turn"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds what the HTTP handlers need.
type Deps struct {
	Store    storage.DocumentStore
	Profiles *profile.Manager
	Agents   pipeline.Agents
	Token    string
	Locks    *ClientLocks // optional; a private set is created when nil
	Logger   *slog.Logger
}

type server struct {
	Deps
	turns storage.TurnLog
}

// TurnRequest carries the user's answer to the previous question. Both
// fields are empty on the first turn of a conversation.
type TurnRequest struct {
	LastQuestionID string  `json:"last_question_id"`
	LastAnswer     *string `json:"last_answer"`
}

// PatchRequest is the body of PATCH /clients/{id}/profile.
type PatchRequest struct {
	ProfilePatch []document.PatchOp `json:"profile_patch"`
}

// ChatRequest is the body of POST /clients/{id}/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// NewHandler returns the turn API. Every route except /health requires the
// bearer token when one is configured.
func NewHandler(deps Deps) http.Handler {
	if deps.Locks == nil {
		deps.Locks = NewClientLocks()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &server{Deps: deps}
	if tl, ok := deps.Store.(storage.TurnLog); ok {
		s.turns = tl
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/clients", s.handleCreateClient)
		r.Route("/clients/{id}", func(r chi.Router) {
			r.Get("/profile", s.handleGetProfile)
			r.Patch("/profile", s.handlePatchProfile)
			r.Post("/intake/turn", s.handleIntakeTurn)
			r.Post("/scholarships/turn", s.handleScholarshipsTurn)
			r.Post("/prep/turn", s.handlePrepTurn)
			r.Get("/context", s.handleContext)
			r.Post("/chat", s.handleChat)
		})
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	doc, err := s.Profiles.Create(id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to create client: %v", err)
		return
	}
	s.Logger.Info("client created", "client_id", id)
	writeJSON(w, http.StatusCreated, map[string]any{"client_id": id, "profile": doc})
}

func (s *server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Profiles.Get(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "profile not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for _, op := range req.ProfilePatch {
		if strings.TrimSpace(op.Path) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "every patch op needs a path")
			return
		}
	}

	id := chi.URLParam(r, "id")
	defer s.Locks.Lock(id)()

	doc, err := s.Profiles.Patch(id, req.ProfilePatch)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to patch profile: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleIntakeTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	defer s.Locks.Lock(id)()

	doc, err := s.Profiles.GetOrNew(id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
		return
	}
	res, _, err := s.Agents.Intake.Next(r.Context(), req.input(doc))
	if err != nil {
		agentError(w, "intake", err)
		return
	}
	s.record(id, pipeline.StageIntake, res.Action, res.Question, res.NoteToUser)

	if len(res.ProfilePatch) > 0 {
		if _, err := s.Profiles.Patch(id, res.ProfilePatch); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleScholarshipsTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	defer s.Locks.Lock(id)()

	merged, ok := s.mergedProfile(w, id)
	if !ok {
		return
	}
	advisor, err := s.optional(storage.AdvisorResults, id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load advisor results: %v", err)
		return
	}

	res, _, err := s.Agents.Scholarships.Next(r.Context(), req.input(merged), advisor)
	if err != nil {
		agentError(w, "scholarships", err)
		return
	}
	s.record(id, pipeline.StageScholarships, res.Action, res.Question, res.NoteToUser)

	if len(res.ProfilePatch) > 0 {
		if _, err := storage.Patch(s.Store, storage.ScholarshipsProfiles, id, res.ProfilePatch); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save scholarships profile: %v", err)
			return
		}
	}
	if res.Action == turn.ActionRecommend {
		if err := s.save(storage.ScholarshipRecommendations, id, pipeline.ScholarshipsResult(res)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handlePrepTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	defer s.Locks.Lock(id)()

	merged, ok := s.mergedProfile(w, id)
	if !ok {
		return
	}
	recs, err := s.optional(storage.ScholarshipRecommendations, id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load scholarship recommendations: %v", err)
		return
	}

	res, _, err := s.Agents.Prep.Next(r.Context(), req.input(merged), recs)
	if err != nil {
		agentError(w, "prep", err)
		return
	}
	s.record(id, pipeline.StagePrep, res.Action, res.Question, res.NoteToUser)

	if len(res.ProfilePatch) > 0 {
		if _, err := s.Profiles.Patch(id, res.ProfilePatch); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}
	}
	if result, done := pipeline.PrepResult(res); done {
		if err := s.save(storage.PrepSuggestions, id, result); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, chat.Aggregate(id, chat.StoreSources(s.Store, storage.ContextStores...)))
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		req.Message = chat.ExistingUserLogin
	}
	id := chi.URLParam(r, "id")
	defer s.Locks.Lock(id)()

	history, err := pipeline.LoadHistory(s.Store, id)
	if err != nil {
		s.Logger.Warn("chat history unreadable, starting fresh", "client_id", id, "error", err)
		history = nil
	}
	aggregated := chat.Aggregate(id, chat.StoreSources(s.Store, storage.ContextStores...))

	reply, history, err := s.Agents.Chat.Reply(r.Context(), req.Message, aggregated, history)
	if err != nil {
		agentError(w, "chat", err)
		return
	}
	if err := pipeline.SaveHistory(s.Store, id, history); err != nil {
		s.Logger.Warn("saving chat history failed", "client_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

// mergedProfile loads the intake profile overlaid with the scholarships
// sub-profile. The scholarships and prep agents need a finished intake.
func (s *server) mergedProfile(w http.ResponseWriter, id string) (document.Document, bool) {
	doc, err := s.Profiles.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "intake profile not found")
		return nil, false
	}
	if err == nil {
		doc, err = pipeline.MergedProfile(s.Store, id, doc)
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile: %v", err)
		return nil, false
	}
	return doc, true
}

// optional returns the client's entry in store, or nil when there is none.
func (s *server) optional(store, id string) (document.Document, error) {
	doc, err := storage.Get(s.Store, store, id)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrMalformed) {
		return nil, nil
	}
	return doc, err
}

func (s *server) save(store, id string, v any) error {
	doc, err := document.FromValue(v)
	if err == nil {
		err = storage.Put(s.Store, store, id, doc)
	}
	if err != nil {
		return fmt.Errorf("saving %s: %w", store, err)
	}
	return nil
}

func (s *server) record(id string, stage pipeline.Stage, action turn.Action, q *turn.Question, note string) {
	s.Logger.Debug("agent turn", "client_id", id, "stage", stage, "action", action)
	if s.turns == nil {
		return
	}
	rec := storage.TurnRecord{ClientID: id, Agent: string(stage), Action: string(action), Note: note}
	if q != nil {
		rec.QuestionID = q.ID
	}
	if err := s.turns.RecordTurn(rec); err != nil {
		s.Logger.Warn("recording turn failed", "client_id", id, "stage", stage, "error", err)
	}
}

func (req TurnRequest) input(profile document.Document) turn.Input {
	return turn.Input{Profile: profile, LastQuestionID: req.LastQuestionID, LastAnswer: req.LastAnswer}
}

// decodeBody reads a JSON body. An empty body decodes as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// agentError maps an agent failure to a status: a missing oracle is a
// configuration problem, anything from the oracle is an upstream failure.
func agentError(w http.ResponseWriter, stage string, err error) {
	var se *oracle.SchemaError
	switch {
	case errors.Is(err, oracle.ErrNoOracle):
		httpError(w, http.StatusServiceUnavailable, "configuration_error", "%s: %v", stage, err)
	case errors.As(err, &se):
		httpError(w, http.StatusBadGateway, "schema_error", "%s: %v", stage, err)
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%s failed: %v", stage, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
