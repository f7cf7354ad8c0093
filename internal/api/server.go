// Package api is the daemon's HTTP surface: the provider webhook, a
// manual trigger, read-only introspection, and the control endpoints.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxloop/voxloop/internal/baseline"
	"github.com/voxloop/voxloop/internal/dedup"
	"github.com/voxloop/voxloop/internal/events"
	"github.com/voxloop/voxloop/internal/history"
	"github.com/voxloop/voxloop/internal/pipeline"
	"github.com/voxloop/voxloop/internal/registry"
)

type ProfileReader interface {
	GetProfileRaw(ctx context.Context, id string) (map[string]any, error)
	StartCall(ctx context.Context, profileID, contact string) (string, error)
}

type Deps struct {
	Runner         *pipeline.Runner
	Registry       *registry.Registry
	History        *history.Store
	Baseline       *baseline.Manager
	Voice          ProfileReader
	Dedup          dedup.Marker
	Events         *events.Broker
	Metrics        http.Handler
	ProfileID      string
	TriggerReasons []string
	CallTimeout    time.Duration
}

type Server struct {
	router *chi.Mux
	deps   Deps
}

func NewServer(deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{router: router, deps: deps}

	router.Post("/webhook/interaction", s.webhook)
	router.Post("/trigger", s.trigger)
	router.Get("/capabilities", s.capabilities)
	router.Get("/records", s.records)
	router.Get("/baseline", s.baseline)
	router.Get("/snapshot", s.snapshot)
	router.Post("/call", s.call)
	router.Post("/reset", s.reset)
	router.Get("/healthz", s.healthz)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Events != nil {
		router.Get("/ws/events", deps.Events.ServeWS)
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// webhookPayload accepts both the flat shape and the provider's
// end-of-call-report envelope.
type webhookPayload struct {
	OutcomeID   string `json:"outcomeId"`
	EndedReason string `json:"endedReason"`
	Contact     string `json:"contact"`
	Message     *struct {
		Type string `json:"type"`
		Call struct {
			ID          string `json:"id"`
			EndedReason string `json:"endedReason"`
			Customer    struct {
				Number string `json:"number"`
			} `json:"customer"`
		} `json:"call"`
	} `json:"message"`
}

func (p *webhookPayload) normalize() (outcomeID, endedReason, contact string) {
	outcomeID, endedReason, contact = p.OutcomeID, p.EndedReason, p.Contact
	if p.Message != nil {
		if outcomeID == "" {
			outcomeID = p.Message.Call.ID
		}
		if endedReason == "" {
			endedReason = p.Message.Call.EndedReason
		}
		if contact == "" {
			contact = p.Message.Call.Customer.Number
		}
	}
	return outcomeID, endedReason, contact
}

// webhook acknowledges every event with 202; filtering, dedup, and run
// errors are only observable via logs and the operator channel.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("api: webhook decode: %v", err)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	outcomeID, endedReason, contact := payload.normalize()
	if outcomeID == "" {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	if !s.unsatisfactory(endedReason) {
		log.Printf("api: outcome %s ended %q, not a trigger", outcomeID, endedReason)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	if s.deps.Dedup != nil && !s.deps.Dedup.FirstSeen(r.Context(), outcomeID) {
		log.Printf("api: outcome %s already processed", outcomeID)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "duplicate"})
		return
	}

	s.deps.Runner.Enqueue(pipeline.Trigger{
		ProfileID: s.deps.ProfileID,
		OutcomeID: outcomeID,
		Contact:   contact,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) unsatisfactory(endedReason string) bool {
	for _, reason := range s.deps.TriggerReasons {
		if reason == endedReason {
			return true
		}
	}
	return false
}

type triggerRequest struct {
	OutcomeID  string `json:"outcomeId"`
	Transcript string `json:"transcript"`
	Contact    string `json:"contact"`
	ProfileID  string `json:"profileId"`
}

// trigger starts a run manually and waits for it, returning the record.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OutcomeID == "" && req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "outcomeId or transcript required")
		return
	}
	profileID := req.ProfileID
	if profileID == "" {
		profileID = s.deps.ProfileID
	}

	handle := s.deps.Runner.Enqueue(pipeline.Trigger{
		ProfileID:  profileID,
		OutcomeID:  req.OutcomeID,
		Transcript: req.Transcript,
		Contact:    req.Contact,
	})
	rec, err := handle.Result()
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "aborted",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) capabilities(w http.ResponseWriter, _ *http.Request) {
	type capView struct {
		Name        string               `json:"name"`
		Description string               `json:"description"`
		Origin      string               `json:"origin"`
		Parameters  []registry.Parameter `json:"parameters"`
		CreatedAt   time.Time            `json:"createdAt"`
	}
	defs := s.deps.Registry.List()
	out := make([]capView, 0, len(defs))
	for _, def := range defs {
		out = append(out, capView{
			Name:        def.Name,
			Description: def.Description,
			Origin:      string(def.Origin),
			Parameters:  def.Parameters,
			CreatedAt:   def.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		writeJSON(w, http.StatusOK, s.deps.History.ByOutcome(outcome))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.History.List())
}

func (s *Server) baseline(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Baseline.Snapshot())
}

// snapshot is best-effort: an unreachable provider yields a nil profile,
// never a 5xx.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	var profile map[string]any
	if p, err := s.deps.Voice.GetProfileRaw(r.Context(), s.deps.ProfileID); err == nil {
		profile = p
	} else {
		log.Printf("api: snapshot profile read: %v", err)
	}
	synthesized := s.deps.Registry.ListSynthesized()
	names := make([]string, 0, len(synthesized))
	for _, def := range synthesized {
		names = append(names, def.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":                 profile,
		"capabilityCount":         s.deps.Registry.Len(),
		"synthesizedCapabilities": names,
	})
}

type callRequest struct {
	ProfileID string `json:"profileId"`
	Contact   string `json:"contact"`
}

func (s *Server) call(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Contact == "" {
		writeError(w, http.StatusBadRequest, "contact required")
		return
	}
	profileID := req.ProfileID
	if profileID == "" {
		profileID = s.deps.ProfileID
	}
	ctx := r.Context()
	if s.deps.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.CallTimeout)
		defer cancel()
	}
	callID, err := s.deps.Voice.StartCall(ctx, profileID, req.Contact)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"callId": callID})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Baseline.Reset(r.Context(), s.deps.ProfileID); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: response encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
