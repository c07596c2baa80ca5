// Package api exposes the provisioning engine over HTTP. Requests are
// accepted as free text or as typed slot maps per resource kind; responses
// carry the full run outcome including its stage history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/provision"
	"github.com/GoCodeAlone/provision/intent"
	"github.com/GoCodeAlone/provision/render"
	"github.com/GoCodeAlone/provision/resource"
	"github.com/GoCodeAlone/provision/state"
	"github.com/GoCodeAlone/provision/terraform"
	"github.com/GoCodeAlone/provision/workspace"
)

// Engine is the provisioning surface the API serves.
type Engine interface {
	Handle(ctx context.Context, text string) (*provision.Outcome, error)
	Provision(ctx context.Context, kind string, slots map[string]string) (*provision.Outcome, error)
	Generate(ctx context.Context, kind string, slots map[string]string) (render.GeneratedConfig, error)
	Destroy(ctx context.Context, kind string) (*provision.Outcome, error)
	Records(ctx context.Context, kind string) ([]state.ResourceRecord, error)
	AllRecords(ctx context.Context) ([]state.ResourceRecord, error)
	CheckHealth(ctx context.Context) provision.Health
}

// Handler serves the provisioning endpoints.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler creates a Handler over engine.
func NewHandler(engine Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// submitRequestBody is the payload for free-text requests.
type submitRequestBody struct {
	Request string `json:"request"`
}

// SubmitRequest handles POST /api/v1/requests.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Request == "" {
		WriteError(w, http.StatusBadRequest, "request text is required")
		return
	}

	outcome, err := h.engine.Handle(r.Context(), body.Request)
	h.writeOutcome(w, outcome, err)
}

// createBody is the payload for typed create requests. Slots may also be
// given flat at the top level.
type createBody struct {
	Slots map[string]string `json:"slots"`
}

// Create handles POST /api/v1/resources/{kind}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	slots, ok := decodeSlots(w, r)
	if !ok {
		return
	}
	outcome, err := h.engine.Provision(r.Context(), r.PathValue("kind"), slots)
	h.writeOutcome(w, outcome, err)
}

// generateBody is the payload for code generation requests.
type generateBody struct {
	Kind  string            `json:"kind"`
	Slots map[string]string `json:"slots"`
}

// GenerateCode handles POST /api/v1/generate.
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Kind == "" {
		WriteError(w, http.StatusBadRequest, "kind is required")
		return
	}

	cfg, err := h.engine.Generate(r.Context(), body.Kind, body.Slots)
	if err != nil {
		WriteError(w, statusForError(err), err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// Delete handles DELETE /api/v1/resources/{kind}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.engine.Destroy(r.Context(), r.PathValue("kind"))
	h.writeOutcome(w, outcome, err)
}

// List handles GET /api/v1/resources/{kind}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !resource.KnownKind(kind) {
		WriteError(w, http.StatusNotFound, "unknown resource kind")
		return
	}
	records, err := h.engine.Records(r.Context(), kind)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []state.ResourceRecord{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// ListAll handles GET /api/v1/resources.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.AllRecords(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []state.ResourceRecord{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.engine.CheckHealth(r.Context())
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, health)
}

// writeOutcome maps a run result onto an HTTP response. Failed runs return
// the outcome alongside the error so the stage history is not lost.
func (h *Handler) writeOutcome(w http.ResponseWriter, outcome *provision.Outcome, err error) {
	if err == nil {
		WriteJSON(w, http.StatusOK, outcome)
		return
	}
	status := statusForError(err)
	if outcome == nil {
		WriteError(w, status, err.Error())
		return
	}
	WriteFailure(w, status, outcome, err.Error())
}

// decodeSlots reads the create payload, accepting both {"slots": {...}} and
// a flat string map. A missing body means an all-defaults request.
func decodeSlots(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, true
		}
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	if nested, ok := raw["slots"]; ok {
		var body createBody
		if err := json.Unmarshal(nested, &body.Slots); err != nil {
			WriteError(w, http.StatusBadRequest, "slots must be a string map")
			return nil, false
		}
		return body.Slots, true
	}

	slots := make(map[string]string, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "slot values must be strings")
			return nil, false
		}
		slots[key] = s
	}
	return slots, true
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var parseErr *intent.ParseError
	var validationErr *resource.ValidationError
	var lockErr *workspace.LockTimeoutError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &lockErr):
		return http.StatusConflict
	case terraform.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
