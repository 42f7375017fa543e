package deid

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/pseudonym/pkg/common/auth"
	"github.com/synaptica-ai/pseudonym/pkg/common/logger"
	"github.com/synaptica-ai/pseudonym/pkg/common/middleware"
	"github.com/synaptica-ai/pseudonym/pkg/common/models"
	"github.com/synaptica-ai/pseudonym/pkg/dlp"
	"github.com/synaptica-ai/pseudonym/pkg/labelpool"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

type Handler struct {
	service *Service
	maxBody int64
	tokens  *auth.TokenManager
}

type HandlerOption func(*Handler)

// WithTokens requires bearer tokens on every route.
func WithTokens(tokens *auth.TokenManager) HandlerOption {
	return func(h *Handler) { h.tokens = tokens }
}

func NewHandler(service *Service, maxBody int64, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, maxBody: maxBody}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r *mux.Router) {
	r.Handle("/pseudonymize", h.guard(auth.ScopePseudonymize, h.handlePseudonymize)).Methods(http.MethodPost)
	r.Handle("/recompute", h.guard(auth.ScopeReidentify, h.handleRecompute)).Methods(http.MethodPost)
	r.Handle("/labels/{label}", h.guard(auth.ScopeReidentify, h.handleReidentify)).Methods(http.MethodGet)
	r.Handle("/runs/{id}/labels/{label}", h.guard(auth.ScopeReidentify, h.handleReidentify)).Methods(http.MethodGet)
	r.Handle("/runs/{id}/keyfile", h.guard(auth.ScopeReidentify, h.handleRunKeyfile)).Methods(http.MethodGet)
	r.Handle("/runs/{id}", h.guard(auth.ScopeReidentify, h.handlePurgeRun)).Methods(http.MethodDelete)
	r.Handle("/pools", h.guard(auth.ScopePools, h.handleCreatePool)).Methods(http.MethodPost)
	r.Handle("/pools/{id}", h.guard(auth.ScopePools, h.handlePoolInfo)).Methods(http.MethodGet)
	r.Handle("/pools/{id}", h.guard(auth.ScopePools, h.handleDeletePool)).Methods(http.MethodDelete)
	r.Handle("/pools/{id}/assign", h.guard(auth.ScopePseudonymize, h.handleAssign)).Methods(http.MethodPost)
}

// guard leaves routes open when no token manager is configured, except the
// reidentify-scoped ones, which are then refused.
func (h *Handler) guard(scope string, fn http.HandlerFunc) http.Handler {
	if h.tokens == nil && scope != auth.ScopeReidentify {
		return fn
	}
	return middleware.Authenticate(h.tokens, scope)(fn)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) handlePseudonymize(w http.ResponseWriter, r *http.Request) {
	var req models.PseudonymizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Pseudonymize(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req models.RecomputeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		http.Error(w, "fields are required", http.StatusBadRequest)
		return
	}
	label, err := h.service.Recompute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RecomputeResponse{Label: label})
}

func (h *Handler) handleReidentify(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID, label := vars["id"], vars["label"]
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		logger.WithFields(map[string]interface{}{
			"subject": claims.Subject,
			"run_id":  runID,
			"label":   label,
		}).Info("keyfile lookup requested")
	}
	resp, err := h.service.Reidentify(r.Context(), runID, label)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRunKeyfile(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	resp, err := h.service.RunKeyfile(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePurgeRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	deleted, err := h.service.PurgeRun(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PurgeResponse{RunID: runID, Deleted: deleted})
}

func (h *Handler) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePoolRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.CreatePool(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.PoolInfo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePool(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req models.AssignRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Assign(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pseudonym.ErrMissingKey):
		return http.StatusPreconditionFailed
	case errors.Is(err, pseudonym.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pseudonym.ErrNonUniqueIdentifyingTuple),
		errors.Is(err, pseudonym.ErrLabelCollision),
		errors.Is(err, ErrAmbiguousLabel):
		return http.StatusConflict
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, labelpool.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPoolsDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, pseudonym.ErrUnknownColumn),
		errors.Is(err, pseudonym.ErrOverlappingColumns),
		errors.Is(err, pseudonym.ErrAmbiguousCanonicalForm),
		errors.Is(err, pseudonym.ErrInvalidTruncation),
		errors.Is(err, pseudonym.ErrRaggedRow),
		errors.Is(err, pseudonym.ErrUnknownStrategy),
		errors.Is(err, pseudonym.ErrUnknownAlgorithm),
		errors.Is(err, pseudonym.ErrNoIdentifyingColumns),
		errors.Is(err, dlp.ErrPayloadLeak):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsInputError reports whether err comes from the request itself, so that
// repeating the same request cannot succeed. Store outages and a missing key
// are not input errors.
func IsInputError(err error) bool {
	if errors.Is(err, ErrInvalidEvent) {
		return true
	}
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity,
		http.StatusNotFound, http.StatusNotImplemented:
		return true
	}
	return false
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithField("status", status).WithError(err).Error("request failed")
		http.Error(w, "internal error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
