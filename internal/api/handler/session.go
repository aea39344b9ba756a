package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/geoseek/internal/api/request"
	"github.com/mcoot/geoseek/internal/api/response"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/registry"
	"github.com/mcoot/geoseek/internal/storage"
)

// SessionHandler handles session endpoints
type SessionHandler struct {
	registry       *registry.Registry
	storage        storage.Storage
	lateJoinPolicy model.LateJoinPolicy
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(reg *registry.Registry, store storage.Storage, lateJoinPolicy model.LateJoinPolicy, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		registry:       reg,
		storage:        store,
		lateJoinPolicy: lateJoinPolicy,
		logger:         logger,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}

	params, err := req.Params()
	if err != nil {
		WriteError(w, err)
		return
	}

	id, err := h.registry.Create(r.Context(), params)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.CreateSessionResponse{SessionID: id})
}

// List handles GET /api/v1/sessions.
// Only public sessions that would accept a join are listed.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	listings := []response.SessionListing{}
	for _, snap := range h.registry.List() {
		if snap.IsPrivate || !h.joinable(snap.Phase) {
			continue
		}
		listings = append(listings, response.SessionListingFromSnapshot(snap))
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].Name == listings[j].Name {
			return listings[i].ID < listings[j].ID
		}
		return listings[i].Name < listings[j].Name
	})

	response.JSON(w, http.StatusOK, response.SessionList{Sessions: listings})
}

func (h *SessionHandler) joinable(phase model.Phase) bool {
	switch phase {
	case model.PhasePending:
		return true
	case model.PhaseActive:
		return h.lateJoinPolicy == model.LateJoinAllow
	default:
		return false
	}
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	snap, ok := h.registry.Find(id)
	if !ok {
		WriteError(w, model.ErrSessionNotFound)
		return
	}

	response.JSON(w, http.StatusOK, snap)
}

// Summary handles GET /api/v1/sessions/{id}/summary.
// Ended sessions that are still resident are summarized directly.
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	if summary, ok := h.registry.Summary(id); ok {
		response.JSON(w, http.StatusOK, summary)
		return
	}

	summary, err := h.storage.GetSummary(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, summary)
}

// ListSummaries handles GET /api/v1/summaries
func (h *SessionHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	summaries, err := h.storage.ListSummaries(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list summaries", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}
	if summaries == nil {
		summaries = []*model.SessionSummary{}
	}

	response.JSON(w, http.StatusOK, response.SummaryList{Summaries: summaries})
}
