package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/patch"
	"github.com/italolelis/asset_patcher/internal/storage"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Popup is the dialog the client should be showing.
type Popup string

const (
	PopupNone     Popup = "none"
	PopupPatch    Popup = "patch"    // asks to confirm the download
	PopupDownload Popup = "download" // progress bar
	PopupSuccess  Popup = "success"
	PopupFail     Popup = "fail"
)

// Orchestrator is the part of patch.Orchestrator the handler drives.
type Orchestrator interface {
	Start(ctx context.Context) (patch.Snapshot, error)
	Confirm(ctx context.Context) error
	Snapshot() patch.Snapshot
}

type PatchView struct {
	RunID           string                `json:"run_id,omitempty"`
	Status          patch.Status          `json:"status"`
	Popup           Popup                 `json:"popup"`
	TotalSize       string                `json:"total_size"`
	TotalBytes      int64                 `json:"total_bytes"`
	DownloadedBytes int64                 `json:"downloaded_bytes"`
	Percent         int                   `json:"percent"`
	Progress        string                `json:"progress"`
	Error           string                `json:"error,omitempty"`
	Downloads       []patch.GroupSnapshot `json:"downloads,omitempty"`
}

type RunView struct {
	RunID           string     `json:"run_id"`
	Groups          []string   `json:"groups"`
	Status          string     `json:"status"`
	TotalSize       string     `json:"total_size"`
	TotalBytes      int64      `json:"total_bytes"`
	DownloadedBytes int64      `json:"downloaded_bytes"`
	Percent         int        `json:"percent"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type PatchHandler struct {
	username     string
	password     string
	orchestrator Orchestrator
	runs         storage.RunReadRepository

	mu        sync.Mutex
	dismissed string // run whose result popup was closed
}

// NewPatchHandler creates the patch screen API. Basic auth is enforced only
// when username is set; runs may be nil to disable the history endpoints.
func NewPatchHandler(username, password string, o Orchestrator, runs storage.RunReadRepository) *PatchHandler {
	return &PatchHandler{
		username:     username,
		password:     password,
		orchestrator: o,
		runs:         runs,
	}
}

func (h *PatchHandler) Routes() http.Handler {
	r := chi.NewRouter()

	if h.username != "" {
		r.Use(h.basicAuthMiddleware)
	}

	r.Get("/patch", h.HandleView)
	r.Post("/patch/check", h.HandleCheck)
	r.Post("/patch/confirm", h.HandleConfirm)
	r.Post("/patch/dismiss", h.HandleDismiss)

	if h.runs != nil {
		r.Get("/patch/runs", h.HandleListRuns)
		r.Get("/patch/runs/{id}", h.HandleGetRun)
	}

	return r
}

// HandleView returns what the patch screen should display.
func (h *PatchHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, h.view(h.orchestrator.Snapshot()))
}

// HandleCheck starts a new run and probes the pending size. Probe failures
// are part of the view (fail popup), not an HTTP error.
func (h *PatchHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	snap, err := h.orchestrator.Start(r.Context())
	if errors.Is(err, patch.ErrRunInProgress) {
		h.writeJSON(r.Context(), w, http.StatusConflict, errorResponse{Error: err.Error()})

		return
	}

	if err != nil {
		logger.WarnContext(r.Context(), "patch check failed", "err", err)
	}

	h.writeJSON(r.Context(), w, http.StatusOK, h.view(snap))
}

// HandleConfirm is the download button of the patch popup.
func (h *PatchHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	err := h.orchestrator.Confirm(r.Context())

	var stateErr *patch.StateError
	if errors.As(err, &stateErr) {
		h.writeJSON(r.Context(), w, http.StatusConflict, errorResponse{Error: err.Error()})

		return
	}

	status := http.StatusAccepted
	if err != nil {
		logctx.LoggerFromContext(r.Context()).WarnContext(r.Context(), "patch download failed to start", "err", err)

		status = http.StatusOK
	}

	h.writeJSON(r.Context(), w, status, h.view(h.orchestrator.Snapshot()))
}

// HandleDismiss closes the success or fail popup of a finished run.
func (h *PatchHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	snap := h.orchestrator.Snapshot()

	if snap.Status != patch.StatusFailed && snap.Status != patch.StatusSucceeded {
		h.writeJSON(r.Context(), w, http.StatusConflict, errorResponse{
			Error: fmt.Sprintf("nothing to dismiss while run is %s", snap.Status),
		})

		return
	}

	h.mu.Lock()
	h.dismissed = snap.RunID
	h.mu.Unlock()

	h.writeJSON(r.Context(), w, http.StatusOK, h.view(snap))
}

func (h *PatchHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})

			return
		}

		limit = min(n, maxRunsLimit)
	}

	records, err := h.runs.GetRuns(r.Context(), limit)
	if err != nil {
		logctx.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to list runs", "err", err)
		h.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Error: "failed to list runs"})

		return
	}

	views := make([]RunView, 0, len(records))
	for _, rec := range records {
		views = append(views, runView(rec))
	}

	h.writeJSON(r.Context(), w, http.StatusOK, views)
}

func (h *PatchHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		h.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: err.Error()})

		return
	}

	if err != nil {
		logctx.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to get run", "err", err)
		h.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Error: "failed to get run"})

		return
	}

	h.writeJSON(r.Context(), w, http.StatusOK, runView(rec))
}

func (h *PatchHandler) view(s patch.Snapshot) PatchView {
	v := PatchView{
		RunID:           s.RunID,
		Status:          s.Status,
		Popup:           h.popupFor(s),
		TotalSize:       patch.FormatSize(s.Total),
		TotalBytes:      s.Total,
		DownloadedBytes: s.Downloaded,
		Percent:         s.Percent,
		Progress:        fmt.Sprintf("%d %%", s.Percent),
		Downloads:       s.Downloads,
	}

	if s.Err != nil {
		v.Error = s.Err.Error()
	}

	return v
}

func (h *PatchHandler) popupFor(s patch.Snapshot) Popup {
	switch s.Status {
	case patch.StatusAwaitingConfirmation:
		return PopupPatch
	case patch.StatusDownloading:
		return PopupDownload
	case patch.StatusSucceeded, patch.StatusFailed:
		h.mu.Lock()
		dismissed := h.dismissed == s.RunID
		h.mu.Unlock()

		if dismissed {
			return PopupNone
		}

		if s.Status == patch.StatusSucceeded {
			return PopupSuccess
		}

		return PopupFail
	default:
		return PopupNone
	}
}

func runView(rec storage.RunRecord) RunView {
	return RunView{
		RunID:           rec.RunID,
		Groups:          rec.Groups,
		Status:          rec.Status,
		TotalSize:       patch.FormatSize(rec.TotalBytes),
		TotalBytes:      rec.TotalBytes,
		DownloadedBytes: rec.DownloadedBytes,
		Percent:         rec.Percent,
		Error:           rec.Error,
		StartedAt:       rec.StartedAt,
		UpdatedAt:       rec.UpdatedAt,
		FinishedAt:      rec.FinishedAt,
	}
}

func (h *PatchHandler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "err", err)
	}
}

func (h *PatchHandler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)

			return
		}

		if username != h.username || password != h.password {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}
