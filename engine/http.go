package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/c360studio/spectrace/extract"
	"github.com/c360studio/spectrace/rule"
)

// HTTPHandler exposes the engine over a JSON API.
type HTTPHandler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHTTPHandler creates an HTTP handler bound to the engine.
func NewHTTPHandler(e *Engine, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{engine: e, logger: logger}
}

// RegisterHTTPHandlers registers the API routes on the mux.
func (h *HTTPHandler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/snapshot", h.handleSnapshot)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/references", h.handleReferences)
	mux.HandleFunc("/api/overlay/open", h.handleOverlay(overlayOpen))
	mux.HandleFunc("/api/overlay/change", h.handleOverlay(overlayChange))
	mux.HandleFunc("/api/overlay/close", h.handleOverlay(overlayClose))
}

// StatusResponse is the JSON response for GET /api/status.
type StatusResponse struct {
	Version     uint64  `json:"version"`
	Specs       int     `json:"specs"`
	ConfigError string  `json:"config_error,omitempty"`
	AllPassing  bool    `json:"all_passing"`
	Threshold   float64 `json:"threshold"`
}

// ReferencesResponse is the JSON response for GET /api/references.
type ReferencesResponse struct {
	File       string           `json:"file"`
	References []rule.Reference `json:"references"`
}

// OverlayRequest is the JSON request body for the overlay endpoints.
type OverlayRequest struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// OverlayResponse is the JSON response for the overlay endpoints.
type OverlayResponse struct {
	Version uint64 `json:"version"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleSnapshot handles GET /api/snapshot - full dashboard data.
func (h *HTTPHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// handleStatus handles GET /api/status - version and health summary.
func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := h.engine.Snapshot()
	threshold := 100.0
	writeJSON(w, http.StatusOK, StatusResponse{
		Version:     data.Version,
		Specs:       len(data.Specs),
		ConfigError: h.engine.ConfigError(),
		AllPassing:  data.AllPassing(threshold),
		Threshold:   threshold,
	})
}

// handleReferences handles GET /api/references?spec=NAME&file=PATH with
// either line=N or start=N&end=M narrowing the result to a line range.
func (h *HTTPHandler) handleReferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	file := q.Get("file")
	if file == "" {
		writeJSONError(w, http.StatusBadRequest, "file_required", "Query parameter 'file' is required")
		return
	}

	data := h.engine.Snapshot()
	specData := data.Spec(q.Get("spec"))
	if specData == nil {
		if q.Get("spec") == "" && len(data.Specs) > 0 {
			specData = &data.Specs[0]
		} else {
			writeJSONError(w, http.StatusNotFound, "unknown_spec", "No spec named "+q.Get("spec"))
			return
		}
	}

	refs := make([]rule.Reference, 0)
	for _, ref := range specData.References {
		if ref.File == file {
			refs = append(refs, ref)
		}
	}

	switch {
	case q.Get("line") != "":
		line, err := strconv.Atoi(q.Get("line"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_line", "Query parameter 'line' must be an integer")
			return
		}
		refs = extract.At(refs, line)
	case q.Get("start") != "" || q.Get("end") != "":
		start, err1 := strconv.Atoi(q.Get("start"))
		end, err2 := strconv.Atoi(q.Get("end"))
		if err1 != nil || err2 != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_range", "Query parameters 'start' and 'end' must both be integers")
			return
		}
		refs = extract.InRange(refs, start, end)
	}

	writeJSON(w, http.StatusOK, ReferencesResponse{File: file, References: refs})
}

type overlayOp int

const (
	overlayOpen overlayOp = iota
	overlayChange
	overlayClose
)

// handleOverlay handles POST /api/overlay/{open,change,close}. The rebuild
// completes before the response is written, so the returned version reflects
// the change.
func (h *HTTPHandler) handleOverlay(op overlayOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req OverlayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "parse_error", "Failed to decode request body: "+err.Error())
			return
		}
		if req.Path == "" {
			writeJSONError(w, http.StatusBadRequest, "path_required", "Field 'path' is required")
			return
		}

		ctx := r.Context()
		switch op {
		case overlayOpen:
			h.engine.Open(ctx, req.Path, req.Content)
		case overlayChange:
			h.engine.Change(ctx, req.Path, req.Content)
		case overlayClose:
			h.engine.Close(ctx, req.Path)
		}

		writeJSON(w, http.StatusOK, OverlayResponse{Version: h.engine.Version()})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
