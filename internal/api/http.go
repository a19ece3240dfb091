package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/fixhive/internal/service"
)

const maxDetectBodySize = 1 << 20 // 1MB

// DetectRequest is the body of POST /detect, the same shape the post-tool
// hook reads on stdin.
type DetectRequest struct {
	ToolName   string `json:"tool_name"`
	ToolOutput string `json:"tool_output"`
}

// NewHTTPHandler returns the local HTTP API. Everything except /health
// requires the bearer token.
func NewHTTPHandler(svc *service.Service, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/health", handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Post("/detect", handleDetect(svc))
		r.Get("/errors", handleListErrors(svc))
		r.Get("/errors/{id}", handleGetError(svc))
		r.Get("/stats", handleStats(svc))
		r.Post("/sync", handleSync(svc))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleDetect(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDetectBodySize)
		defer r.Body.Close()

		var req DetectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, service.NewError(service.CodeParseError, "Invalid request body: "+err.Error()))
			return
		}
		if req.ToolOutput == "" {
			writeError(w, http.StatusBadRequest,
				service.NewError(service.CodeInvalidParams, "tool_output is required").WithData(map[string]string{"field": "tool_output"}))
			return
		}

		res, err := svc.Ingest(req.ToolName, req.ToolOutput)
		if err != nil {
			serviceError(w, err)
			return
		}
		if res.ErrorIDs == nil {
			res.ErrorIDs = []string{}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListErrors(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intParam(w, r, "limit")
		if !ok {
			return
		}
		res, err := svc.List(service.ListInput{
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
		})
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGetError(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.ErrorDetail(chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleStats(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Stats()
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleSync(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := intParam(w, r, "limit")
		if !ok {
			return
		}
		if limit == 0 {
			limit = 50
		}
		rep, err := svc.Sync(r.Context(), limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// intParam reads an optional non-negative integer query parameter. Zero
// means absent. On a malformed value it writes a 400 and reports false.
func intParam(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest,
			service.NewError(service.CodeInvalidParams, key+" must be a non-negative integer").WithData(map[string]string{"field": key}))
		return 0, false
	}
	return v, true
}

func statusFor(code service.Code) int {
	switch code {
	case service.CodeValidationError, service.CodeInvalidParams, service.CodeInvalidRequest, service.CodeParseError:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAlreadyExists:
		return http.StatusConflict
	case service.CodeRateLimited:
		return http.StatusTooManyRequests
	case service.CodeCloudUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func serviceError(w http.ResponseWriter, err error) {
	e := service.Normalize(err)
	writeError(w, statusFor(e.Code), e)
}

func writeError(w http.ResponseWriter, status int, e *service.Error) {
	writeJSON(w, status, map[string]any{"error": e})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}
