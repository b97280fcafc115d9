package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/kirillkom/pii-redactor/internal/config"
	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

const multipartMemory = 32 << 20

// RedactionRecorder receives every committed redaction.
type RedactionRecorder interface {
	RecordRedaction(doc domain.Document)
}

// Metrics instruments the router. Optional.
type Metrics interface {
	RedactionRecorder
	Handler() http.Handler
	Middleware(service string, next http.Handler) http.Handler
}

type Services struct {
	Runner    ports.PipelineRunner
	Redactor  ports.Redactor
	Documents ports.DocumentReader
	Downloads ports.Downloader
	Dashboard ports.DashboardService
	Verifier  TokenVerifier
	Metrics   Metrics
}

type Router struct {
	cfg config.Config
	svc Services
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{cfg: cfg, svc: svc}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("GET /v1/documents", rt.listDocuments)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("GET /v1/documents/{id}/events", rt.documentEvents)
	api.HandleFunc("POST /v1/documents/{id}/redactions", rt.applyRedaction)
	api.HandleFunc("GET /v1/documents/{id}/download", rt.downloadDocument)
	api.HandleFunc("GET /v1/runs/{id}", rt.runStatus)
	api.HandleFunc("POST /v1/runs/{id}/retry", rt.retryRun)
	api.HandleFunc("GET /v1/dashboard", rt.dashboard)

	var protected http.Handler = authMiddleware(rt.svc.Verifier, api)
	protected = backpressureMiddleware(protected, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.BackpressureWait())
	protected = rateLimitMiddleware(protected, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.svc.Metrics != nil {
		mux.Handle("GET /metrics", rt.svc.Metrics.Handler())
	}
	mux.Handle("/v1/", protected)

	var handler http.Handler = mux
	if rt.svc.Metrics != nil {
		handler = rt.svc.Metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if limit := rt.cfg.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeDomainError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDomainError(w, r, invalidRequest("read upload", err))
		return
	}

	snapshot, err := rt.svc.Runner.Start(r.Context(), domain.SourceFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+snapshot.RunID)
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (rt *Router) runStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := rt.svc.Runner.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (rt *Router) retryRun(w http.ResponseWriter, r *http.Request) {
	snapshot, err := rt.svc.Runner.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	req, err := parseListDocumentsRequest(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	docs, err := rt.svc.Documents.List(r.Context(), req.query(), req.Limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) documentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := rt.svc.Documents.Events(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.DocumentEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (rt *Router) applyRedaction(w http.ResponseWriter, r *http.Request) {
	var req redactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validateRequest("apply redaction", req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	doc, err := rt.svc.Redactor.Apply(r.Context(), r.PathValue("id"), req.Indices)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if rt.svc.Metrics != nil {
		rt.svc.Metrics.RecordRedaction(doc)
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	view, ok := domain.ParseDownloadView(r.URL.Query().Get("view"))
	if !ok {
		writeError(w, http.StatusBadRequest, "view must be original or redacted")
		return
	}

	artifact, body, err := rt.svc.Downloads.Download(r.Context(), r.PathValue("id"), view)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.WarnContext(r.Context(), "download interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"document_id", r.PathValue("id"),
			"error", err,
		)
	}
}

func (rt *Router) dashboard(w http.ResponseWriter, r *http.Request) {
	req, err := parseListDocumentsRequest(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dashboard, err := rt.svc.Dashboard.Dashboard(r.Context(), req.criteria())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
