package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lake2804/ChatPDF/internal/core/domain"
	"github.com/lake2804/ChatPDF/internal/core/ports"
	"github.com/lake2804/ChatPDF/internal/observability/metrics"
)

type Router struct {
	ingest ports.DocumentIngestor
	query  ports.QueryService
	admin  ports.IndexAdmin
	health ports.VectorStore
	logger *slog.Logger

	service        string
	metrics        *metrics.HTTPServerMetrics
	maxUploadBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxConcurrent  int
	maxQueueWait   time.Duration
}

type RouterOptions struct {
	Service        string
	Metrics        *metrics.HTTPServerMetrics
	Logger         *slog.Logger
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
	MaxQueueWait   time.Duration
}

func NewRouter(
	ingest ports.DocumentIngestor,
	query ports.QueryService,
	admin ports.IndexAdmin,
	health ports.VectorStore,
	options RouterOptions,
) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := options.Service
	if service == "" {
		service = "chatpdf-api"
	}
	maxUploadBytes := options.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	maxQueueWait := options.MaxQueueWait
	if maxQueueWait <= 0 {
		maxQueueWait = 2 * time.Second
	}
	return &Router{
		ingest:         ingest,
		query:          query,
		admin:          admin,
		health:         health,
		logger:         logger,
		service:        service,
		metrics:        options.Metrics,
		maxUploadBytes: maxUploadBytes,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxConcurrent:  options.MaxConcurrent,
		maxQueueWait:   maxQueueWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.healthz)
	mux.HandleFunc("/upload", rt.upload)
	mux.HandleFunc("/ask", rt.ask)
	mux.HandleFunc("/summarize", rt.summarize)
	mux.HandleFunc("/reset", rt.reset)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxConcurrent, rt.maxQueueWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "vector_store": "ok"}
	code := http.StatusOK
	if rt.health != nil {
		if err := rt.health.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["vector_store"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+(1<<20))
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	result, err := rt.ingest.Ingest(r.Context(), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		var partial *domain.PartialIndexError
		if errors.As(err, &partial) {
			rt.recordIngest(fileHeader.Filename, "partial", partial.Indexed, start)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":          "document partially indexed",
				"detail":         partial.Error(),
				"chunks_indexed": partial.Indexed,
				"chunks_total":   partial.Total,
			})
			return
		}
		rt.recordIngest(fileHeader.Filename, "error", 0, start)
		writeError(w, err)
		return
	}

	rt.recordIngest(fileHeader.Filename, "success", result.ChunksIndexed, start)
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    result.Document.ID,
		"filename":       result.Document.Filename,
		"file_type":      result.Document.FileType,
		"status":         result.Document.Status,
		"chunks_total":   result.ChunksTotal,
		"chunks_indexed": result.ChunksIndexed,
	})
}

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
	Stream   bool   `json:"stream"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	if req.Stream {
		rt.askStream(w, r, req)
		return
	}

	answer, err := rt.query.Ask(r.Context(), req.Question, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRAG("ask", answer.SourceCount, start)
	writeJSON(w, http.StatusOK, answer)
}

// askStream replays the generator's deltas as SSE frames, then a final
// sources frame and the [DONE] marker. Failures after the first delta can
// only be reported in-band.
func (rt *Router) askStream(w http.ResponseWriter, r *http.Request, req askRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	start := time.Now()
	started := false
	startStream := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	answer, err := rt.query.AskStream(r.Context(), req.Question, req.K, func(delta string) error {
		startStream()
		payload, err := json.Marshal(map[string]string{"delta": delta})
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeError(w, err)
			return
		}
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
		flusher.Flush()
		return
	}

	startStream()
	final, _ := json.Marshal(map[string]any{
		"sources":      answer.Sources,
		"source_count": answer.SourceCount,
	})
	_, _ = w.Write([]byte("data: " + string(final) + "\n\n"))
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()

	rt.recordRAG("ask_stream", answer.SourceCount, start)
}

func (rt *Router) summarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	start := time.Now()
	answer, err := rt.query.Summarize(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRAG("summarize", answer.SourceCount, start)
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	err := rt.admin.Reset(r.Context())
	if rt.metrics != nil {
		rt.metrics.RecordReset(rt.service, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "index reset"})
}

func (rt *Router) recordIngest(filename, status string, chunksIndexed int, start time.Time) {
	if rt.metrics == nil {
		return
	}
	fileType, err := domain.DetectFileType(filename)
	if err != nil {
		fileType = "unknown"
	}
	rt.metrics.RecordIngest(rt.service, string(fileType), status, chunksIndexed, time.Since(start))
}

func (rt *Router) recordRAG(endpoint string, sourceCount int, start time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRAGObservation(rt.service, endpoint, sourceCount, time.Since(start))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
