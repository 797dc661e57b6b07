package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
	"github.com/docchatlabs/docchat/internal/observability/metrics"
)

type RouterConfig struct {
	Service      string
	RateLimitRPS float64
	RateBurst    int
}

type Router struct {
	intake   ports.IngestionIntake
	agent    ports.AgentRunner
	streamer ports.StreamResponder
	storage  ports.ObjectStorage
	metrics  *metrics.HTTPServerMetrics
	limiter  *rate.Limiter
	logger   *slog.Logger
	service  string
}

func NewRouter(
	intake ports.IngestionIntake,
	agent ports.AgentRunner,
	streamer ports.StreamResponder,
	storage ports.ObjectStorage,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
	logger *slog.Logger,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = int(cfg.RateLimitRPS) * 2
	}
	return &Router{
		intake:   intake,
		agent:    agent,
		streamer: streamer,
		storage:  storage,
		metrics:  serverMetrics,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateBurst),
		logger:   logger,
		service:  cfg.Service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/ingest", rt.acceptIngestion)
	mux.HandleFunc("/v1/ingest/", rt.ingestionStatus)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/agents/run", rt.runAgent)
	mux.Handle("/ws/run_rag", websocket.Handler(rt.serveStream))

	handler := rt.metrics.Middleware(rt.service, mux)
	handler = rateLimitMiddleware(rt.limiter, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) acceptIngestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.IngestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	status, err := rt.intake.Accept(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (rt *Router) ingestionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/ingest/")
	requestID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || requestID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request id must be a positive integer"})
		return
	}

	status, err := rt.intake.StatusByRequestID(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// uploadDocument accepts a multipart upload, parks the file in object
// storage, and enqueues an ingestion request pointing at the stored copy.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	requestID, err := strconv.ParseInt(r.FormValue("request_id"), 10, 64)
	if err != nil || requestID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'request_id' must be a positive integer"})
		return
	}

	fileType := domain.FileType(strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), "."))
	if !fileType.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unsupported file extension %q", filepath.Ext(fileHeader.Filename))})
		return
	}

	key := fmt.Sprintf("%d_%s", requestID, fileHeader.Filename)
	if err := rt.storage.Save(r.Context(), key, file); err != nil {
		rt.logger.Error("document_save_failed", "request_id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store uploaded file"})
		return
	}

	status, err := rt.intake.Accept(r.Context(), domain.IngestionRequest{
		RequestID:          requestID,
		PreSignedURL:       rt.storage.Path(key),
		FileName:           key,
		OriginalFileName:   fileHeader.Filename,
		FileType:           fileType,
		Namespace:          r.FormValue("namespace"),
		StatusCallbackPath: r.FormValue("response_data_api_path"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (rt *Router) runAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	params := r.URL.Query()
	query := domain.AgentQuery{
		Question:  params.Get("query"),
		ThreadID:  params.Get("thread_id"),
		Language:  params.Get("language"),
		Namespace: params.Get("namespace"),
	}

	answer, err := rt.agent.Run(r.Context(), query)
	if err != nil {
		rt.metrics.RecordOrchestratorRun(rt.service, "", "error")
		writeError(w, err)
		return
	}

	rt.metrics.RecordOrchestratorRun(rt.service, answer.Source, "ok")
	for _, tool := range answer.Tools {
		rt.metrics.RecordToolCall(rt.service, tool.Tool, tool.Outcome)
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": answer.Annotated()})
}

// serveStream drives one persistent streaming connection. Requests are
// handled sequentially. The reader goroutine owns the socket read side, so
// a peer disconnect mid-answer cancels the context and the in-flight run
// stops at its next tool boundary instead of running to exhaustion.
func (rt *Router) serveStream(conn *websocket.Conn) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	requests := make(chan domain.StreamRequest)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			var req domain.StreamRequest
			if err := websocket.JSON.Receive(conn, &req); err != nil {
				if !errors.Is(err, io.EOF) {
					rt.logger.Debug("stream_receive_failed", "error", err)
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	sink := &wsStreamSink{conn: conn, metrics: rt.metrics, service: rt.service}
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := rt.streamer.Respond(ctx, req, sink); err != nil {
				rt.logger.Warn("stream_connection_broken", "error", err)
				return
			}
		}
	}
}

type wsStreamSink struct {
	conn    *websocket.Conn
	metrics *metrics.HTTPServerMetrics
	service string
}

func (s *wsStreamSink) Send(event domain.StreamEvent) error {
	if err := websocket.JSON.Send(s.conn, event); err != nil {
		return err
	}
	s.metrics.RecordStreamEvent(s.service, event.Type)
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
