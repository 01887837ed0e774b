package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	answeruc "github.com/kailas-cloud/ragdex/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

const maxRequestBody = 8 << 20 // documents travel in the request body

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeDimMismatch       = "vector_dim_mismatch"
	codeRateLimited       = "rate_limited"
	codeEmbeddingProvider = "embedding_provider_error"
	codeRerankProvider    = "rerank_provider_error"
	codeGenerationError   = "generation_provider_error"
	codeNoGenerator       = "no_generator"
	codeInternal          = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the retrieval and answer pipelines over HTTP.
type Server struct {
	retrieval     *retrievaluc.Service
	answer        *answeruc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	answer *answeruc.Service,
	health *healthuc.Service,
	log *zap.Logger,
) *Server {
	s := &Server{
		retrieval: retrieval,
		answer:    answer,
		health:    health,
		logger:    log,
	}
	s.errorHandlers = []errorHandler{
		// Rate limiting wraps provider sentinels; it must win the mapping.
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrRerankProviderError, http.StatusBadGateway, codeRerankProvider),
		sentinelHandler(domain.ErrGenerationProviderError, http.StatusBadGateway, codeGenerationError),
		sentinelHandler(domain.ErrNoGenerator, http.StatusNotImplemented, codeNoGenerator),
	}
	return s
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Post("/v1/retrieve", s.RetrieveDocuments)
	r.Post("/v1/answer", s.AnswerQuestion)
	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type documentPayload struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type retrieveRequest struct {
	Query         string            `json:"query"`
	Documents     []documentPayload `json:"documents"`
	TopK          int               `json:"top_k,omitempty"`
	Candidates    int               `json:"candidates,omitempty"`
	DisableRerank bool              `json:"disable_rerank,omitempty"`
}

type scoredDocumentPayload struct {
	ID       string            `json:"id,omitempty"`
	Index    int               `json:"index"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type retrieveResponse struct {
	Items []scoredDocumentPayload `json:"items"`
	Total int                     `json:"total"`
}

type answerRequest struct {
	Question      string            `json:"question"`
	Documents     []documentPayload `json:"documents"`
	TopK          int               `json:"top_k,omitempty"`
	Candidates    int               `json:"candidates,omitempty"`
	DisableRerank bool              `json:"disable_rerank,omitempty"`
	RewriteQuery  bool              `json:"rewrite_query,omitempty"`
}

type citationPayload struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
	Sources []int  `json:"sources"`
}

type answerResponse struct {
	Answer    string                  `json:"answer"`
	Citations []citationPayload       `json:"citations"`
	Sources   []scoredDocumentPayload `json:"sources"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RetrieveDocuments handles POST /v1/retrieve.
func (s *Server) RetrieveDocuments(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}

	docs := documentsFromPayload(req.Documents)

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.retrieval.Retrieve(ctx, req.Query, docs, &retrievaluc.Options{
		TopK:          req.TopK,
		Candidates:    req.Candidates,
		DisableRerank: req.DisableRerank,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]scoredDocumentPayload, len(results))
	for i, res := range results {
		items[i] = scoredDocumentToPayload(res)
	}

	setUsageHeader(w, usage)
	writeJSON(w, http.StatusOK, retrieveResponse{Items: items, Total: len(items)})
}

// AnswerQuestion handles POST /v1/answer.
func (s *Server) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Question is required")
		return
	}

	docs := documentsFromPayload(req.Documents)

	ctx, usage := domain.NewContextWithUsage(r.Context())
	result, err := s.answer.Answer(ctx, req.Question, docs, &answeruc.Options{
		Retrieval: retrievaluc.Options{
			TopK:          req.TopK,
			Candidates:    req.Candidates,
			DisableRerank: req.DisableRerank,
		},
		RewriteQuery: req.RewriteQuery,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	citations := make([]citationPayload, len(result.Answer.Citations))
	for i, c := range result.Answer.Citations {
		citations[i] = citationPayload{Start: c.Start, End: c.End, Text: c.Text, Sources: c.Sources}
	}
	sources := make([]scoredDocumentPayload, len(result.Retrieved))
	for i, res := range result.Retrieved {
		sources[i] = scoredDocumentToPayload(res)
	}

	setUsageHeader(w, usage)
	writeJSON(w, http.StatusOK, answerResponse{
		Answer:    result.Answer.Text,
		Citations: citations,
		Sources:   sources,
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	writeJSON(w, status, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleDomainError maps domain errors to HTTP responses.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}

	logger.FromContext(r.Context()).Error("Unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func documentsFromPayload(payloads []documentPayload) []domain.Document {
	docs := make([]domain.Document, len(payloads))
	for i, p := range payloads {
		docs[i] = domain.Document{ID: p.ID, Text: p.Text, Metadata: p.Metadata}
	}
	return docs
}

func scoredDocumentToPayload(res domain.ScoredDocument) scoredDocumentPayload {
	return scoredDocumentPayload{
		ID:       res.Document.ID,
		Index:    res.Index,
		Score:    res.Score,
		Text:     res.Document.Text,
		Metadata: res.Document.Metadata,
	}
}

func setUsageHeader(w http.ResponseWriter, usage *domain.TokenUsage) {
	if usage.Tokens() > 0 {
		w.Header().Set("X-Tokens-Used", strconv.Itoa(usage.Tokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
