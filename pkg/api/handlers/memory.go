package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/softreason/softreason/pkg/api/middleware"
	"github.com/softreason/softreason/pkg/api/response"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/reasoning"
)

// DefaultMaxBodyBytes bounds request bodies on the memory endpoints.
const DefaultMaxBodyBytes = 1 << 20

// MemoryEngine is the part of *reasoning.Engine the memory endpoints use.
type MemoryEngine interface {
	Ingest(ctx context.Context, text string, metadata map[string]any, opts ...reasoning.IngestOption) (string, error)
	BatchIngest(ctx context.Context, items []reasoning.Item, opts ...reasoning.IngestOption) ([]string, error)
	AQuery(ctx context.Context, text string, opts ...reasoning.QueryOption) ([]reasoning.Result, error)
	Delete(ctx context.Context, ids []string)
	Prune(ctx context.Context) int
}

var _ MemoryEngine = (*reasoning.Engine)(nil)

// MemoryHandler handles memory-related API endpoints.
type MemoryHandler struct {
	engine   MemoryEngine
	logger   logger.Logger
	validate *validator.Validate
	maxBody  int64
}

// NewMemoryHandler creates a new memory handler. maxBody <= 0 selects
// DefaultMaxBodyBytes.
func NewMemoryHandler(eng MemoryEngine, log logger.Logger, maxBody int64) *MemoryHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &MemoryHandler{
		engine:   eng,
		logger:   logger.OrNop(log),
		validate: v,
		maxBody:  maxBody,
	}
}

// --- Request/Response types ---

type ingestRequest struct {
	Text       string         `json:"text" validate:"required"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TTLSeconds *float64       `json:"ttl_seconds,omitempty" validate:"omitempty,gt=0"`
	LongTTL    bool           `json:"long_ttl,omitempty"`
	Force      bool           `json:"force,omitempty"`
}

type ingestResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

type batchIngestRequest struct {
	Items      []reasoning.Item `json:"items" validate:"required,min=1,max=1000"`
	TTLSeconds *float64         `json:"ttl_seconds,omitempty" validate:"omitempty,gt=0"`
	LongTTL    bool             `json:"long_ttl,omitempty"`
	Force      bool             `json:"force,omitempty"`
}

type batchIngestResponse struct {
	IDs      []string `json:"ids"`
	Accepted int      `json:"accepted"`
}

type queryRequest struct {
	Text   string         `json:"text" validate:"required"`
	TopK   int            `json:"top_k,omitempty" validate:"min=0,max=100"`
	Filter map[string]any `json:"filter,omitempty"`
}

type queryResponse struct {
	Results []reasoning.Result `json:"results"`
	Count   int                `json:"count"`
}

type deleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type pruneResponse struct {
	Removed int `json:"removed"`
}

func ingestOptions(ttl *float64, longTTL, force bool) []reasoning.IngestOption {
	var opts []reasoning.IngestOption
	if ttl != nil {
		opts = append(opts, reasoning.WithTTL(*ttl))
	}
	if longTTL {
		opts = append(opts, reasoning.WithLongTTL())
	}
	if force {
		opts = append(opts, reasoning.WithForce())
	}
	return opts
}

// Ingest handles POST /api/v1/memories
// @Summary Ingest a memory
// @Description Store a text snippet unless a near-identical one already exists. A rejected snippet is not an error.
// @Tags memories
// @Accept json
// @Produce json
// @Param memory body ingestRequest true "Snippet and metadata"
// @Success 201 {object} ingestResponse "Stored"
// @Success 200 {object} ingestResponse "Rejected as not novel"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 503 {object} response.ErrorResponse "Novelty check unavailable"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/memories [post]
func (h *MemoryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.engine.Ingest(ctx, req.Text, req.Metadata, ingestOptions(req.TTLSeconds, req.LongTTL, req.Force)...)
	if err != nil {
		h.engineError(w, r, "ingest", err)
		return
	}

	if id == "" {
		response.JSON(w, http.StatusOK, ingestResponse{Accepted: false})
		return
	}
	response.JSON(w, http.StatusCreated, ingestResponse{ID: id, Accepted: true})
}

// BatchIngest handles POST /api/v1/memories/batch
// @Summary Ingest several memories
// @Description Ids line up with the submitted items; rejected or empty items get an empty id.
// @Tags memories
// @Accept json
// @Produce json
// @Param batch body batchIngestRequest true "Items to ingest"
// @Success 200 {object} batchIngestResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 500 {object} response.ErrorResponse "Store write failed; details carry the partial ids"
// @Router /api/v1/memories/batch [post]
func (h *MemoryHandler) BatchIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req batchIngestRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids, err := h.engine.BatchIngest(ctx, req.Items, ingestOptions(req.TTLSeconds, req.LongTTL, req.Force)...)
	if err != nil {
		h.logger.ErrorContext(ctx, "Batch ingest failed", "items", len(req.Items), "error", err)
		response.WriteProblem(w, engineProblem(err).WithDetail("ids", ids), requestID(ctx))
		return
	}

	accepted := 0
	for _, id := range ids {
		if id != "" {
			accepted++
		}
	}
	response.JSON(w, http.StatusOK, batchIngestResponse{IDs: ids, Accepted: accepted})
}

// Query handles POST /api/v1/memories/query
// @Summary Query memories
// @Description Rank stored snippets by similarity blended with recency.
// @Tags memories
// @Accept json
// @Produce json
// @Param query body queryRequest true "Query text, result count and metadata filter"
// @Success 200 {object} queryResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 504 {object} response.ErrorResponse "Request timeout"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/memories/query [post]
func (h *MemoryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryRequest
	if !h.decode(w, r, &req) {
		return
	}

	opts := []reasoning.QueryOption{}
	if req.TopK > 0 {
		opts = append(opts, reasoning.WithTopK(req.TopK))
	}
	if len(req.Filter) > 0 {
		opts = append(opts, reasoning.WithFilter(req.Filter))
	}

	results, err := h.engine.AQuery(ctx, req.Text, opts...)
	if err != nil {
		h.engineError(w, r, "query", err)
		return
	}

	if results == nil {
		results = []reasoning.Result{}
	}
	response.JSON(w, http.StatusOK, queryResponse{Results: results, Count: len(results)})
}

// Delete handles DELETE /api/v1/memories
// @Summary Delete memories
// @Tags memories
// @Accept json
// @Param ids body deleteRequest true "Ids to delete"
// @Success 204 "Deleted"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Router /api/v1/memories [delete]
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.engine.Delete(r.Context(), req.IDs)
	w.WriteHeader(http.StatusNoContent)
}

// Prune handles POST /api/v1/memories/prune
// @Summary Evict expired memories
// @Tags memories
// @Produce json
// @Success 200 {object} pruneResponse
// @Router /api/v1/memories/prune [post]
func (h *MemoryHandler) Prune(w http.ResponseWriter, r *http.Request) {
	removed := h.engine.Prune(r.Context())
	h.logger.InfoContext(r.Context(), "Prune requested", "removed", removed)
	response.JSON(w, http.StatusOK, pruneResponse{Removed: removed})
}

// decode reads a JSON body into v and validates it, writing the error
// response itself and reporting false on failure.
func (h *MemoryHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	ctx := r.Context()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(v); err != nil {
		response.WriteProblem(w, decodeProblem(err), requestID(ctx))
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		p := response.NewProblem(http.StatusBadRequest, "Request validation failed").
			WithCode(response.ErrCodeValidationFailed)
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				p.WithDetail(fe.Field(), fieldMessage(fe))
			}
		}
		response.WriteProblem(w, p, requestID(ctx))
		return false
	}
	return true
}

func decodeProblem(err error) *response.Problem {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return response.NewProblem(http.StatusRequestEntityTooLarge, "Request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, io.EOF):
		return response.NewProblem(http.StatusBadRequest, "Request body is required")
	default:
		return response.NewProblem(http.StatusBadRequest, "Invalid request body")
	}
}

func (h *MemoryHandler) engineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	p := engineProblem(err)
	if p.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "Memory operation failed", "op", op, "error", err)
	}
	response.WriteProblem(w, p, requestID(ctx))
}

// engineProblem maps engine errors onto API errors. Unknown errors are
// hidden behind a generic 500.
func engineProblem(err error) *response.Problem {
	switch {
	case errors.Is(err, reasoning.ErrNoveltyCheck):
		return response.NewProblem(http.StatusServiceUnavailable, "Novelty check unavailable")
	case errors.Is(err, reasoning.ErrPoolClosed):
		return response.NewProblem(http.StatusServiceUnavailable, "Engine is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		return response.NewProblem(http.StatusGatewayTimeout, "Request timeout")
	case errors.Is(err, context.Canceled):
		return response.NewProblem(http.StatusServiceUnavailable, "Request canceled")
	default:
		return response.Internal(err)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

func requestID(ctx context.Context) string {
	if id := middleware.GetRequestID(ctx); id != "" {
		return id
	}
	return "unknown"
}
