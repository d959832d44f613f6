package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aecdata/pipeline/internal/cache"
	"github.com/aecdata/pipeline/internal/services"
	"github.com/aecdata/pipeline/pkg/response"
)

// Operation names used for cache keys, metrics labels and rate limits.
const (
	OperationGetFile      = "get_file"
	OperationListFiles    = "list_files"
	OperationProjectStats = "get_project_stats"
)

// QueryCacheTTL configures how long each read stays cached.
type QueryCacheTTL struct {
	Item time.Duration
	List time.Duration
}

// FileQueryHandler serves the cached read API.
type FileQueryHandler struct {
	query *services.FileQueryService
	memo  *cache.Memoizer
	ttl   QueryCacheTTL
}

// NewFileQueryHandler constructs a FileQueryHandler. Zero TTLs fall back to 300s and 60s.
func NewFileQueryHandler(query *services.FileQueryService, memo *cache.Memoizer, ttl QueryCacheTTL) *FileQueryHandler {
	if ttl.Item <= 0 {
		ttl.Item = 5 * time.Minute
	}
	if ttl.List <= 0 {
		ttl.List = time.Minute
	}
	return &FileQueryHandler{query: query, memo: memo, ttl: ttl}
}

// GetFile handles GET /api/v1/files/:id.
func (h *FileQueryHandler) GetFile(c *gin.Context) {
	id, err := parseFileID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	key := cache.Fingerprint(OperationGetFile, c.Request.URL.Path, nil)
	h.serve(c, OperationGetFile, key, h.ttl.Item, func(ctx context.Context) (any, error) {
		return h.query.Get(ctx, id)
	})
}

// ListFiles handles GET /api/v1/files?page=&per_page=&project_id=.
func (h *FileQueryHandler) ListFiles(c *gin.Context) {
	page, err := parseIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	perPage, err := parseIntQuery(c, "per_page", services.DefaultPerPage)
	if err != nil {
		response.Error(c, err)
		return
	}
	if perPage > services.MaxPerPage {
		perPage = services.MaxPerPage
	}
	opts := services.ListOptions{
		Page:      page,
		PerPage:   perPage,
		ProjectID: strings.TrimSpace(c.Query("project_id")),
	}

	normalized := url.Values{}
	normalized.Set("page", strconv.Itoa(opts.Page))
	normalized.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.ProjectID != "" {
		normalized.Set("project_id", opts.ProjectID)
	}

	key := cache.Fingerprint(OperationListFiles, c.Request.URL.Path, normalized)
	h.serve(c, OperationListFiles, key, h.ttl.List, func(ctx context.Context) (any, error) {
		return h.query.List(ctx, opts)
	})
}

// ProjectStats handles GET /api/v1/projects/:project_id/stats.
func (h *FileQueryHandler) ProjectStats(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("project_id"))

	key := cache.Fingerprint(OperationProjectStats, c.Request.URL.Path, nil)
	h.serve(c, OperationProjectStats, key, h.ttl.Item, func(ctx context.Context) (any, error) {
		return h.query.ProjectStats(ctx, projectID)
	})
}

func (h *FileQueryHandler) serve(c *gin.Context, operation, key string, ttl time.Duration, load func(context.Context) (any, error)) {
	body, _, err := h.memo.Do(requestContext(c), operation, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, body)
}
