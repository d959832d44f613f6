package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aecdata/pipeline/internal/services"
	appErrors "github.com/aecdata/pipeline/pkg/errors"
	"github.com/aecdata/pipeline/pkg/response"
)

// multipartOverhead is the body allowance on top of the file size for boundaries and form fields.
const multipartOverhead = 1 << 20

// FileHandler exposes the ingestion endpoints.
type FileHandler struct {
	ingest *services.IngestionService
	query  *services.FileQueryService
}

// NewFileHandler constructs a FileHandler.
func NewFileHandler(ingest *services.IngestionService, query *services.FileQueryService) *FileHandler {
	return &FileHandler{ingest: ingest, query: query}
}

type fileListResponse struct {
	Files any `json:"files"`
	Count int `json:"count"`
}

// Upload handles POST /api/v1/files/upload.
func (h *FileHandler) Upload(c *gin.Context) {
	maxSize := h.ingest.MaxUploadSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, uploadFormError(err, maxSize))
		return
	}
	if form := c.Request.MultipartForm; form != nil {
		defer func() { _ = form.RemoveAll() }()
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.ErrUploadFailed.WithInternal(fmt.Errorf("open multipart file: %w", err)))
		return
	}
	defer file.Close()

	result, err := h.ingest.Upload(requestContext(c), services.UploadInput{
		Filename:    header.Filename,
		ProjectID:   formValue(c, "project_id"),
		Description: formValue(c, "description"),
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

func uploadFormError(err error, maxSize int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return appErrors.NewBadRequest(fmt.Sprintf("File too large. Maximum size is %d bytes", maxSize))
	}
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return appErrors.NewBadRequest("Filename is required")
	}
	return appErrors.NewBadRequest("Invalid multipart payload")
}

// Get handles GET /api/v1/files/:id.
func (h *FileHandler) Get(c *gin.Context) {
	id, err := parseFileID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	record, err := h.query.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// Download handles GET /api/v1/files/:id/download.
func (h *FileHandler) Download(c *gin.Context) {
	id, err := parseFileID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	link, err := h.ingest.DownloadURL(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, link)
}

// List handles GET /api/v1/files?skip=&limit=&project_id=.
func (h *FileHandler) List(c *gin.Context) {
	skip, err := parseIntQuery(c, "skip", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := parseIntQuery(c, "limit", services.DefaultRangeLimit)
	if err != nil {
		response.Error(c, err)
		return
	}

	files, err := h.query.ListRange(requestContext(c), services.RangeOptions{
		Skip:      skip,
		Limit:     limit,
		ProjectID: strings.TrimSpace(c.Query("project_id")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, fileListResponse{Files: files, Count: len(files)})
}
