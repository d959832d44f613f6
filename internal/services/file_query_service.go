package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/models"
	appErrors "github.com/aecdata/pipeline/pkg/errors"
	"github.com/aecdata/pipeline/pkg/validator"
)

const (
	// DefaultPerPage is the listing page size when none is requested.
	DefaultPerPage = 20
	// MaxPerPage caps the listing page size.
	MaxPerPage = 100
	// DefaultRangeLimit is the ingestion listing size when none is requested.
	DefaultRangeLimit = 100
)

// newestFirst orders listings by upload time with the id as tie-break.
const newestFirst = "upload_timestamp DESC, id DESC"

// FileQueryService serves read-only lookups over the file metadata table.
type FileQueryService struct {
	db *gorm.DB
}

// NewFileQueryService constructs a query service once a database handle is supplied.
func NewFileQueryService(db *gorm.DB) (*FileQueryService, error) {
	if db == nil {
		return nil, errors.New("file query service: db is required")
	}
	return &FileQueryService{db: db}, nil
}

// RangeOptions selects a skip/limit window of records.
type RangeOptions struct {
	Skip      int    `json:"skip" validate:"min=0"`
	Limit     int    `json:"limit" validate:"min=0"`
	ProjectID string `json:"project_id"`
}

// ListOptions selects a page of records.
type ListOptions struct {
	Page      int    `json:"page" validate:"min=1"`
	PerPage   int    `json:"per_page" validate:"min=1"`
	ProjectID string `json:"project_id"`
}

// Pagination describes page-based listing metadata.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
}

// FilePage is one page of records plus its pagination metadata.
type FilePage struct {
	Files      []models.FileMetadata `json:"files"`
	Pagination Pagination            `json:"pagination"`
}

// ProjectStats aggregates the files uploaded to a project.
type ProjectStats struct {
	ProjectID   string     `json:"project_id"`
	FileCount   int64      `json:"file_count"`
	TotalSize   int64      `json:"total_size"`
	AvgSize     float64    `json:"avg_size"`
	FirstUpload *time.Time `json:"first_upload"`
	LastUpload  *time.Time `json:"last_upload"`
}

// Get returns a single record by primary key.
func (s *FileQueryService) Get(ctx context.Context, id int64) (*models.FileMetadata, error) {
	if s == nil {
		return nil, errors.New("file query service: service not initialised")
	}
	return findFile(ensuredContext(ctx), s.db, id)
}

func findFile(ctx context.Context, db *gorm.DB, id int64) (*models.FileMetadata, error) {
	if id <= 0 {
		return nil, appErrors.ErrFileNotFound
	}

	var record models.FileMetadata
	err := db.WithContext(ctx).Take(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErrors.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("file query service: get %d: %w", id, err)
	}
	return &record, nil
}

// ListRange returns up to Limit records after skipping Skip, newest first.
func (s *FileQueryService) ListRange(ctx context.Context, opts RangeOptions) ([]models.FileMetadata, error) {
	if s == nil {
		return nil, errors.New("file query service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	if err := validator.ValidateStruct(opts); err != nil {
		return nil, appErrors.NewBadRequest(validator.Describe(err))
	}

	records := make([]models.FileMetadata, 0)
	if opts.Limit == 0 {
		return records, nil
	}
	err := s.filtered(ctx, opts.ProjectID).
		Order(newestFirst).
		Offset(opts.Skip).
		Limit(opts.Limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("file query service: list range: %w", err)
	}
	return records, nil
}

// List returns one page of records, newest first. PerPage above MaxPerPage is capped.
func (s *FileQueryService) List(ctx context.Context, opts ListOptions) (*FilePage, error) {
	if s == nil {
		return nil, errors.New("file query service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	if err := validator.ValidateStruct(opts); err != nil {
		return nil, appErrors.NewBadRequest(validator.Describe(err))
	}
	if opts.PerPage > MaxPerPage {
		opts.PerPage = MaxPerPage
	}

	var total int64
	if err := s.filtered(ctx, opts.ProjectID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("file query service: count: %w", err)
	}

	page := &FilePage{
		Files: make([]models.FileMetadata, 0, opts.PerPage),
		Pagination: Pagination{
			Page:    opts.Page,
			PerPage: opts.PerPage,
			Total:   total,
			Pages:   pageCount(total, opts.PerPage),
		},
	}
	offset, ok := pageOffset(opts.Page, opts.PerPage)
	if !ok || int64(offset) >= total {
		return page, nil
	}

	err := s.filtered(ctx, opts.ProjectID).
		Order(newestFirst).
		Offset(offset).
		Limit(opts.PerPage).
		Find(&page.Files).Error
	if err != nil {
		return nil, fmt.Errorf("file query service: list: %w", err)
	}
	return page, nil
}

// ProjectStats aggregates size and upload times for a project.
func (s *FileQueryService) ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error) {
	if s == nil {
		return nil, errors.New("file query service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, appErrors.ErrProjectNotFound
	}

	var agg struct {
		FileCount int64
		TotalSize int64
	}
	err := s.filtered(ctx, projectID).
		Select("COUNT(*) AS file_count, COALESCE(SUM(file_size), 0) AS total_size").
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("file query service: stats %q: %w", projectID, err)
	}
	if agg.FileCount == 0 {
		return nil, appErrors.ErrProjectNotFound
	}

	first, err := s.boundaryUpload(ctx, projectID, "upload_timestamp ASC, id ASC")
	if err != nil {
		return nil, err
	}
	last, err := s.boundaryUpload(ctx, projectID, newestFirst)
	if err != nil {
		return nil, err
	}

	return &ProjectStats{
		ProjectID:   projectID,
		FileCount:   agg.FileCount,
		TotalSize:   agg.TotalSize,
		AvgSize:     float64(agg.TotalSize) / float64(agg.FileCount),
		FirstUpload: first,
		LastUpload:  last,
	}, nil
}

func (s *FileQueryService) boundaryUpload(ctx context.Context, projectID, order string) (*time.Time, error) {
	var record models.FileMetadata
	err := s.filtered(ctx, projectID).
		Select("id", "upload_timestamp").
		Order(order).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file query service: stats %q: %w", projectID, err)
	}
	ts := record.UploadTimestamp.UTC()
	return &ts, nil
}

func (s *FileQueryService) filtered(ctx context.Context, projectID string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.FileMetadata{})
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	return q
}

// pageOffset returns (page-1)*perPage, or false when it does not fit in an int.
func pageOffset(page, perPage int) (int, bool) {
	if page < 1 || perPage < 1 || page-1 > math.MaxInt/perPage {
		return 0, false
	}
	return (page - 1) * perPage, true
}

// pageCount is ceil(total/perPage).
func pageCount(total int64, perPage int) int64 {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + int64(perPage) - 1) / int64(perPage)
}
