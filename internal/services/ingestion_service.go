package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/models"
	"github.com/aecdata/pipeline/internal/monitoring"
	"github.com/aecdata/pipeline/internal/storage"
	appErrors "github.com/aecdata/pipeline/pkg/errors"
	"github.com/aecdata/pipeline/pkg/logger"
	"github.com/aecdata/pipeline/pkg/validator"
)

const (
	// DefaultContentType is stored when the client does not declare one.
	DefaultContentType = "application/octet-stream"
	// DefaultMaxUploadSize is 100 MiB.
	DefaultMaxUploadSize int64 = 100 * 1024 * 1024
	// UploadSuccessMessage accompanies every stored upload.
	UploadSuccessMessage = "File uploaded successfully"

	defaultPresignExpiry = 15 * time.Minute
	cleanupTimeout       = 10 * time.Second
	storageKeyTimeLayout = "20060102_150405"
)

// DefaultAllowedExtensions lists the AEC artifact types accepted by default.
var DefaultAllowedExtensions = []string{".dwg", ".rvt", ".ifc", ".nwd", ".pdf", ".txt"}

// IngestionService stores uploaded bytes in the blob store and records their metadata.
type IngestionService struct {
	db            *gorm.DB
	blobs         storage.BlobStore
	allowed       map[string]struct{}
	maxSize       int64
	presignExpiry time.Duration
	now           func() time.Time
	log           *zap.Logger
}

// IngestionOption customises an IngestionService.
type IngestionOption func(*IngestionService)

// WithAllowedExtensions replaces the accepted extension set. Matching is case-insensitive.
func WithAllowedExtensions(exts []string) IngestionOption {
	return func(s *IngestionService) {
		if set := normaliseExtensions(exts); len(set) > 0 {
			s.allowed = set
		}
	}
}

// WithMaxUploadSize caps the accepted upload size in bytes.
func WithMaxUploadSize(size int64) IngestionOption {
	return func(s *IngestionService) {
		if size > 0 {
			s.maxSize = size
		}
	}
}

// WithPresignExpiry sets how long download links stay valid.
func WithPresignExpiry(d time.Duration) IngestionOption {
	return func(s *IngestionService) {
		if d > 0 {
			s.presignExpiry = d
		}
	}
}

// WithClock overrides the time source used for storage keys and timestamps.
func WithClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIngestionService constructs the upload service.
func NewIngestionService(db *gorm.DB, blobs storage.BlobStore, opts ...IngestionOption) (*IngestionService, error) {
	if db == nil {
		return nil, errors.New("ingestion service: db is required")
	}
	if blobs == nil {
		return nil, errors.New("ingestion service: blob store is required")
	}

	svc := &IngestionService{
		db:            db,
		blobs:         blobs,
		allowed:       normaliseExtensions(DefaultAllowedExtensions),
		maxSize:       DefaultMaxUploadSize,
		presignExpiry: defaultPresignExpiry,
		now:           time.Now,
		log:           logger.WithModule("ingestion"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UploadInput describes one file to ingest. Size is the declared byte length;
// a negative value means unknown.
type UploadInput struct {
	Filename    string    `json:"filename" validate:"required,safefilename"`
	ProjectID   *string   `json:"project_id" validate:"omitempty,max=100,safefilename"`
	Description *string   `json:"description"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"-" validate:"-"`
	Body        io.Reader `json:"-" validate:"-"`
}

// UploadResult is returned for a stored upload.
type UploadResult struct {
	ID              int64     `json:"id"`
	Filename        string    `json:"filename"`
	StorageKey      string    `json:"storage_key"`
	StorageBucket   string    `json:"storage_bucket"`
	FileSize        int64     `json:"file_size"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	Message         string    `json:"message"`
}

// DownloadLink is a time-limited URL for fetching a stored file.
type DownloadLink struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	ExpiresIn int64  `json:"expires_in"`
}

// AllowedExtensions returns the accepted extensions in sorted order.
func (s *IngestionService) AllowedExtensions() []string {
	return sortedKeys(s.allowed)
}

// MaxUploadSize returns the upload size cap in bytes.
func (s *IngestionService) MaxUploadSize() int64 {
	return s.maxSize
}

// Upload validates the input, writes the blob and then inserts the metadata row.
// Rejected input never reaches the blob store. When the insert fails the blob is
// removed again, except on a storage key collision where it backs the earlier row.
func (s *IngestionService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if s == nil {
		return nil, errors.New("ingestion service: service not initialised")
	}
	ctx = ensuredContext(ctx)
	started := time.Now()

	in.Filename = strings.TrimSpace(in.Filename)
	in.ProjectID = optionalString(in.ProjectID)
	in.Description = optionalString(in.Description)

	if err := s.validate(in); err != nil {
		monitoring.RecordUpload(monitoring.UploadRejected, 0, time.Since(started))
		s.log.Info("upload rejected",
			zap.String("filename", in.Filename),
			zap.Int64("size", in.Size),
			zap.String("reason", err.Error()),
		)
		return nil, err
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = DefaultContentType
	}

	uploadedAt := s.now().UTC()
	key := StorageKey(in.ProjectID, uploadedAt, in.Filename)
	fields := []zap.Field{
		zap.String("filename", in.Filename),
		zap.String("storage_key", key),
		zap.String("content_type", contentType),
		zap.Stringp("project_id", in.ProjectID),
	}

	written, err := s.blobs.Put(ctx, key, in.Body, in.Size, contentType)
	if err != nil {
		monitoring.RecordUpload(monitoring.UploadError, 0, time.Since(started))
		s.log.Error("blob write failed", append(fields, zap.Error(err))...)
		return nil, appErrors.ErrUploadFailed.WithInternal(fmt.Errorf("store blob %q: %w", key, err))
	}

	record := models.FileMetadata{
		Filename:        in.Filename,
		StorageKey:      key,
		StorageBucket:   s.blobs.Bucket(),
		FileSize:        written,
		ContentType:     &contentType,
		ProjectID:       in.ProjectID,
		Description:     in.Description,
		UploadTimestamp: uploadedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		monitoring.RecordUpload(monitoring.UploadError, 0, time.Since(started))
		s.log.Error("metadata insert failed", append(fields, zap.Error(err))...)
		if !isUniqueConstraintError(err) {
			s.removeOrphan(ctx, key)
		}
		return nil, appErrors.ErrUploadFailed.WithInternal(fmt.Errorf("insert metadata %q: %w", key, err))
	}

	monitoring.RecordUpload(monitoring.UploadSuccess, written, time.Since(started))
	s.log.Info("file uploaded", append(fields,
		zap.Int64("id", record.ID),
		zap.Int64("file_size", written),
	)...)

	return &UploadResult{
		ID:              record.ID,
		Filename:        record.Filename,
		StorageKey:      record.StorageKey,
		StorageBucket:   record.StorageBucket,
		FileSize:        record.FileSize,
		UploadTimestamp: record.UploadTimestamp,
		Message:         UploadSuccessMessage,
	}, nil
}

// DownloadURL presigns a GET for the blob behind record id.
func (s *IngestionService) DownloadURL(ctx context.Context, id int64) (*DownloadLink, error) {
	if s == nil {
		return nil, errors.New("ingestion service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	record, err := findFile(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	u, err := s.blobs.PresignGet(ctx, record.StorageKey, record.Filename, s.presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("ingestion service: presign %q: %w", record.StorageKey, err)
	}
	return &DownloadLink{
		URL:       u.String(),
		Filename:  record.Filename,
		ExpiresIn: int64(s.presignExpiry.Seconds()),
	}, nil
}

func (s *IngestionService) validate(in UploadInput) error {
	if in.Filename == "" {
		return appErrors.NewBadRequest("Filename is required")
	}
	if err := validator.ValidateStruct(in); err != nil {
		return appErrors.NewBadRequest(validator.Describe(err))
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if _, ok := s.allowed[ext]; !ok {
		if ext == "" {
			ext = "(none)"
		}
		return appErrors.NewBadRequest(fmt.Sprintf("File type %s not allowed. Allowed types: %s",
			ext, strings.Join(s.AllowedExtensions(), ", ")))
	}

	if in.Size > s.maxSize {
		return appErrors.NewBadRequest(fmt.Sprintf("File too large. Maximum size is %d bytes", s.maxSize))
	}
	if in.Body == nil {
		return appErrors.NewBadRequest("File content is required")
	}
	return nil
}

func (s *IngestionService) removeOrphan(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(cleanupCtx, key); err != nil {
		s.log.Warn("orphaned blob cleanup failed", zap.String("storage_key", key), zap.Error(err))
	}
}

// StorageKey builds uploads/{project or "general"}/{YYYYMMDD_HHMMSS}/{filename}.
func StorageKey(projectID *string, at time.Time, filename string) string {
	project := "general"
	if projectID != nil && *projectID != "" {
		project = *projectID
	}
	return fmt.Sprintf("uploads/%s/%s/%s", project, at.UTC().Format(storageKeyTimeLayout), filename)
}
