package app

import (
	"strings"

	"github.com/aecdata/pipeline/internal/storage"
)

// Storage backends accepted by storage.backend.
const (
	StorageBackendS3     = "s3"
	StorageBackendMemory = "memory"
)

// S3Options converts the application storage configuration into storage.S3Config.
func (s StorageConfig) S3Options() storage.S3Config {
	return storage.S3Config{
		Endpoint:        strings.TrimSpace(s.Endpoint),
		Region:          strings.TrimSpace(s.Region),
		AccessKeyID:     strings.TrimSpace(s.AccessKeyID),
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
		Bucket:          strings.TrimSpace(s.Bucket),
		UseSSL:          s.UseSSL,
	}
}
