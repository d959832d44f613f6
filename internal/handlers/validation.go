package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/aecdata/pipeline/pkg/errors"
)

// parseIntQuery reads an integer query parameter. Missing values yield fallback;
// malformed values are a validation error.
func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, appErrors.NewBadRequest(fmt.Sprintf("%s must be an integer", key))
	}
	return parsed, nil
}

// parseFileID reads the :id path parameter.
func parseFileID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		return 0, appErrors.NewBadRequest("Invalid file id")
	}
	return id, nil
}

// formValue prefers the multipart form field and falls back to the query string.
func formValue(c *gin.Context, key string) *string {
	if value, ok := c.GetPostForm(key); ok {
		return &value
	}
	if value, ok := c.GetQuery(key); ok {
		return &value
	}
	return nil
}
