package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := ErrUploadFailed.WithInternal(stdErrors.New("bucket unreachable"))

	if err.Error() != "File upload failed: bucket unreachable" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !stdErrors.Is(err, err.Internal) {
		t.Fatal("expected Unwrap to expose the internal error")
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWithInternalStillMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("upload: %w", ErrUploadFailed.WithInternal(stdErrors.New("s3 down")))
	if !stdErrors.Is(err, ErrUploadFailed) {
		t.Fatal("expected wrapped copy to match ErrUploadFailed")
	}
	if stdErrors.Is(err, ErrInternalServer) {
		t.Fatal("did not expect a match against a different code")
	}
}

func TestWithDetail(t *testing.T) {
	err := ErrRateLimit.WithDetail("50 per 1 minute")
	if err.Detail != "50 per 1 minute" {
		t.Fatalf("unexpected detail: %s", err.Detail)
	}
	if ErrRateLimit.Detail != "" {
		t.Fatal("expected sentinel to remain unchanged")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
	if !stdErrors.Is(err, ErrBadRequest) {
		t.Fatal("expected a match against ErrBadRequest")
	}
	if stdErrors.Is(ErrFileNotFound, ErrBadRequest) {
		t.Fatal("not found is not a validation failure")
	}
}
