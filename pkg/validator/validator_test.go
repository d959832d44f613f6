package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type uploadPayload struct {
	Filename string `json:"filename" validate:"required,safefilename"`
	Size     int64  `json:"size" validate:"gte=0"`
}

type pagePayload struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=100"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(uploadPayload{Filename: "drawing.dwg", Size: 500000}))
	require.NoError(t, ValidateStruct(pagePayload{Page: 1, PerPage: 100}))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(uploadPayload{Filename: "", Size: -1})
	require.Error(t, err)

	var failures ValidationErrors
	require.True(t, errors.As(err, &failures))
	require.Len(t, failures, 2)
	require.Equal(t, "filename", failures[0].Field)
	require.Equal(t, "required", failures[0].Tag)
	require.Equal(t, "size", failures[1].Field)
}

func TestSafeFilenameRule(t *testing.T) {
	for _, name := range []string{"../etc/passwd", "a/b.txt", `a\b.txt`, "..", "."} {
		err := ValidateStruct(uploadPayload{Filename: name})
		require.Error(t, err, name)
		require.Equal(t, "filename must not contain path separators", Describe(err))
	}
	require.True(t, IsSafeFilename("site plan v2.pdf"))
	require.True(t, IsSafeFilename("plan..v2.pdf"))
	require.True(t, IsSafeFilename("..hidden.txt"))
}

func TestDescribe(t *testing.T) {
	err := ValidateStruct(pagePayload{Page: 0, PerPage: 20})
	require.Equal(t, "page must be at least 1", Describe(err))

	err = ValidateStruct(pagePayload{Page: 1, PerPage: 101})
	require.Equal(t, "per_page must be at most 100", Describe(err))

	err = ValidateStruct(uploadPayload{})
	require.Equal(t, "filename is required", Describe(err))

	require.Equal(t, "", Describe(nil))
	require.Equal(t, "boom", Describe(errors.New("boom")))
}
