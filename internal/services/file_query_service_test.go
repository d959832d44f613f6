package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/database/testutil"
	"github.com/aecdata/pipeline/internal/models"
	appErrors "github.com/aecdata/pipeline/pkg/errors"
)

func seedFiles(t *testing.T, db *gorm.DB, records ...models.FileMetadata) []models.FileMetadata {
	t.Helper()
	for i := range records {
		require.NoError(t, db.Create(&records[i]).Error)
	}
	return records
}

func fileAt(name, project string, size int64, at time.Time) models.FileMetadata {
	record := models.FileMetadata{
		Filename:        name,
		StorageKey:      "uploads/" + project + "/" + at.Format("20060102_150405") + "/" + name,
		StorageBucket:   "aec-data-local",
		FileSize:        size,
		UploadTimestamp: at,
	}
	if project != "" {
		p := project
		record.ProjectID = &p
	}
	return record
}

func newQuery(t *testing.T) (*FileQueryService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewFileQueryService(db)
	require.NoError(t, err)
	return svc, db
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newQuery(t)

	_, err := svc.Get(context.Background(), 999999)
	require.ErrorIs(t, err, appErrors.ErrFileNotFound)

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, appErrors.ErrFileNotFound)
}

func TestListOrdersNewestFirstWithIDTieBreak(t *testing.T) {
	svc, db := newQuery(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seeded := seedFiles(t, db,
		fileAt("old.pdf", "p1", 10, base.Add(-time.Hour)),
		fileAt("tie-a.pdf", "p1", 20, base),
		fileAt("tie-b.pdf", "p1", 30, base),
		fileAt("new.pdf", "p2", 40, base.Add(time.Hour)),
	)

	page, err := svc.List(context.Background(), ListOptions{Page: 1, PerPage: 20})
	require.NoError(t, err)

	names := make([]string, 0, len(page.Files))
	for _, f := range page.Files {
		names = append(names, f.Filename)
	}
	require.Equal(t, []string{"new.pdf", "tie-b.pdf", "tie-a.pdf", "old.pdf"}, names)
	require.Greater(t, seeded[2].ID, seeded[1].ID)

	filtered, err := svc.List(context.Background(), ListOptions{Page: 1, PerPage: 20, ProjectID: "p1"})
	require.NoError(t, err)
	require.EqualValues(t, 3, filtered.Pagination.Total)
	require.Len(t, filtered.Files, 3)
}

func TestListPagination(t *testing.T) {
	svc, db := newQuery(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 45; i++ {
		seedFiles(t, db, fileAt(fmt.Sprintf("f%02d.pdf", i), "p1", int64(i), base.Add(time.Duration(i)*time.Second)))
	}

	page, err := svc.List(context.Background(), ListOptions{Page: 3, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, page.Files, 5)
	require.Equal(t, Pagination{Page: 3, PerPage: 20, Total: 45, Pages: 3}, page.Pagination)
	// Page 3 holds the five oldest uploads.
	require.EqualValues(t, 4, page.Files[0].FileSize)
	require.EqualValues(t, 0, page.Files[4].FileSize)

	capped, err := svc.List(context.Background(), ListOptions{Page: 1, PerPage: 500})
	require.NoError(t, err)
	require.Equal(t, MaxPerPage, capped.Pagination.PerPage)
	require.EqualValues(t, 1, capped.Pagination.Pages)

	beyond, err := svc.List(context.Background(), ListOptions{Page: 9, PerPage: 20})
	require.NoError(t, err)
	require.Empty(t, beyond.Files)
	require.NotNil(t, beyond.Files)
}

func TestListPageBeyondIntRangeIsEmpty(t *testing.T) {
	svc, db := newQuery(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedFiles(t, db,
		fileAt("a.pdf", "p1", 1, base),
		fileAt("b.pdf", "p1", 2, base.Add(time.Second)),
	)

	page, err := svc.List(context.Background(), ListOptions{Page: math.MaxInt, PerPage: 20})
	require.NoError(t, err)
	require.Empty(t, page.Files)
	require.Equal(t, Pagination{Page: math.MaxInt, PerPage: 20, Total: 2, Pages: 1}, page.Pagination)

	_, ok := pageOffset(math.MaxInt, MaxPerPage)
	require.False(t, ok)
	offset, ok := pageOffset(3, 20)
	require.True(t, ok)
	require.Equal(t, 40, offset)
}

func TestListRejectsInvalidPaging(t *testing.T) {
	svc, _ := newQuery(t)

	_, err := svc.List(context.Background(), ListOptions{Page: 0, PerPage: 20})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	_, err = svc.List(context.Background(), ListOptions{Page: 1, PerPage: 0})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestPageCount(t *testing.T) {
	for total := int64(0); total <= 250; total++ {
		for _, perPage := range []int{1, 7, 20, 100} {
			want := total / int64(perPage)
			if total%int64(perPage) != 0 {
				want++
			}
			require.Equal(t, want, pageCount(total, perPage), "total=%d per_page=%d", total, perPage)
		}
	}
}

func TestListRange(t *testing.T) {
	svc, db := newQuery(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedFiles(t, db, fileAt(fmt.Sprintf("r%d.txt", i), "", int64(i), base.Add(time.Duration(i)*time.Minute)))
	}

	records, err := svc.ListRange(context.Background(), RangeOptions{Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.EqualValues(t, 3, records[0].FileSize)
	require.EqualValues(t, 2, records[1].FileSize)

	_, err = svc.ListRange(context.Background(), RangeOptions{Skip: -1, Limit: 2})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	_, err = svc.ListRange(context.Background(), RangeOptions{Limit: -1})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	none, err := svc.ListRange(context.Background(), RangeOptions{Limit: 0})
	require.NoError(t, err)
	require.Empty(t, none)

	all, err := svc.ListRange(context.Background(), RangeOptions{Limit: 5000})
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestProjectStats(t *testing.T) {
	svc, db := newQuery(t)
	first := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	last := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	seedFiles(t, db,
		fileAt("a.dwg", "proj-001", 100, first),
		fileAt("b.dwg", "proj-001", 300, last),
		fileAt("c.dwg", "proj-002", 1000, last),
	)

	stats, err := svc.ProjectStats(context.Background(), "proj-001")
	require.NoError(t, err)
	require.Equal(t, "proj-001", stats.ProjectID)
	require.EqualValues(t, 2, stats.FileCount)
	require.EqualValues(t, 400, stats.TotalSize)
	require.InDelta(t, 200.0, stats.AvgSize, 1e-9)
	require.True(t, stats.FirstUpload.Equal(first))
	require.True(t, stats.LastUpload.Equal(last))

	_, err = svc.ProjectStats(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrProjectNotFound)
}
