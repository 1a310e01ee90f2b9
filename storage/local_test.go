package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	id := uuid.New()
	path, err := s.Upload(ctx, id, "q1 audit/report.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.Contains(t, path, id.String())
	assert.NotContains(t, path, " ")

	rc, err := s.Download(ctx, path)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "pdf bytes", string(content))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Download(ctx, path)
	assert.Error(t, err)
}

func TestLocalStorageDeleteMissingIsNoop(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, s.Delete(context.Background(), "documents/ab/missing.txt"))
}

func TestDocumentKeyLayout(t *testing.T) {
	id := uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

	key := documentKey(id, "Annual Report 2025.docx")

	assert.Equal(t, "documents/3f/3f2504e0-4f89-11d3-9a0c-0305e82c3301_Annual_Report_2025.docx", key)
}
