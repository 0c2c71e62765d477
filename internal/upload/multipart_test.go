package upload

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedUploadLifecycle(t *testing.T) {
	service := NewService(t.TempDir())

	content := strings.Repeat("x", int(DefaultPartSize)) + "tail"
	u, err := service.Initiate("owner-1", "deck.pdf", int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, 2, u.TotalParts)

	_, err = service.UploadPart("owner-1", u.ID, 1, bytes.NewReader([]byte(content[:DefaultPartSize])))
	require.NoError(t, err)

	// Completing with a missing part fails
	_, err = service.Complete("owner-1", u.ID)
	assert.Error(t, err)

	_, err = service.UploadPart("owner-1", u.ID, 2, bytes.NewReader([]byte(content[DefaultPartSize:])))
	require.NoError(t, err)

	path, err := service.Complete("owner-1", u.ID)
	require.NoError(t, err)

	assembled, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(assembled))
}

func TestChunkedUploadOwnerScoping(t *testing.T) {
	service := NewService(t.TempDir())

	u, err := service.Initiate("owner-1", "deck.pdf", 100)
	require.NoError(t, err)

	_, err = service.Get("owner-2", u.ID)
	assert.Error(t, err)

	_, err = service.UploadPart("owner-2", u.ID, 1, bytes.NewReader([]byte("data")))
	assert.Error(t, err)
}

func TestChunkedUploadAbort(t *testing.T) {
	service := NewService(t.TempDir())

	u, err := service.Initiate("owner-1", "deck.pdf", 100)
	require.NoError(t, err)

	require.NoError(t, service.Abort("owner-1", u.ID))

	_, err = service.Get("owner-1", u.ID)
	assert.Error(t, err)
}

func TestUploadPartValidation(t *testing.T) {
	service := NewService(t.TempDir())

	u, err := service.Initiate("owner-1", "deck.pdf", 100)
	require.NoError(t, err)

	_, err = service.UploadPart("owner-1", u.ID, 0, bytes.NewReader([]byte("data")))
	assert.Error(t, err)

	_, err = service.UploadPart("owner-1", u.ID, 2, bytes.NewReader([]byte("data")))
	assert.Error(t, err)
}
