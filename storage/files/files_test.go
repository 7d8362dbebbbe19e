package files_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/storage/files"
	"github.com/trezcool/studentportal/testutil"
)

func testStore(t *testing.T, store core.FileStore) {
	ctx := context.Background()
	name := "1_20240101_120000_" + uuid.NewString()[:8] + "_essay.pdf"

	_, err := store.Open(ctx, name)
	assert.ErrorIs(t, err, core.ErrFileNotFound)
	assert.True(t, core.IsNotFound(err))

	content := "%PDF-1.4 essay"
	require.NoError(t, store.Save(ctx, name, strings.NewReader(content), int64(len(content)), "application/pdf"))

	rc, err := store.Open(ctx, name)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, string(got))

	require.NoError(t, store.Remove(ctx, name))
	_, err = store.Open(ctx, name)
	assert.ErrorIs(t, err, core.ErrFileNotFound)
	assert.NoError(t, store.Remove(ctx, name))
}

func TestLocalStore(t *testing.T) {
	store, err := files.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)

	t.Run("names cannot escape the directory", func(t *testing.T) {
		ctx := context.Background()
		for _, name := range []string{"", ".", "..", "../x.pdf", "a/b.pdf"} {
			assert.Error(t, store.Save(ctx, name, strings.NewReader("x"), 1, ""), name)
			_, err := store.Open(ctx, name)
			assert.ErrorIs(t, err, core.ErrFileNotFound, name)
		}
	})
}

func TestMinIOStore(t *testing.T) {
	endpoint := os.Getenv("PORTAL_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("PORTAL_TEST_MINIO_ENDPOINT not set")
	}
	conf := core.NewTestConfig()
	conf.Storage.MinIO.Endpoint = endpoint
	conf.Storage.MinIO.Bucket = "portal-test"

	store, err := files.NewMinIOStore(conf.Storage.MinIO, testutil.NewLogger(conf))
	require.NoError(t, err)
	testStore(t, store)
}
