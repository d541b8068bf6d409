package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
	"github.com/chaptermaps/institution-service/pkg/logger"
)

func newTestStore(t *testing.T) (*FileStore, string, string) {
	t.Helper()
	geoDir := t.TempDir()
	imageDir := t.TempDir()
	store := NewFileStore(Config{GeoDir: geoDir, ImageDir: imageDir}, logger.NewNop())
	return store, geoDir, imageDir
}

func upload(filename, contentType, content string) *Upload {
	return &Upload{
		Filename:    filename,
		ContentType: contentType,
		Content:     io.NopCloser(strings.NewReader(content)),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFileStoreSaveImage(t *testing.T) {
	store, _, imageDir := newTestStore(t)

	content := "\x89PNG fake image bytes"
	path, err := store.Save(context.Background(), upload("logo.png", "image/png", content), ClassImage)
	require.NoError(t, err)

	assert.Equal(t, imageDir, filepath.Dir(path))
	assert.Regexp(t, storedNameRe, filepath.Base(path))
	assert.Equal(t, ".png", filepath.Ext(path))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(saved))
}

func TestFileStoreSaveGeoJSON(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	content := `{"type":"FeatureCollection","features":[]}`
	path, err := store.Save(context.Background(), upload("map.geojson", "application/geo+json", content), ClassGeo)
	require.NoError(t, err)

	assert.Equal(t, geoDir, filepath.Dir(path))
	assert.Equal(t, ".geojson", filepath.Ext(path))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(saved))
}

func TestFileStoreSaveKMLConverts(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	path, err := store.Save(context.Background(), upload("campus.kml", "application/vnd.google-earth.kml+xml", pointKML), ClassGeo)
	require.NoError(t, err)

	assert.Equal(t, ".geojson", filepath.Ext(path))
	assert.True(t, store.Exists(path))

	// The raw KML must be gone, only the converted file remains.
	names := listDir(t, geoDir)
	require.Len(t, names, 1)
	assert.Equal(t, filepath.Base(path), names[0])

	parsed, err := store.LoadGeoContent(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "FeatureCollection", parsed["type"])
}

func TestFileStoreSaveInvalidKMLLeavesNoArtifacts(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	_, err := store.Save(context.Background(), upload("broken.kml", "application/vnd.google-earth.kml+xml", "<kml><invalid"), ClassGeo)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConversion, apperr.KindOf(err))

	assert.Empty(t, listDir(t, geoDir))
}

func TestFileStoreSaveEmptyUpload(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	_, err := store.Save(context.Background(), upload("empty.geojson", "application/geo+json", ""), ClassGeo)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Empty(t, listDir(t, geoDir))
}

func TestFileStoreSaveCanceledContext(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, upload("map.geojson", "application/geo+json", "{}"), ClassGeo)
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Empty(t, listDir(t, geoDir))
}

func TestFileStoreOverwrite(t *testing.T) {
	store, _, _ := newTestStore(t)

	original := `{"type":"FeatureCollection","features":[]}`
	path, err := store.Save(context.Background(), upload("map.geojson", "application/geo+json", original), ClassGeo)
	require.NoError(t, err)

	replacement := `{"type":"Feature","geometry":null,"properties":{}}`
	err = store.Overwrite(context.Background(), upload("map.geojson", "application/geo+json", replacement), path)
	require.NoError(t, err)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, replacement, string(saved))

	// No staging leftovers in the directory.
	names := listDir(t, filepath.Dir(path))
	require.Len(t, names, 1)
}

func TestFileStoreOverwriteWithKML(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	path, err := store.Save(context.Background(), upload("map.geojson", "application/geo+json", `{"type":"FeatureCollection","features":[]}`), ClassGeo)
	require.NoError(t, err)

	err = store.Overwrite(context.Background(), upload("update.kml", "application/vnd.google-earth.kml+xml", pointKML), path)
	require.NoError(t, err)

	parsed, err := store.LoadGeoContent(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "FeatureCollection", parsed["type"])

	assert.Len(t, listDir(t, geoDir), 1)
}

func TestFileStoreOverwriteFailureKeepsTarget(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	original := `{"type":"FeatureCollection","features":[]}`
	path, err := store.Save(context.Background(), upload("map.geojson", "application/geo+json", original), ClassGeo)
	require.NoError(t, err)

	err = store.Overwrite(context.Background(), upload("broken.kml", "application/vnd.google-earth.kml+xml", "<kml><invalid"), path)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConversion, apperr.KindOf(err))

	// The target is untouched and no temp files linger.
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(saved))
	assert.Len(t, listDir(t, geoDir), 1)
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	store, _, _ := newTestStore(t)

	path, err := store.Save(context.Background(), upload("logo.png", "image/png", "bytes"), ClassImage)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), path))
	assert.False(t, store.Exists(path))

	// A second delete of the same path is a no-op.
	require.NoError(t, store.Delete(context.Background(), path))
}

func TestFileStoreLoadGeoContent(t *testing.T) {
	store, geoDir, _ := newTestStore(t)

	write := func(name, content string) string {
		path := filepath.Join(geoDir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("valid object", func(t *testing.T) {
		path := write("ok.geojson", `{"type":"FeatureCollection","features":[]}`)
		parsed, err := store.LoadGeoContent(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "FeatureCollection", parsed["type"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.LoadGeoContent(context.Background(), filepath.Join(geoDir, "absent.geojson"))
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("invalid JSON", func(t *testing.T) {
		path := write("bad.geojson", "{not json")
		_, err := store.LoadGeoContent(context.Background(), path)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("not an object", func(t *testing.T) {
		path := write("array.geojson", "[1,2,3]")
		_, err := store.LoadGeoContent(context.Background(), path)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("missing type key", func(t *testing.T) {
		path := write("untyped.geojson", `{"features":[]}`)
		_, err := store.LoadGeoContent(context.Background(), path)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestFileStoreSize(t *testing.T) {
	store, _, _ := newTestStore(t)

	path, err := store.Save(context.Background(), upload("logo.png", "image/png", "12345"), ClassImage)
	require.NoError(t, err)

	size, err := store.Size(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = store.Size(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
}
