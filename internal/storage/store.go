package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
	"github.com/chaptermaps/institution-service/pkg/logger"
	"github.com/chaptermaps/institution-service/pkg/metrics"
)

// Upload is an incoming file: the caller-declared name and content type plus
// a byte stream. The stream is always closed by the store, whatever the
// outcome.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.ReadCloser
}

type Config struct {
	GeoDir   string
	ImageDir string
}

// FileStore orchestrates save, atomic overwrite, delete and content-load of
// files on local disk, converting KML uploads to GeoJSON on the way in.
type FileStore struct {
	alloc  *PathAllocator
	logger logger.Logger
}

func NewFileStore(cfg Config, log logger.Logger) *FileStore {
	return &FileStore{
		alloc:  NewPathAllocator(cfg.GeoDir, cfg.ImageDir),
		logger: log,
	}
}

// Save writes an upload to a freshly allocated path and returns the final
// location. KML uploads are converted to a sibling .geojson file and the raw
// .kml is removed, on failure too; a failed save leaves no artifact behind.
func (s *FileStore) Save(ctx context.Context, up *Upload, class Class) (string, error) {
	defer up.Content.Close()

	if err := ctx.Err(); err != nil {
		return "", apperr.Storage("save canceled", err)
	}

	path, err := s.alloc.Allocate(up.Filename, class)
	if err != nil {
		return "", err
	}

	content, err := io.ReadAll(up.Content)
	if err != nil {
		return "", apperr.Storage("could not read uploaded file", err)
	}
	if len(content) == 0 {
		return "", apperr.Validation("empty file uploaded")
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", apperr.Storage("could not save file on server", err)
	}

	if isKML(up.Filename) {
		geoPath := siblingGeoJSON(path)
		err := s.convertToGeoJSON(content, geoPath)
		// The raw KML is never retained, also when conversion failed.
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.Warn("failed to clean up raw KML file", "path", path, "error", removeErr)
		}
		if err != nil {
			metrics.KMLConversionsTotal.WithLabelValues("failure").Inc()
			return "", err
		}
		metrics.KMLConversionsTotal.WithLabelValues("success").Inc()
		path = geoPath
	}

	s.logger.Info("file saved", "path", path)
	return path, nil
}

// Overwrite atomically replaces targetPath with the uploaded content. The
// content is staged in a temporary file in the target's directory so the
// final rename happens within one filesystem; readers see either the old or
// the new complete file, never a partial write. On failure the target is
// untouched and the staged artifact is removed.
func (s *FileStore) Overwrite(ctx context.Context, up *Upload, targetPath string) error {
	defer up.Content.Close()

	if err := ctx.Err(); err != nil {
		return apperr.Storage("overwrite canceled", err)
	}

	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return apperr.Storage("failed to overwrite file", err)
	}
	src := tmp.Name()

	if _, err := io.Copy(tmp, up.Content); err != nil {
		tmp.Close()
		s.discard(src)
		return apperr.Storage("failed to overwrite file", err)
	}
	if err := tmp.Close(); err != nil {
		s.discard(src)
		return apperr.Storage("failed to overwrite file", err)
	}

	if isKML(up.Filename) {
		content, err := os.ReadFile(src)
		if err != nil {
			s.discard(src)
			return apperr.Storage("failed to overwrite file", err)
		}
		geoSrc := src + ".geojson"
		err = s.convertToGeoJSON(content, geoSrc)
		s.discard(src)
		if err != nil {
			metrics.KMLConversionsTotal.WithLabelValues("failure").Inc()
			return err
		}
		metrics.KMLConversionsTotal.WithLabelValues("success").Inc()
		src = geoSrc
	}

	if err := os.Rename(src, targetPath); err != nil {
		s.discard(src)
		return apperr.Storage("failed to overwrite file", err)
	}

	s.logger.Info("file overwritten", "path", targetPath)
	return nil
}

// LoadGeoContent reads and parses a stored GeoJSON file, with a minimal
// shape check: the parsed value must be an object carrying a "type" key.
func (s *FileStore) LoadGeoContent(ctx context.Context, path string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Storage("load canceled", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("GeoJSON file not found")
		}
		return nil, apperr.Storage("error loading GeoJSON file", err)
	}

	var parsed interface{}
	if err := json.Unmarshal(content, &parsed); err != nil {
		s.logger.Warn("could not parse GeoJSON file", "path", path, "error", err)
		return nil, apperr.Validation("could not parse GeoJSON file content")
	}

	object, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, apperr.Validation("invalid GeoJSON structure: not an object")
	}
	if _, ok := object["type"]; !ok {
		return nil, apperr.Validation("invalid GeoJSON structure: missing 'type' key")
	}

	return object, nil
}

// Delete removes a file. Deleting an absent path is a no-op.
func (s *FileStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage("delete canceled", err)
	}

	err := os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("attempted to delete non-existent file", "path", path)
			return nil
		}
		return apperr.Storage("failed to delete file", err)
	}

	s.logger.Info("file deleted", "path", path)
	return nil
}

// Exists reports whether a file is present at path.
func (s *FileStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the on-disk size of a stored file.
func (s *FileStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, apperr.Storage("could not stat file", err)
	}
	return info.Size(), nil
}

// convertToGeoJSON converts KML bytes and writes the result to outPath.
// Nothing is left at outPath on failure.
func (s *FileStore) convertToGeoJSON(kml []byte, outPath string) error {
	collection, err := ConvertKML(kml)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(collection)
	if err != nil {
		return apperr.Storage("KML to GeoJSON conversion failed", err)
	}

	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		s.discard(outPath)
		return apperr.Storage("KML to GeoJSON conversion failed", err)
	}
	return nil
}

func (s *FileStore) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to clean up temporary file", "path", path, "error", err)
	}
}

func isKML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".kml")
}

func siblingGeoJSON(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".geojson"
}
