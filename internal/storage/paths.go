package storage

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
)

// PathAllocator hands out destination paths for incoming uploads. Names are
// a random UUID plus the original extension, so new uploads never collide
// without consulting storage or the database.
type PathAllocator struct {
	geoDir   string
	imageDir string
}

func NewPathAllocator(geoDir, imageDir string) *PathAllocator {
	return &PathAllocator{geoDir: geoDir, imageDir: imageDir}
}

// Allocate returns the destination path for an upload, creating the target
// directory if needed. Fails when the original filename has no extension.
func (a *PathAllocator) Allocate(originalName string, class Class) (string, error) {
	ext := filepath.Ext(originalName)
	if ext == "" || ext == "." {
		return "", apperr.Validation("file has no extension")
	}

	dir := a.imageDir
	if class == ClassGeo {
		dir = a.geoDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Storage("could not create upload directory", err)
	}

	return filepath.Join(dir, uuid.New().String()+ext), nil
}

// Dir returns the storage directory for a class.
func (a *PathAllocator) Dir(class Class) string {
	if class == ClassGeo {
		return a.geoDir
	}
	return a.imageDir
}
