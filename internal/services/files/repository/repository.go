package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/chaptermaps/institution-service/internal/domain/file"
	"github.com/chaptermaps/institution-service/pkg/database"
)

// FileRepository persists GeoFile and ImageFile rows.
type FileRepository struct {
	db *database.DB
}

func NewFileRepository(db *database.DB) *FileRepository {
	return &FileRepository{db: db}
}

// ExistsForInstitution reports whether the institution already owns a file
// of the given kind.
func (r *FileRepository) ExistsForInstitution(ctx context.Context, institutionID string, kind file.Kind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(model(kind)).
		Where("institution_id = ?", institutionID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a new file row.
func (r *FileRepository) Create(ctx context.Context, rec file.Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindByName retrieves a file row by its unique on-disk name. Returns
// gorm.ErrRecordNotFound when no row matches.
func (r *FileRepository) FindByName(ctx context.Context, kind file.Kind, name string) (file.Record, error) {
	if kind == file.KindGeo {
		var f file.GeoFile
		if err := r.db.WithContext(ctx).Where("name = ?", name).First(&f).Error; err != nil {
			return nil, err
		}
		return &f, nil
	}

	var f file.ImageFile
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// FindByInstitution retrieves the institution's file of the given kind, or
// nil when it has none.
func (r *FileRepository) FindByInstitution(ctx context.Context, institutionID string, kind file.Kind) (file.Record, error) {
	var rec file.Record
	var err error
	if kind == file.KindGeo {
		var f file.GeoFile
		err = r.db.WithContext(ctx).Where("institution_id = ?", institutionID).First(&f).Error
		rec = &f
	} else {
		var f file.ImageFile
		err = r.db.WithContext(ctx).Where("institution_id = ?", institutionID).First(&f).Error
		rec = &f
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save updates an existing file row.
func (r *FileRepository) Save(ctx context.Context, rec file.Record) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

// Delete removes a file row.
func (r *FileRepository) Delete(ctx context.Context, rec file.Record) error {
	return r.db.WithContext(ctx).Delete(rec).Error
}

// AllPaths returns the storage paths of every row of the given kind, keyed
// by path. Used by the orphan sweeper.
func (r *FileRepository) AllPaths(ctx context.Context, kind file.Kind) (map[string]struct{}, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(model(kind)).
		Pluck("path", &paths).Error
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	return known, nil
}

func model(kind file.Kind) interface{} {
	if kind == file.KindGeo {
		return &file.GeoFile{}
	}
	return &file.ImageFile{}
}
