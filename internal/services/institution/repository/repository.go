package repository

import (
	"context"

	"github.com/chaptermaps/institution-service/internal/domain/institution"
	"github.com/chaptermaps/institution-service/pkg/database"
)

// InstitutionRepository persists institution rows.
type InstitutionRepository struct {
	db *database.DB
}

func NewInstitutionRepository(db *database.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func (r *InstitutionRepository) Create(ctx context.Context, inst *institution.Institution) error {
	return r.db.WithContext(ctx).Create(inst).Error
}

// GetByID retrieves an institution with its file associations. Returns
// gorm.ErrRecordNotFound when no row matches.
func (r *InstitutionRepository) GetByID(ctx context.Context, id string) (*institution.Institution, error) {
	var inst institution.Institution
	err := r.db.WithContext(ctx).
		Preload("GeoFile").
		Preload("ImageFile").
		Where("id = ?", id).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *InstitutionRepository) List(ctx context.Context) ([]*institution.Institution, error) {
	var institutions []*institution.Institution
	err := r.db.WithContext(ctx).
		Preload("GeoFile").
		Preload("ImageFile").
		Order("created_at DESC").
		Find(&institutions).Error
	return institutions, err
}

func (r *InstitutionRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&institution.Institution{}).
		Where("name = ?", name).
		Count(&count).Error
	return count > 0, err
}

func (r *InstitutionRepository) Save(ctx context.Context, inst *institution.Institution) error {
	return r.db.WithContext(ctx).Save(inst).Error
}

func (r *InstitutionRepository) Delete(ctx context.Context, inst *institution.Institution) error {
	return r.db.WithContext(ctx).Delete(inst).Error
}
