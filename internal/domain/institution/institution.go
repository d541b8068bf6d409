// Package institution defines the Institution entity. Each institution owns
// at most one geo file and one image file; both are removed when the
// institution is deleted.
package institution

import (
	"time"

	"github.com/google/uuid"

	"github.com/chaptermaps/institution-service/internal/domain/file"
)

type Institution struct {
	ID                     string          `json:"id" gorm:"primaryKey;size:60"`
	Name                   string          `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Country                string          `json:"country" gorm:"size:128;not null"`
	Address                string          `json:"address" gorm:"size:128;not null"`
	ChapterName            string          `json:"chapter_name" gorm:"size:128;not null"`
	OSMMapping             int             `json:"OSM_mapping" gorm:"column:osm_mapping;not null;default:0"`
	ContributorFullName    string          `json:"contributor_full_name" gorm:"size:128;not null"`
	ContributorEmail       string          `json:"contributor_email" gorm:"size:128;not null;uniqueIndex"`
	ContributorPhoneNumber string          `json:"contributor_phone_number" gorm:"size:30;not null"`
	RoleInChapter          string          `json:"role_in_chapter" gorm:"size:128"`
	GeoFile                *file.GeoFile   `json:"geo_file,omitempty" gorm:"foreignKey:InstitutionID;constraint:OnDelete:CASCADE"`
	ImageFile              *file.ImageFile `json:"image_file,omitempty" gorm:"foreignKey:InstitutionID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (Institution) TableName() string { return "institutions" }

// New assigns a fresh ID and timestamps.
func New(inst Institution) *Institution {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	return &inst
}
