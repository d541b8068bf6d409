// Package file defines the stored-file records owned by institutions: one
// optional geo file (GeoJSON, possibly uploaded as KML) and one optional
// image file per institution.
package file

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the two stored-file tables.
type Kind string

const (
	KindGeo   Kind = "geo"
	KindImage Kind = "image"
)

// KindFromString validates a transport-level kind segment.
func KindFromString(s string) (Kind, bool) {
	switch Kind(s) {
	case KindGeo:
		return KindGeo, true
	case KindImage:
		return KindImage, true
	default:
		return "", false
	}
}

// Label is the human-readable name used in error messages.
func (k Kind) Label() string {
	if k == KindGeo {
		return "geo file"
	}
	return "image file"
}

// Metadata is the shape shared by both file tables. Name is the final
// on-disk filename and is unique within its kind.
type Metadata struct {
	ID            string    `json:"id" gorm:"primaryKey;size:60"`
	Name          string    `json:"name" gorm:"size:60;not null;uniqueIndex"`
	ContentType   string    `json:"content_type" gorm:"size:60;not null"`
	Size          int64     `json:"size" gorm:"not null"`
	URL           string    `json:"url" gorm:"size:128;not null"`
	Path          string    `json:"-" gorm:"size:128;not null"`
	InstitutionID string    `json:"institution_id" gorm:"size:60;not null;index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type GeoFile struct {
	Metadata `gorm:"embedded"`
}

func (GeoFile) TableName() string { return "geofiles" }

type ImageFile struct {
	Metadata `gorm:"embedded"`
}

func (ImageFile) TableName() string { return "imagefiles" }

// Record is either a *GeoFile or an *ImageFile.
type Record interface {
	Meta() *Metadata
	Kind() Kind
}

func (f *GeoFile) Meta() *Metadata { return &f.Metadata }
func (f *GeoFile) Kind() Kind      { return KindGeo }

func (f *ImageFile) Meta() *Metadata { return &f.Metadata }
func (f *ImageFile) Kind() Kind      { return KindImage }

// New creates a record of the given kind with a fresh ID.
func New(kind Kind, meta Metadata) Record {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = now
	}
	if kind == KindGeo {
		return &GeoFile{Metadata: meta}
	}
	return &ImageFile{Metadata: meta}
}

// Info is the client-facing projection of a stored file.
type Info struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

func InfoOf(rec Record) Info {
	m := rec.Meta()
	return Info{
		Name:        m.Name,
		ContentType: m.ContentType,
		Size:        m.Size,
		URL:         m.URL,
	}
}
