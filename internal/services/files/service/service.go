package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
	"github.com/chaptermaps/institution-service/internal/domain/file"
	"github.com/chaptermaps/institution-service/internal/domain/institution"
	"github.com/chaptermaps/institution-service/internal/services/files/repository"
	"github.com/chaptermaps/institution-service/internal/storage"
	"github.com/chaptermaps/institution-service/pkg/cache"
	"github.com/chaptermaps/institution-service/pkg/events"
	"github.com/chaptermaps/institution-service/pkg/logger"
	"github.com/chaptermaps/institution-service/pkg/metrics"
)

const geoContentTTL = 5 * time.Minute

// FileService orchestrates the upload pipeline: classification, storage,
// the metadata rows, the read-through geo-content cache and event publishing.
type FileService struct {
	repo    *repository.FileRepository
	store   *storage.FileStore
	cache   cache.Cache
	events  events.EventBus
	logger  logger.Logger
	baseURL string
}

func NewFileService(
	repo *repository.FileRepository,
	store *storage.FileStore,
	cache cache.Cache,
	eventBus events.EventBus,
	log logger.Logger,
	baseURL string,
) *FileService {
	return &FileService{
		repo:    repo,
		store:   store,
		cache:   cache,
		events:  eventBus,
		logger:  log,
		baseURL: baseURL,
	}
}

// UploadResult groups the records created by one upload batch.
type UploadResult struct {
	GeoFiles   []*file.GeoFile
	ImageFiles []*file.ImageFile
}

// Upload validates and stores a batch of files for an institution. Each
// element is checked against the allowed MIME set and the one-file-per-kind
// rule; the first failure aborts the batch.
func (s *FileService) Upload(ctx context.Context, uploads []*storage.Upload, institutionID string) (*UploadResult, error) {
	result := &UploadResult{}

	for _, up := range uploads {
		class := storage.Classify(up.ContentType)
		if class == storage.ClassRejected {
			up.Content.Close()
			metrics.FileUploadsTotal.WithLabelValues("unknown", "rejected").Inc()
			return nil, apperr.Validation(fmt.Sprintf(
				"invalid file type %q, allowed types are images, GeoJSON, or KML", up.ContentType))
		}

		kind := file.KindImage
		if class == storage.ClassGeo {
			kind = file.KindGeo
		}

		exists, err := s.repo.ExistsForInstitution(ctx, institutionID, kind)
		if err != nil {
			up.Content.Close()
			return nil, apperr.Storage("could not check existing files", err)
		}
		if exists {
			up.Content.Close()
			metrics.FileUploadsTotal.WithLabelValues(string(kind), "rejected").Inc()
			return nil, apperr.Validation(fmt.Sprintf(
				"a %s already exists for institution", kind.Label()))
		}

		rec, err := s.saveOne(ctx, up, class, kind, institutionID)
		if err != nil {
			metrics.FileUploadsTotal.WithLabelValues(string(kind), "failure").Inc()
			return nil, err
		}
		metrics.FileUploadsTotal.WithLabelValues(string(kind), "success").Inc()

		switch f := rec.(type) {
		case *file.GeoFile:
			result.GeoFiles = append(result.GeoFiles, f)
		case *file.ImageFile:
			result.ImageFiles = append(result.ImageFiles, f)
		}

		s.publish(ctx, events.TypeFileUploaded, rec)
	}

	return result, nil
}

func (s *FileService) saveOne(ctx context.Context, up *storage.Upload, class storage.Class, kind file.Kind, institutionID string) (file.Record, error) {
	path, err := s.store.Save(ctx, up, class)
	if err != nil {
		return nil, err
	}

	size, err := s.store.Size(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	rec := file.New(kind, file.Metadata{
		Name:          name,
		ContentType:   up.ContentType,
		Size:          size,
		URL:           fmt.Sprintf("%s/api/v1/files/%s/%s", s.baseURL, kind, name),
		Path:          path,
		InstitutionID: institutionID,
	})

	if err := s.repo.Create(ctx, rec); err != nil {
		// Filesystem and database are not transactionally linked; drop the
		// artifact so a failed insert does not strand a file.
		if cleanupErr := s.store.Delete(ctx, path); cleanupErr != nil {
			s.logger.Error("failed to clean up file after record error", "path", path, "error", cleanupErr)
		}
		return nil, apperr.Storage("could not create file record", err)
	}

	return rec, nil
}

// Get retrieves a file record by kind and name, verifying the on-disk
// artifact. The two failure modes get distinct messages.
func (s *FileService) Get(ctx context.Context, kind file.Kind, name string) (file.Record, error) {
	rec, err := s.repo.FindByName(ctx, kind, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("%s not found", kind.Label()))
		}
		return nil, apperr.Storage("could not look up file record", err)
	}

	if !s.store.Exists(rec.Meta().Path) {
		return nil, apperr.NotFound(fmt.Sprintf("%s found in DB but missing in filesystem", kind.Label()))
	}

	return rec, nil
}

// GeoContent returns the parsed GeoJSON body of a stored geo file, through
// the read-through cache.
func (s *FileService) GeoContent(ctx context.Context, name string) (map[string]interface{}, error) {
	key := geoContentKey(name)

	var cached map[string]interface{}
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("geo content cache read failed", "name", name, "error", err)
	}

	rec, err := s.Get(ctx, file.KindGeo, name)
	if err != nil {
		return nil, err
	}

	content, err := s.store.LoadGeoContent(ctx, rec.Meta().Path)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, content, geoContentTTL); err != nil {
		s.logger.Warn("geo content cache write failed", "name", name, "error", err)
	}

	return content, nil
}

// Update atomically replaces the content of an existing file.
func (s *FileService) Update(ctx context.Context, kind file.Kind, name string, up *storage.Upload) (file.Record, error) {
	if storage.Classify(up.ContentType) == storage.ClassRejected {
		up.Content.Close()
		return nil, apperr.Validation(fmt.Sprintf(
			"invalid file type %q, allowed types are images, GeoJSON, or KML", up.ContentType))
	}

	rec, err := s.Get(ctx, kind, name)
	if err != nil {
		up.Content.Close()
		return nil, err
	}

	meta := rec.Meta()
	if err := s.store.Overwrite(ctx, up, meta.Path); err != nil {
		return nil, err
	}

	if size, err := s.store.Size(meta.Path); err == nil {
		meta.Size = size
	} else {
		s.logger.Warn("could not refresh file size after overwrite", "path", meta.Path, "error", err)
	}
	meta.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, apperr.Storage("could not update file record", err)
	}

	s.invalidate(ctx, name)
	s.publish(ctx, events.TypeFileUpdated, rec)
	return rec, nil
}

// Delete removes a file's on-disk artifact and its row.
func (s *FileService) Delete(ctx context.Context, kind file.Kind, name string) error {
	rec, err := s.Get(ctx, kind, name)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.Meta().Path); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, rec); err != nil {
		return apperr.Storage("could not delete file record", err)
	}

	s.invalidate(ctx, name)
	s.publish(ctx, events.TypeFileDeleted, rec)
	return nil
}

// DeleteForInstitution removes both of an institution's files, rows and
// artifacts. Missing artifacts are tolerated so a cascade never blocks.
func (s *FileService) DeleteForInstitution(ctx context.Context, inst *institution.Institution) error {
	records := []file.Record{}
	if inst.GeoFile != nil {
		records = append(records, inst.GeoFile)
	}
	if inst.ImageFile != nil {
		records = append(records, inst.ImageFile)
	}

	for _, rec := range records {
		if err := s.store.Delete(ctx, rec.Meta().Path); err != nil {
			s.logger.Error("failed to delete file during cascade", "path", rec.Meta().Path, "error", err)
		}
		if err := s.repo.Delete(ctx, rec); err != nil {
			return apperr.Storage("could not delete file record", err)
		}
		s.invalidate(ctx, rec.Meta().Name)
		s.publish(ctx, events.TypeFileDeleted, rec)
	}

	return nil
}

func (s *FileService) invalidate(ctx context.Context, name string) {
	if err := s.cache.Delete(ctx, geoContentKey(name)); err != nil {
		s.logger.Warn("geo content cache invalidation failed", "name", name, "error", err)
	}
}

// publish is best-effort: a broker outage must not fail the request.
func (s *FileService) publish(ctx context.Context, eventType string, rec file.Record) {
	meta := rec.Meta()
	err := s.events.Publish(ctx, events.Event{
		Type:          eventType,
		AggregateID:   meta.ID,
		AggregateType: "file",
		Payload: map[string]interface{}{
			"name":           meta.Name,
			"kind":           string(rec.Kind()),
			"institution_id": meta.InstitutionID,
		},
	})
	if err != nil {
		s.logger.Warn("event publish failed", "type", eventType, "error", err)
	}
}

func geoContentKey(name string) string {
	return "geo_content:" + name
}
