package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
	"github.com/chaptermaps/institution-service/internal/domain/institution"
	"github.com/chaptermaps/institution-service/internal/services/institution/repository"
	"github.com/chaptermaps/institution-service/pkg/events"
	"github.com/chaptermaps/institution-service/pkg/logger"
)

// FileCascade removes an institution's files when the institution goes away.
// Implemented by the file service.
type FileCascade interface {
	DeleteForInstitution(ctx context.Context, inst *institution.Institution) error
}

// InstitutionService implements institution CRUD with file cascade on delete.
type InstitutionService struct {
	repo   *repository.InstitutionRepository
	files  FileCascade
	events events.EventBus
	logger logger.Logger
}

func NewInstitutionService(
	repo *repository.InstitutionRepository,
	files FileCascade,
	eventBus events.EventBus,
	log logger.Logger,
) *InstitutionService {
	return &InstitutionService{
		repo:   repo,
		files:  files,
		events: eventBus,
		logger: log,
	}
}

func (s *InstitutionService) Create(ctx context.Context, inst institution.Institution) (*institution.Institution, error) {
	exists, err := s.repo.ExistsByName(ctx, inst.Name)
	if err != nil {
		return nil, apperr.Storage("could not check existing institutions", err)
	}
	if exists {
		return nil, apperr.Validation("institution already exists")
	}

	created := institution.New(inst)
	if err := s.repo.Create(ctx, created); err != nil {
		return nil, apperr.Storage("could not create institution", err)
	}

	s.publish(ctx, events.TypeInstitutionCreated, created)
	return created, nil
}

func (s *InstitutionService) Get(ctx context.Context, id string) (*institution.Institution, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("institution not found")
		}
		return nil, apperr.Storage("could not look up institution", err)
	}
	return inst, nil
}

func (s *InstitutionService) List(ctx context.Context) ([]*institution.Institution, error) {
	institutions, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Storage("could not list institutions", err)
	}
	return institutions, nil
}

// Updates carries the optional fields of an institution update; nil fields
// are left unchanged.
type Updates struct {
	Name                   *string
	Country                *string
	Address                *string
	ChapterName            *string
	OSMMapping             *int
	ContributorFullName    *string
	ContributorEmail       *string
	ContributorPhoneNumber *string
	RoleInChapter          *string
}

func (s *InstitutionService) Update(ctx context.Context, id string, updates Updates) (*institution.Institution, error) {
	inst, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&inst.Name, updates.Name)
	applyString(&inst.Country, updates.Country)
	applyString(&inst.Address, updates.Address)
	applyString(&inst.ChapterName, updates.ChapterName)
	applyString(&inst.ContributorFullName, updates.ContributorFullName)
	applyString(&inst.ContributorEmail, updates.ContributorEmail)
	applyString(&inst.ContributorPhoneNumber, updates.ContributorPhoneNumber)
	applyString(&inst.RoleInChapter, updates.RoleInChapter)
	if updates.OSMMapping != nil {
		inst.OSMMapping = *updates.OSMMapping
	}
	inst.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, inst); err != nil {
		return nil, apperr.Storage("could not update institution", err)
	}
	return inst, nil
}

// Delete removes an institution and cascades to its geo and image files,
// rows and on-disk artifacts both.
func (s *InstitutionService) Delete(ctx context.Context, id string) error {
	inst, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.files.DeleteForInstitution(ctx, inst); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, inst); err != nil {
		return apperr.Storage("could not delete institution", err)
	}

	s.publish(ctx, events.TypeInstitutionDeleted, inst)
	return nil
}

func (s *InstitutionService) publish(ctx context.Context, eventType string, inst *institution.Institution) {
	err := s.events.Publish(ctx, events.Event{
		Type:          eventType,
		AggregateID:   inst.ID,
		AggregateType: "institution",
		Payload: map[string]interface{}{
			"name": inst.Name,
		},
	})
	if err != nil {
		s.logger.Warn("event publish failed", "type", eventType, "error", err)
	}
}
