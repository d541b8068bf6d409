// Package sweep reconciles the upload directories against the database.
// A crash between file write and record insert can strand a file on disk;
// the sweeper removes such orphans once they are older than a grace period,
// so an in-flight upload is never swept between its write and its insert.
package sweep

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chaptermaps/institution-service/internal/domain/file"
	"github.com/chaptermaps/institution-service/internal/services/files/repository"
	"github.com/chaptermaps/institution-service/pkg/logger"
	"github.com/chaptermaps/institution-service/pkg/metrics"
)

type Config struct {
	Schedule    string
	GracePeriod time.Duration
	GeoDir      string
	ImageDir    string
}

type Sweeper struct {
	cfg    Config
	repo   *repository.FileRepository
	cron   *cron.Cron
	logger logger.Logger
}

func New(cfg Config, repo *repository.FileRepository, log logger.Logger) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		repo:   repo,
		cron:   cron.New(),
		logger: log,
	}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("orphan sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce sweeps both upload directories.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	metrics.SweepRunsTotal.Inc()

	if err := s.sweepDir(ctx, s.cfg.GeoDir, file.KindGeo); err != nil {
		return err
	}
	return s.sweepDir(ctx, s.cfg.ImageDir, file.KindImage)
}

func (s *Sweeper) sweepDir(ctx context.Context, dir string, kind file.Kind) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	known, err := s.repo.AllPaths(ctx, kind)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.cfg.GracePeriod)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := known[path]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			s.logger.Warn("could not remove orphaned file", "path", path, "error", err)
			continue
		}
		metrics.SweepOrphansRemoved.Inc()
		s.logger.Info("removed orphaned file", "path", path, "kind", string(kind))
	}

	return nil
}
