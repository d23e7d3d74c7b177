package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRunNotFound is returned when no run matches an id.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when an id prefix matches several runs.
	ErrAmbiguousRun = errors.New("ambiguous run id")
)

// RunStore provides run-related database operations.
type RunStore struct {
	db *gorm.DB
}

// NewRunStore creates a new run store.
func NewRunStore(store *Store) *RunStore {
	return &RunStore{db: store.DB}
}

// SaveRun stores a run and its clusters in one transaction and returns the run id.
func (s *RunStore) SaveRun(ctx context.Context, run *Run, clusters []Cluster) (string, error) {
	if run.CompletedAtEpoch == 0 {
		run.CompletedAtEpoch = time.Now().UnixMilli()
	}
	if run.Status == "" {
		run.Status = "completed"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if len(clusters) == 0 {
			return nil
		}
		for i := range clusters {
			clusters[i].RunID = run.ID
		}
		if err := tx.Omit(clause.Associations).CreateInBatches(clusters, 500).Error; err != nil {
			return fmt.Errorf("insert clusters: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// GetRun returns the run whose id equals or starts with id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Where("id = ? OR id LIKE ?", id, id+"%").
		Limit(2).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return &runs[0], nil
	}
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
}

// ListRuns returns the most recent runs first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	q := s.db.WithContext(ctx).Order("started_at_epoch DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Clusters returns the clusters of a run in emission order.
func (s *RunStore) Clusters(ctx context.Context, runID string) ([]Cluster, error) {
	var clusters []Cluster
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id").
		Find(&clusters).Error
	if err != nil {
		return nil, err
	}
	return clusters, nil
}

// DeleteRun removes a run and its clusters.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&Cluster{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}

// PruneRuns keeps the newest keep runs and deletes the rest, returning the deleted ids.
func (s *RunStore) PruneRuns(ctx context.Context, keep int) ([]string, error) {
	var idsToDelete []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idsToKeep []string
		err := tx.Model(&Run{}).
			Order("started_at_epoch DESC").
			Order("id").
			Limit(keep).
			Pluck("id", &idsToKeep).Error
		if err != nil {
			return err
		}

		q := tx.Model(&Run{})
		if len(idsToKeep) > 0 {
			q = q.Where("id NOT IN ?", idsToKeep)
		}
		if err := q.Pluck("id", &idsToDelete).Error; err != nil {
			return err
		}
		if len(idsToDelete) == 0 {
			return nil
		}

		if err := tx.Where("run_id IN ?", idsToDelete).Delete(&Cluster{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", idsToDelete).Delete(&Run{}).Error
	})
	if err != nil {
		return nil, err
	}
	return idsToDelete, nil
}
