package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: runs and their clusters
		{
			ID: "001_runs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Run{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Cluster{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("clusters", "runs")
			},
		},

		// Migration 002: lookup of a run's clusters by name
		{
			ID: "002_cluster_name_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_clusters_run_name ON clusters(run_id, name)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_clusters_run_name`).Error
			},
		},
	})

	return m.Migrate()
}
