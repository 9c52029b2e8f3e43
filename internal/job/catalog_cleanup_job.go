package job

import (
	"context"
	"time"

	"github.com/opendiscourse/corpusd/internal/repo"
)

// CatalogCleanupJob prunes old catalog rows. Pruned files re-ingest on the
// next sweep if they reappear, which is safe: chunk and node identifiers
// are content-derived, so the stores just overwrite.
type CatalogCleanupJob struct {
	catalog    *repo.CatalogRepo
	maxAgeDays int
}

func NewCatalogCleanupJob(catalog *repo.CatalogRepo, maxAgeDays int) *CatalogCleanupJob {
	return &CatalogCleanupJob{catalog: catalog, maxAgeDays: maxAgeDays}
}

func (j *CatalogCleanupJob) Name() string {
	return "catalog_cleanup"
}

func (j *CatalogCleanupJob) Run(ctx context.Context) error {
	if j.catalog == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 90
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).UnixMilli()
	_, err := j.catalog.DeleteBefore(ctx, cutoff)
	return err
}
