package catalogsvc

import (
	"context"

	"github.com/darasa-app/darasa/core"
)

// consoleService logs the recompute signal instead of calling the catalog
// subsystem; used in DEV and wherever the catalog is not deployed.
type consoleService struct {
	logger core.Logger
}

var _ core.CatalogService = (*consoleService)(nil)

func NewConsoleService(logger core.Logger) core.CatalogService {
	return &consoleService{logger: logger}
}

func (svc consoleService) LessonPublished(ctx context.Context, pub core.PublishedLesson) error {
	svc.logger.Info(
		"lesson published; catalog aggregates need a recompute",
		map[string]interface{}{
			"lesson_id":      pub.LessonID,
			"version_id":     pub.VersionID,
			"version_number": pub.VersionNumber,
			"block_count":    pub.BlockCount,
		},
	)
	return nil
}
