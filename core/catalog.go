package core

import "context"

// PublishedLesson carries what the catalog needs to recompute a lesson's
// aggregate stats (total duration, lesson counts) after a publish.
type PublishedLesson struct {
	LessonID      string
	VersionID     string
	VersionNumber int
	BlockCount    int
}

// CatalogService is the outbound hook to the catalog/progress subsystem.
// Implementations live in services/catalog.
type CatalogService interface {
	// LessonPublished signals that a new version of a lesson went live and
	// its aggregates must be recomputed. Failures are logged, never fatal:
	// the publish itself has already committed.
	LessonPublished(ctx context.Context, pub PublishedLesson) error
}
