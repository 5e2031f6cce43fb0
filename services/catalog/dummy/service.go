package dummycatalog

import (
	"context"
	"sync"

	"github.com/darasa-app/darasa/core"
)

var (
	// PublishedLessons records every signal received, for test assertions.
	PublishedLessons = make([]core.PublishedLesson, 0)
	mu               sync.Mutex
)

type service struct{}

var _ core.CatalogService = (*service)(nil)

func NewService() core.CatalogService {
	return &service{}
}

func (svc service) LessonPublished(ctx context.Context, pub core.PublishedLesson) error {
	mu.Lock()
	defer mu.Unlock()
	PublishedLessons = append(PublishedLessons, pub)
	return nil
}

// Reset clears the recorded signals between tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	PublishedLessons = PublishedLessons[:0]
}
