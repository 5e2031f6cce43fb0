package inmemdb

import (
	"sync"

	"github.com/darasa-app/darasa/core/content"
)

type (
	DB struct {
		content *contentTables
	}

	// contentTables is the whole content store behind one lock so that
	// Apply can commit a multi-record ChangeSet atomically.
	contentTables struct {
		sync.RWMutex
		versions map[string]*content.LessonVersion
		blocks   map[string]*content.Block
		assets   map[string]*content.Asset
	}
)

func Open() (*DB, error) {
	db := &DB{
		content: &contentTables{
			versions: make(map[string]*content.LessonVersion),
			blocks:   make(map[string]*content.Block),
			assets:   make(map[string]*content.Asset),
		},
	}
	return db, nil
}
