package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/darasa-app/darasa/core"
	"github.com/darasa-app/darasa/core/content"
)

type contentRepository struct {
	db *contentTables
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) *contentRepository {
	return &contentRepository{db: db.content}
}

func (repo *contentRepository) GetVersionByID(ctx context.Context, id string) (content.LessonVersion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if v, ok := repo.db.versions[id]; ok {
		return cloneVersion(*v), nil
	}
	return content.LessonVersion{}, content.ErrNotFound
}

func (repo *contentRepository) GetLessonVersion(ctx context.Context, lessonID string, status content.VersionStatus) (content.LessonVersion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if v, ok := repo.lessonVersion(lessonID, status); ok {
		return cloneVersion(*v), nil
	}
	return content.LessonVersion{}, content.ErrNotFound
}

// lessonVersion must be called with the lock held.
func (repo *contentRepository) lessonVersion(lessonID string, status content.VersionStatus) (*content.LessonVersion, bool) {
	for _, v := range repo.db.versions {
		if v.LessonID == lessonID && v.Status == status {
			return v, true
		}
	}
	return nil, false
}

func (repo *contentRepository) MaxVersionNumber(ctx context.Context, lessonID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var max int
	for _, v := range repo.db.versions {
		if v.LessonID == lessonID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (repo *contentRepository) GetBlockByID(ctx context.Context, id string) (content.Block, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.blocks[id]; ok {
		return *b, nil
	}
	return content.Block{}, content.ErrNotFound
}

func (repo *contentRepository) QueryVersionBlocks(ctx context.Context, versionID string) ([]content.Block, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	blocks := make([]content.Block, 0)
	for _, b := range repo.db.blocks {
		if b.VersionID == versionID {
			blocks = append(blocks, *b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].SlotID != blocks[j].SlotID {
			return blocks[i].SlotID < blocks[j].SlotID
		}
		return blocks[i].OrderIndex < blocks[j].OrderIndex
	})
	return blocks, nil
}

func (repo *contentRepository) QueryAssets(ctx context.Context, lessonID string, versionID *string, ordering []core.DBOrdering) ([]content.Asset, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assets := make([]content.Asset, 0)
	for _, a := range repo.db.assets {
		if a.LessonID != lessonID {
			continue
		}
		switch {
		case versionID == nil && a.VersionID == nil:
			assets = append(assets, *a)
		case versionID != nil && a.VersionID != nil && *a.VersionID == *versionID:
			assets = append(assets, *a)
		}
	}
	sortAssets(assets, ordering)
	return assets, nil
}

func sortAssets(assets []content.Asset, ordering []core.DBOrdering) {
	ord := core.DBOrdering{Field: "created_at", Ascending: true}
	if len(ordering) > 0 {
		ord = ordering[0]
	}
	sort.Slice(assets, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "uri":
			less = strings.Compare(assets[i].URI, assets[j].URI) < 0
		default:
			less = assets[i].CreatedAt.Before(assets[j].CreatedAt)
		}
		if ord.Ascending {
			return less
		}
		return !less
	})
}

// Apply commits the ChangeSet under the write lock: guards and lesson
// uniqueness are checked against current state before anything is touched,
// so a failed Apply leaves the store exactly as it was.
func (repo *contentRepository) Apply(ctx context.Context, cs content.ChangeSet) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	// stale guards fail the whole ChangeSet
	for _, g := range cs.Guards {
		v, ok := repo.db.versions[g.VersionID]
		if !ok {
			return errors.Wrapf(content.ErrConflict, "guarded version %q is gone", g.VersionID)
		}
		if v.Revision != g.Revision {
			return errors.Wrapf(content.ErrConflict, "revision %d, now at %d", g.Revision, v.Revision)
		}
	}

	// at most one draft and one published per lesson, counting staged puts
	for _, put := range cs.PutVersions {
		if put.Status != content.StatusDraft && put.Status != content.StatusPublished {
			continue
		}
		if cur, ok := repo.lessonVersion(put.LessonID, put.Status); ok && cur.ID != put.ID {
			if !supersededBy(cs, *cur) {
				return errors.Wrapf(content.ErrConflict, "lesson %q already has a %s version", put.LessonID, put.Status)
			}
		}
	}

	for _, id := range cs.DeleteBlockIDs {
		delete(repo.db.blocks, id)
	}
	for _, put := range cs.PutVersions {
		v := cloneVersion(put)
		repo.db.versions[put.ID] = &v
	}
	for _, put := range cs.PutBlocks {
		b := put
		repo.db.blocks[put.ID] = &b
	}
	for _, put := range cs.PutAssets {
		a := put
		repo.db.assets[put.ID] = &a
	}
	return nil
}

// supersededBy reports whether the ChangeSet also rewrites cur to a different
// status, as a publish swap does with the previously published version.
func supersededBy(cs content.ChangeSet, cur content.LessonVersion) bool {
	for _, put := range cs.PutVersions {
		if put.ID == cur.ID && put.Status != cur.Status {
			return true
		}
	}
	return false
}

func cloneVersion(v content.LessonVersion) content.LessonVersion {
	if v.Layout != nil {
		slots := make([]content.Slot, len(v.Layout.Slots))
		copy(slots, v.Layout.Slots)
		v.Layout = &content.Layout{Slots: slots}
	}
	if v.Metadata != nil {
		meta := make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			meta[k] = val
		}
		v.Metadata = meta
	}
	return v
}
