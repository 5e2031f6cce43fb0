package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasa-app/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("content not found")
	ErrInvalidState   = errors.New("operation not allowed for the version status")
	ErrInvalidSlot    = errors.New("slot not declared by the version layout")
	ErrInvalidIndex   = errors.New("index out of range")
	ErrInvalidReorder = errors.New("block ids do not match the slot contents")
	ErrConflict       = errors.New("version was edited elsewhere")
)

type (
	// RevisionGuard makes a ChangeSet conditional on a version still being at
	// the revision the caller observed when it read its state.
	RevisionGuard struct {
		VersionID string
		Revision  int
	}

	// ChangeSet is the unit of write: all records in it are committed in a
	// single storage transaction, or none are. Partial application of a
	// multi-record mutation is the primary correctness risk of this design
	// and must be impossible, not merely unlikely.
	ChangeSet struct {
		Guards         []RevisionGuard
		PutVersions    []LessonVersion
		PutBlocks      []Block
		DeleteBlockIDs []string
		PutAssets      []Asset
	}

	Repository interface {
		GetVersionByID(ctx context.Context, id string) (LessonVersion, error)
		// GetLessonVersion returns the lesson's version with the given status.
		// Only StatusDraft and StatusPublished are meaningful lookups: a
		// lesson has many archived versions but at most one of each of these.
		GetLessonVersion(ctx context.Context, lessonID string, status VersionStatus) (LessonVersion, error)
		MaxVersionNumber(ctx context.Context, lessonID string) (int, error)
		GetBlockByID(ctx context.Context, id string) (Block, error)
		// QueryVersionBlocks returns all blocks of a version ordered by
		// (slot_id, order_index).
		QueryVersionBlocks(ctx context.Context, versionID string) ([]Block, error)
		QueryAssets(ctx context.Context, lessonID string, versionID *string, ordering []core.DBOrdering) ([]Asset, error)
		// Apply commits the ChangeSet atomically. It fails with ErrConflict
		// when a guard is stale, or when a put version would leave a lesson
		// with two drafts or two published versions.
		Apply(ctx context.Context, cs ChangeSet) error
	}

	Service struct {
		repo    Repository
		catalog core.CatalogService
		logger  core.Logger
	}
)

func NewService(repo Repository, catalog core.CatalogService, logger core.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

// CreateDraft returns the lesson's draft, creating one if none exists:
// a deep copy of the published version's layout and blocks (fresh block ids),
// or an empty draft on the default layout for a brand new lesson.
// Calling it twice resumes the same draft; it never duplicates.
func (svc *Service) CreateDraft(ctx context.Context, lessonID string) (LessonVersion, error) {
	lessonID = core.CleanString(lessonID)
	if lessonID == "" {
		return LessonVersion{}, core.NewValidationError(nil, core.FieldError{Field: "lesson_id", Error: "this field is required"})
	}

	draft, err := svc.repo.GetLessonVersion(ctx, lessonID, StatusDraft)
	if err == nil {
		return draft, nil // resume editing
	}
	if errors.Cause(err) != ErrNotFound {
		return LessonVersion{}, errors.Wrap(err, "getting existing draft")
	}

	now := time.Now().UTC()
	draft = LessonVersion{
		ID:        uuid.New().String(),
		LessonID:  lessonID,
		Status:    StatusDraft,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cs := ChangeSet{}

	pub, err := svc.repo.GetLessonVersion(ctx, lessonID, StatusPublished)
	switch {
	case err == nil:
		if pub.Layout != nil {
			draft.Layout = pub.Layout.clone()
		}
		draft.Metadata = copyMeta(pub.Metadata)
		blocks, err := svc.repo.QueryVersionBlocks(ctx, pub.ID)
		if err != nil {
			return LessonVersion{}, errors.Wrap(err, "querying published blocks")
		}
		for _, blk := range blocks {
			blk.ID = uuid.New().String()
			blk.VersionID = draft.ID
			blk.CreatedAt = now
			blk.UpdatedAt = now
			cs.PutBlocks = append(cs.PutBlocks, blk)
		}
	case errors.Cause(err) == ErrNotFound:
		// brand new lesson: empty draft on the default layout
	default:
		return LessonVersion{}, errors.Wrap(err, "getting published version")
	}

	cs.PutVersions = []LessonVersion{draft}
	if err := svc.repo.Apply(ctx, cs); err != nil {
		if errors.Cause(err) == ErrConflict {
			// lost a concurrent createDraft race; hand back the winner
			return svc.repo.GetLessonVersion(ctx, lessonID, StatusDraft)
		}
		return LessonVersion{}, errors.Wrap(err, "creating draft")
	}
	return draft, nil
}

// Publish promotes a draft to the version students see. The previous
// published version (if any) is archived and the draft becomes published
// with the next version number, both in one transaction.
func (svc *Service) Publish(ctx context.Context, versionID string) (LessonVersion, error) {
	v, err := svc.repo.GetVersionByID(ctx, versionID)
	if err != nil {
		return LessonVersion{}, err
	}
	if v.Status != StatusDraft {
		return LessonVersion{}, errors.Wrapf(ErrInvalidState, "publishing a %s version", v.Status)
	}

	maxNum, err := svc.repo.MaxVersionNumber(ctx, v.LessonID)
	if err != nil {
		return LessonVersion{}, errors.Wrap(err, "getting max version number")
	}

	now := time.Now().UTC()
	cs := ChangeSet{Guards: []RevisionGuard{{VersionID: v.ID, Revision: v.Revision}}}

	prev, err := svc.repo.GetLessonVersion(ctx, v.LessonID, StatusPublished)
	switch {
	case err == nil:
		prev.Status = StatusArchived
		prev.UpdatedAt = now
		cs.Guards = append(cs.Guards, RevisionGuard{VersionID: prev.ID, Revision: prev.Revision})
		cs.PutVersions = append(cs.PutVersions, prev)
	case errors.Cause(err) == ErrNotFound:
		// first publish for this lesson
	default:
		return LessonVersion{}, errors.Wrap(err, "getting published version")
	}

	v.Status = StatusPublished
	v.VersionNumber = maxNum + 1
	v.Revision++
	v.UpdatedAt = now
	cs.PutVersions = append(cs.PutVersions, v)

	if err := svc.repo.Apply(ctx, cs); err != nil {
		return LessonVersion{}, errors.Wrap(err, "publishing version")
	}

	svc.notifyCatalog(ctx, v)
	return v, nil
}

// notifyCatalog fires the outbound recompute hook. The publish has already
// committed, so failures are logged and swallowed.
func (svc *Service) notifyCatalog(ctx context.Context, v LessonVersion) {
	if svc.catalog == nil {
		return
	}
	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		svc.logger.Warn("counting published blocks for catalog", err)
		return
	}
	pub := core.PublishedLesson{
		LessonID:      v.LessonID,
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		BlockCount:    len(blocks),
	}
	if err := svc.catalog.LessonPublished(ctx, pub); err != nil {
		svc.logger.Warn("catalog publish hook failed", err)
	}
}

func (svc *Service) GetDraft(ctx context.Context, lessonID string) (LessonVersion, error) {
	return svc.repo.GetLessonVersion(ctx, core.CleanString(lessonID), StatusDraft)
}

func (svc *Service) GetPublished(ctx context.Context, lessonID string) (LessonVersion, error) {
	return svc.repo.GetLessonVersion(ctx, core.CleanString(lessonID), StatusPublished)
}

func (svc *Service) GetVersion(ctx context.Context, versionID string) (LessonVersion, error) {
	return svc.repo.GetVersionByID(ctx, versionID)
}

// GetRenderable resolves the version a viewer gets for a lesson: students get
// the published version only; editors get the draft, falling back to
// published. The result carries the resolved layout with blocks per slot.
func (svc *Service) GetRenderable(ctx context.Context, lessonID string, role ViewerRole) (Renderable, error) {
	lessonID = core.CleanString(lessonID)

	var v LessonVersion
	var err error
	if role.CanEdit() {
		v, err = svc.repo.GetLessonVersion(ctx, lessonID, StatusDraft)
		if errors.Cause(err) == ErrNotFound {
			v, err = svc.repo.GetLessonVersion(ctx, lessonID, StatusPublished)
		}
	} else {
		v, err = svc.repo.GetLessonVersion(ctx, lessonID, StatusPublished)
	}
	if err != nil {
		return Renderable{}, err
	}
	return svc.renderable(ctx, v)
}

// GetRenderableVersion resolves a specific version with layout and blocks.
func (svc *Service) GetRenderableVersion(ctx context.Context, versionID string) (Renderable, error) {
	v, err := svc.repo.GetVersionByID(ctx, versionID)
	if err != nil {
		return Renderable{}, err
	}
	return svc.renderable(ctx, v)
}

func (svc *Service) renderable(ctx context.Context, v LessonVersion) (Renderable, error) {
	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		return Renderable{}, errors.Wrap(err, "querying version blocks")
	}

	layout := ResolveLayout(v)
	slots := make([]RenderableSlot, 0, len(layout.Slots))
	for _, slot := range layout.Slots {
		slots = append(slots, RenderableSlot{
			Slot:   slot,
			Blocks: slotBlocks(blocks, slot.ID),
		})
	}
	return Renderable{Version: v, Slots: slots}, nil
}

// AddBlock inserts a block into a draft slot, appending when no index is
// given. Existing blocks at and above the insertion point shift up by one.
func (svc *Service) AddBlock(ctx context.Context, versionID string, nb NewBlock) (Block, error) {
	v, err := svc.editableVersion(ctx, versionID, nb.Revision)
	if err != nil {
		return Block{}, err
	}

	layout := ResolveLayout(v)
	slot, ok := layout.Slot(nb.SlotID)
	if !ok {
		return Block{}, errors.Wrapf(ErrInvalidSlot, "%q", nb.SlotID)
	}
	if !slot.allowsKind(nb.Kind) {
		return Block{}, core.NewValidationError(nil, core.FieldError{
			Field: "kind",
			Error: "slot " + slot.ID + " does not allow " + string(nb.Kind) + " blocks",
		})
	}

	payload, err := DecodePayload(nb.Kind, nb.Payload)
	if err != nil {
		return Block{}, core.NewValidationError(err, core.FieldError{Field: "payload", Error: err.Error()})
	}

	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		return Block{}, errors.Wrap(err, "querying version blocks")
	}
	sibs := slotBlocks(blocks, slot.ID)
	if !slot.hasRoom(len(sibs)) {
		return Block{}, core.NewValidationError(nil, core.FieldError{
			Field: "slot_id",
			Error: "slot " + slot.ID + " is full",
		})
	}

	idx := len(sibs) // append by default
	if nb.AtIndex != nil {
		idx = *nb.AtIndex
		if idx < 0 || idx > len(sibs) {
			return Block{}, errors.Wrapf(ErrInvalidIndex, "index %d, slot length %d", idx, len(sibs))
		}
	}

	now := time.Now().UTC()
	blk := Block{
		ID:         uuid.New().String(),
		VersionID:  v.ID,
		SlotID:     slot.ID,
		OrderIndex: -1, // assigned by applyOrdering below
		Kind:       nb.Kind,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	cs := svc.draftChange(v, now)
	cs.PutBlocks = applyOrdering(insertAt(sibs, idx, blk), slot.ID, now)
	if err := svc.repo.Apply(ctx, cs); err != nil {
		return Block{}, errors.Wrap(err, "adding block")
	}
	blk.OrderIndex = idx
	return blk, nil
}

// UpdateBlock mutates a block's content in place; ordering and slot are
// never touched here.
func (svc *Service) UpdateBlock(ctx context.Context, blockID string, patch BlockPatch) (Block, error) {
	blk, err := svc.repo.GetBlockByID(ctx, blockID)
	if err != nil {
		return Block{}, err
	}
	v, err := svc.editableVersion(ctx, blk.VersionID, patch.Revision)
	if err != nil {
		return Block{}, err
	}

	kind := blk.Kind
	if patch.Kind != "" {
		kind = patch.Kind
	}
	if kind != blk.Kind {
		layout := ResolveLayout(v)
		if slot, ok := layout.Slot(blk.SlotID); ok && !slot.allowsKind(kind) {
			return Block{}, core.NewValidationError(nil, core.FieldError{
				Field: "kind",
				Error: "slot " + blk.SlotID + " does not allow " + string(kind) + " blocks",
			})
		}
		if len(patch.Payload) == 0 {
			return Block{}, core.NewValidationError(nil, core.FieldError{
				Field: "payload",
				Error: "payload is required when changing the block kind",
			})
		}
	}

	payload := blk.Payload
	if len(patch.Payload) > 0 {
		payload, err = DecodePayload(kind, patch.Payload)
		if err != nil {
			return Block{}, core.NewValidationError(err, core.FieldError{Field: "payload", Error: err.Error()})
		}
	}

	now := time.Now().UTC()
	blk.Kind = kind
	blk.Payload = payload
	blk.UpdatedAt = now

	cs := svc.draftChange(v, now)
	cs.PutBlocks = []Block{blk}
	if err := svc.repo.Apply(ctx, cs); err != nil {
		return Block{}, errors.Wrap(err, "updating block")
	}
	return blk, nil
}

// DeleteBlock removes a block and closes the gap it leaves: every remaining
// sibling above it shifts down by one, in the same transaction.
func (svc *Service) DeleteBlock(ctx context.Context, blockID string, revision *int) error {
	blk, err := svc.repo.GetBlockByID(ctx, blockID)
	if err != nil {
		return err
	}
	v, err := svc.editableVersion(ctx, blk.VersionID, revision)
	if err != nil {
		return err
	}

	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		return errors.Wrap(err, "querying version blocks")
	}
	now := time.Now().UTC()
	rest := without(slotBlocks(blocks, blk.SlotID), blk.ID)

	cs := svc.draftChange(v, now)
	cs.DeleteBlockIDs = []string{blk.ID}
	cs.PutBlocks = applyOrdering(rest, blk.SlotID, now)
	return errors.Wrap(svc.repo.Apply(ctx, cs), "deleting block")
}

// ReorderBlocks applies a full desired ordering to one slot. The supplied ids
// must be exactly the slot's current block ids; any mismatch rejects the whole
// request and leaves every block untouched.
func (svc *Service) ReorderBlocks(ctx context.Context, versionID, slotID string, so SlotOrder) ([]Block, error) {
	slotID = core.CleanString(slotID, true /* lower */)
	v, err := svc.editableVersion(ctx, versionID, so.Revision)
	if err != nil {
		return nil, err
	}
	layout := ResolveLayout(v)
	if _, ok := layout.Slot(slotID); !ok {
		return nil, errors.Wrapf(ErrInvalidSlot, "%q", slotID)
	}

	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying version blocks")
	}
	sibs := slotBlocks(blocks, slotID)
	if len(so.BlockIDs) != len(sibs) {
		return nil, errors.Wrapf(ErrInvalidReorder, "got %d ids, slot has %d blocks", len(so.BlockIDs), len(sibs))
	}
	byID := make(map[string]Block, len(sibs))
	for _, b := range sibs {
		byID[b.ID] = b
	}

	now := time.Now().UTC()
	ordered := make([]Block, 0, len(sibs))
	for _, id := range so.BlockIDs {
		b, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidReorder, "block %q is not in slot %q", id, slotID)
		}
		delete(byID, id) // catches duplicate ids
		ordered = append(ordered, b)
	}

	cs := svc.draftChange(v, now)
	cs.PutBlocks = applyOrdering(ordered, slotID, now)
	if err := svc.repo.Apply(ctx, cs); err != nil {
		return nil, errors.Wrap(err, "reordering blocks")
	}
	for i := range ordered {
		ordered[i].OrderIndex = i
	}
	return ordered, nil
}

// MoveBlock relocates a block to (slot, index). The source slot closes its
// gap and the target slot shifts up, both in one transaction: a crash can
// never leave either slot non-contiguous.
func (svc *Service) MoveBlock(ctx context.Context, blockID string, mv BlockMove) (Block, error) {
	blk, err := svc.repo.GetBlockByID(ctx, blockID)
	if err != nil {
		return Block{}, err
	}
	v, err := svc.editableVersion(ctx, blk.VersionID, mv.Revision)
	if err != nil {
		return Block{}, err
	}

	layout := ResolveLayout(v)
	target, ok := layout.Slot(mv.SlotID)
	if !ok {
		return Block{}, errors.Wrapf(ErrInvalidSlot, "%q", mv.SlotID)
	}

	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		return Block{}, errors.Wrap(err, "querying version blocks")
	}

	srcSlotID := blk.SlotID
	rest := without(slotBlocks(blocks, srcSlotID), blk.ID)

	var tgtRun []Block
	if target.ID == srcSlotID {
		tgtRun = rest
	} else {
		tgtRun = slotBlocks(blocks, target.ID)
		if !target.allowsKind(blk.Kind) {
			return Block{}, core.NewValidationError(nil, core.FieldError{
				Field: "slot_id",
				Error: "slot " + target.ID + " does not allow " + string(blk.Kind) + " blocks",
			})
		}
		if !target.hasRoom(len(tgtRun)) {
			return Block{}, core.NewValidationError(nil, core.FieldError{
				Field: "slot_id",
				Error: "slot " + target.ID + " is full",
			})
		}
	}
	if mv.Index < 0 || mv.Index > len(tgtRun) {
		return Block{}, errors.Wrapf(ErrInvalidIndex, "index %d, slot length %d", mv.Index, len(tgtRun))
	}

	now := time.Now().UTC()
	cs := svc.draftChange(v, now)
	if target.ID != srcSlotID {
		cs.PutBlocks = append(cs.PutBlocks, applyOrdering(rest, srcSlotID, now)...)
	}
	cs.PutBlocks = append(cs.PutBlocks, applyOrdering(insertAt(tgtRun, mv.Index, blk), target.ID, now)...)

	if err := svc.repo.Apply(ctx, cs); err != nil {
		return Block{}, errors.Wrap(err, "moving block")
	}
	blk.SlotID = target.ID
	blk.OrderIndex = mv.Index
	blk.UpdatedAt = now
	return blk, nil
}

// SetLayout replaces a draft's layout. Slot ids must be unique within the
// layout, a slot that still contains blocks cannot be dropped, and the new
// constraints must hold for existing content.
func (svc *Service) SetLayout(ctx context.Context, versionID string, nl NewLayout) (LessonVersion, error) {
	v, err := svc.editableVersion(ctx, versionID, nl.Revision)
	if err != nil {
		return LessonVersion{}, err
	}
	layout := nl.layout()

	seen := make(map[string]bool, len(layout.Slots))
	for _, slot := range layout.Slots {
		if seen[slot.ID] {
			return LessonVersion{}, core.NewValidationError(nil, core.FieldError{
				Field: "slots",
				Error: "slot " + slot.ID + " is declared more than once",
			})
		}
		seen[slot.ID] = true
	}

	blocks, err := svc.repo.QueryVersionBlocks(ctx, v.ID)
	if err != nil {
		return LessonVersion{}, errors.Wrap(err, "querying version blocks")
	}
	perSlot := make(map[string][]Block)
	for _, b := range blocks {
		perSlot[b.SlotID] = append(perSlot[b.SlotID], b)
	}
	for slotID, slotted := range perSlot {
		slot, ok := layout.Slot(slotID)
		if !ok {
			return LessonVersion{}, core.NewValidationError(nil, core.FieldError{
				Field: "slots",
				Error: "slot " + slotID + " still contains blocks",
			})
		}
		if slot.MaxBlocks > 0 && len(slotted) > slot.MaxBlocks {
			return LessonVersion{}, core.NewValidationError(nil, core.FieldError{
				Field: "slots",
				Error: "slot " + slotID + " has more blocks than the new limit",
			})
		}
		for _, b := range slotted {
			if !slot.allowsKind(b.Kind) {
				return LessonVersion{}, core.NewValidationError(nil, core.FieldError{
					Field: "slots",
					Error: "slot " + slotID + " contains a " + string(b.Kind) + " block the new constraints reject",
				})
			}
		}
	}

	now := time.Now().UTC()
	cs := svc.draftChange(v, now)
	cs.PutVersions[0].Layout = &layout
	if err := svc.repo.Apply(ctx, cs); err != nil {
		return LessonVersion{}, errors.Wrap(err, "setting layout")
	}
	return cs.PutVersions[0], nil
}

// RegisterAsset records an opaque content asset, lesson-level or scoped to
// one version. Asset lifecycle is the caller's: nothing here cascades.
func (svc *Service) RegisterAsset(ctx context.Context, lessonID string, na NewAsset) (Asset, error) {
	lessonID = core.CleanString(lessonID)

	var versionID *string
	if na.VersionID != "" {
		v, err := svc.repo.GetVersionByID(ctx, na.VersionID)
		if err != nil {
			return Asset{}, err
		}
		if v.LessonID != lessonID {
			return Asset{}, core.NewValidationError(nil, core.FieldError{
				Field: "version_id",
				Error: "version belongs to another lesson",
			})
		}
		versionID = &v.ID
	}

	asset := Asset{
		ID:        uuid.New().String(),
		LessonID:  lessonID,
		VersionID: versionID,
		URI:       na.URI,
		Kind:      na.Kind,
		Metadata:  copyMeta(na.Metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := svc.repo.Apply(ctx, ChangeSet{PutAssets: []Asset{asset}}); err != nil {
		return Asset{}, errors.Wrap(err, "registering asset")
	}
	return asset, nil
}

// QueryAssets lists assets in one scope: versionID nil means lesson-level
// assets only; non-nil means that version's assets only.
func (svc *Service) QueryAssets(ctx context.Context, lessonID string, versionID *string, ordering []core.DBOrdering) ([]Asset, error) {
	return svc.repo.QueryAssets(ctx, core.CleanString(lessonID), versionID, ordering)
}

// editableVersion loads a version and checks it may be mutated: it must be a
// draft, and when the caller supplies the revision it last observed, it must
// still match.
func (svc *Service) editableVersion(ctx context.Context, versionID string, revision *int) (LessonVersion, error) {
	v, err := svc.repo.GetVersionByID(ctx, versionID)
	if err != nil {
		return LessonVersion{}, err
	}
	if !v.Status.Editable() {
		return LessonVersion{}, errors.Wrapf(ErrInvalidState, "%s content is read-only", v.Status)
	}
	if revision != nil && *revision != v.Revision {
		return LessonVersion{}, errors.Wrapf(ErrConflict, "revision %d, now at %d", *revision, v.Revision)
	}
	return v, nil
}

// draftChange starts a ChangeSet for a draft mutation: guarded on the
// revision the service just read, with the bumped version as first put.
func (svc *Service) draftChange(v LessonVersion, now time.Time) ChangeSet {
	guard := RevisionGuard{VersionID: v.ID, Revision: v.Revision}
	v.Revision++
	v.UpdatedAt = now
	return ChangeSet{
		Guards:      []RevisionGuard{guard},
		PutVersions: []LessonVersion{v},
	}
}

func copyMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	cp := make(map[string]string, len(meta))
	for k, val := range meta {
		cp[k] = val
	}
	return cp
}
