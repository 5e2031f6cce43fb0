package content

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasa-app/darasa/core"
)

// VersionStatus is the lifecycle state of a LessonVersion.
// draft -> published -> archived; published and archived content is read-only.
type VersionStatus string

const (
	StatusDraft     VersionStatus = "draft"
	StatusPublished VersionStatus = "published"
	StatusArchived  VersionStatus = "archived"
)

func (s VersionStatus) Editable() bool {
	return s == StatusDraft
}

// ViewerRole decides which version of a lesson a reader gets to see.
type ViewerRole string

const (
	RoleStudent ViewerRole = "student"
	RoleTeacher ViewerRole = "teacher"
	RoleAdmin   ViewerRole = "admin"
)

// CanEdit reports whether the role sees (and may mutate) draft content.
func (r ViewerRole) CanEdit() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// LessonVersion is one snapshot of a lesson's content.
// For a given lesson there is at most one draft and at most one published
// version at any time; the Repository enforces this.
type LessonVersion struct {
	ID            string            `json:"id"`
	LessonID      string            `json:"lesson_id"`
	Status        VersionStatus     `json:"status"`
	VersionNumber int               `json:"version_number"` // assigned at publish time; 0 while draft
	Revision      int               `json:"revision"`       // optimistic-concurrency stamp, bumped on every draft mutation
	Layout        *Layout           `json:"layout,omitempty"` // nil => DefaultLayout()
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"` // UTC
	UpdatedAt     time.Time         `json:"updated_at"` // UTC
}

// Slot is a named region of a layout holding an ordered run of blocks.
type Slot struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind,omitempty"`
	MaxBlocks    int         `json:"max_blocks,omitempty"`    // 0 = unlimited
	AllowedKinds []BlockKind `json:"allowed_kinds,omitempty"` // empty = any
}

// Layout declares the ordered slots a version's content is organized into.
// It is owned by its version and immutable once the version is published.
type Layout struct {
	Slots []Slot `json:"slots"`
}

// Block is one unit of content placed in a slot at a given position.
// Per (version, slot) the order indexes are always exactly 0..n-1.
type Block struct {
	ID         string    `json:"id"`
	VersionID  string    `json:"version_id"`
	SlotID     string    `json:"slot_id"`
	OrderIndex int       `json:"order_index"`
	Kind       BlockKind `json:"kind"`
	Payload    Payload   `json:"payload"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (b *Block) UnmarshalJSON(data []byte) error {
	type alias Block
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 {
		return nil
	}
	payload, err := DecodePayload(b.Kind, aux.Payload)
	if err != nil {
		return err
	}
	b.Payload = payload
	return nil
}

// AssetKind classifies a registered content asset.
type AssetKind string

const (
	AssetImage    AssetKind = "image"
	AssetVideo    AssetKind = "video"
	AssetAudio    AssetKind = "audio"
	AssetDocument AssetKind = "document"
)

var allAssetKinds = []AssetKind{AssetImage, AssetVideo, AssetAudio, AssetDocument}

func (k AssetKind) Valid() bool {
	for _, kind := range allAssetKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Asset is an opaque content asset (URI + metadata) referenced by block
// payloads. VersionID nil means the asset is lesson-level and shared across
// versions; the engine never cascade-deletes assets.
type Asset struct {
	ID        string            `json:"id"`
	LessonID  string            `json:"lesson_id"`
	VersionID *string           `json:"version_id,omitempty"`
	URI       string            `json:"uri"`
	Kind      AssetKind         `json:"kind"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"` // UTC
}

// RenderableSlot is a resolved slot with its blocks in order.
type RenderableSlot struct {
	Slot   Slot    `json:"slot"`
	Blocks []Block `json:"blocks"`
}

// Renderable is what a viewer gets for a lesson: the resolved version, its
// layout, and the blocks grouped per slot in order.
type Renderable struct {
	Version LessonVersion    `json:"version"`
	Slots   []RenderableSlot `json:"slots"`
}

// NewBlock contains what is needed to add a block to a draft.
type NewBlock struct {
	SlotID   string          `json:"slot_id" validate:"required,slug"`
	Kind     BlockKind       `json:"kind" validate:"required,blockkind"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
	AtIndex  *int            `json:"at_index,omitempty"`
	Revision *int            `json:"revision,omitempty"`
}

func (nb *NewBlock) Validate(validate *validator.Validate) error {
	nb.SlotID = core.CleanString(nb.SlotID, true /* lower */)
	return validate.Struct(nb)
}

// BlockPatch is a content-only mutation: kind and/or payload.
// It never touches order_index or slot_id.
type BlockPatch struct {
	Kind     BlockKind       `json:"kind,omitempty" validate:"omitempty,blockkind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Revision *int            `json:"revision,omitempty"`
}

func (bp *BlockPatch) Validate(validate *validator.Validate) error {
	return validate.Struct(bp)
}

// BlockMove relocates a block to (slot, index), possibly across slots.
type BlockMove struct {
	SlotID   string `json:"slot_id" validate:"required,slug"`
	Index    int    `json:"index" validate:"min=0"`
	Revision *int   `json:"revision,omitempty"`
}

func (bm *BlockMove) Validate(validate *validator.Validate) error {
	bm.SlotID = core.CleanString(bm.SlotID, true /* lower */)
	return validate.Struct(bm)
}

// SlotOrder is the full desired ordering of a slot's blocks.
type SlotOrder struct {
	BlockIDs []string `json:"block_ids" validate:"required,min=1,dive,required"`
	Revision *int     `json:"revision,omitempty"`
}

func (so *SlotOrder) Validate(validate *validator.Validate) error {
	return validate.Struct(so)
}

// NewSlot declares one slot of a draft layout.
type NewSlot struct {
	ID           string      `json:"id" validate:"required,slug"`
	Kind         string      `json:"kind,omitempty"`
	MaxBlocks    int         `json:"max_blocks,omitempty" validate:"min=0"`
	AllowedKinds []BlockKind `json:"allowed_kinds,omitempty" validate:"dive,blockkind"`
}

// NewLayout replaces a draft's layout.
type NewLayout struct {
	Slots    []NewSlot `json:"slots" validate:"required,min=1,dive"`
	Revision *int      `json:"revision,omitempty"`
}

func (nl *NewLayout) Validate(validate *validator.Validate) error {
	for i := range nl.Slots {
		nl.Slots[i].ID = core.CleanString(nl.Slots[i].ID, true /* lower */)
	}
	return validate.Struct(nl)
}

func (nl NewLayout) layout() Layout {
	slots := make([]Slot, 0, len(nl.Slots))
	for _, ns := range nl.Slots {
		slots = append(slots, Slot{
			ID:           ns.ID,
			Kind:         ns.Kind,
			MaxBlocks:    ns.MaxBlocks,
			AllowedKinds: ns.AllowedKinds,
		})
	}
	return Layout{Slots: slots}
}

// NewAsset contains what is needed to register a content asset.
type NewAsset struct {
	VersionID string            `json:"version_id,omitempty"`
	URI       string            `json:"uri" validate:"required,uri"`
	Kind      AssetKind         `json:"kind" validate:"required,assetkind"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (na *NewAsset) Validate(validate *validator.Validate) error {
	na.URI = core.CleanString(na.URI)
	na.VersionID = core.CleanString(na.VersionID)
	return validate.Struct(na)
}
