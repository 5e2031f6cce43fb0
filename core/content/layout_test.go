package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLayout(t *testing.T) {
	t.Run("nil layout resolves to the default slot", func(t *testing.T) {
		layout := ResolveLayout(LessonVersion{})
		assert.Len(t, layout.Slots, 1)
		assert.Equal(t, DefaultSlotID, layout.Slots[0].ID)
	})

	t.Run("empty layout resolves to the default slot", func(t *testing.T) {
		layout := ResolveLayout(LessonVersion{Layout: &Layout{}})
		assert.Len(t, layout.Slots, 1)
		assert.Equal(t, DefaultSlotID, layout.Slots[0].ID)
	})

	t.Run("explicit layout wins", func(t *testing.T) {
		explicit := &Layout{Slots: []Slot{{ID: "header"}, {ID: "body"}}}
		layout := ResolveLayout(LessonVersion{Layout: explicit})
		assert.Equal(t, *explicit, layout)
	})
}

func TestLayout_Slot(t *testing.T) {
	layout := Layout{Slots: []Slot{{ID: "main"}, {ID: "sidebar", MaxBlocks: 2}}}

	slot, ok := layout.Slot("sidebar")
	assert.True(t, ok)
	assert.Equal(t, 2, slot.MaxBlocks)

	_, ok = layout.Slot("footer")
	assert.False(t, ok)
}

func TestSlot_constraints(t *testing.T) {
	unconstrained := Slot{ID: "main"}
	assert.True(t, unconstrained.allowsKind(KindQuiz))
	assert.True(t, unconstrained.hasRoom(1000))

	constrained := Slot{ID: "sidebar", MaxBlocks: 2, AllowedKinds: []BlockKind{KindText, KindEmbed}}
	assert.True(t, constrained.allowsKind(KindText))
	assert.False(t, constrained.allowsKind(KindVideo))
	assert.True(t, constrained.hasRoom(1))
	assert.False(t, constrained.hasRoom(2))
}

func TestLayout_clone(t *testing.T) {
	orig := Layout{Slots: []Slot{{ID: "main", AllowedKinds: []BlockKind{KindText}}}}
	cp := orig.clone()

	cp.Slots[0].AllowedKinds[0] = KindVideo
	cp.Slots[0].ID = "other"
	assert.Equal(t, KindText, orig.Slots[0].AllowedKinds[0])
	assert.Equal(t, "main", orig.Slots[0].ID)
}
