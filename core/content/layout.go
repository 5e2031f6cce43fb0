package content

// DefaultSlotID is the single slot assumed when a version declares no layout.
const DefaultSlotID = "main"

// DefaultLayout returns the implicit layout of versions that declare none:
// one unconstrained slot.
func DefaultLayout() Layout {
	return Layout{Slots: []Slot{{ID: DefaultSlotID}}}
}

// ResolveLayout returns the version's explicit layout if it declares one,
// else the default single-slot layout.
func ResolveLayout(v LessonVersion) Layout {
	if v.Layout != nil && len(v.Layout.Slots) > 0 {
		return *v.Layout
	}
	return DefaultLayout()
}

// Slot returns the declared slot with the given id.
func (l Layout) Slot(slotID string) (Slot, bool) {
	for _, slot := range l.Slots {
		if slot.ID == slotID {
			return slot, true
		}
	}
	return Slot{}, false
}

func (l Layout) clone() *Layout {
	slots := make([]Slot, len(l.Slots))
	copy(slots, l.Slots)
	for i, slot := range l.Slots {
		if len(slot.AllowedKinds) > 0 {
			kinds := make([]BlockKind, len(slot.AllowedKinds))
			copy(kinds, slot.AllowedKinds)
			slots[i].AllowedKinds = kinds
		}
	}
	return &Layout{Slots: slots}
}

// allowsKind reports whether the slot accepts blocks of the given kind.
func (s Slot) allowsKind(kind BlockKind) bool {
	if len(s.AllowedKinds) == 0 {
		return true
	}
	for _, k := range s.AllowedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// hasRoom reports whether the slot can take one more block on top of current.
func (s Slot) hasRoom(current int) bool {
	return s.MaxBlocks == 0 || current < s.MaxBlocks
}
