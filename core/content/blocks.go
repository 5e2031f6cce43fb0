package content

import (
	"sort"
	"time"
)

// slotBlocks filters blocks down to one slot, ordered by OrderIndex.
func slotBlocks(blocks []Block, slotID string) []Block {
	sibs := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.SlotID == slotID {
			sibs = append(sibs, b)
		}
	}
	sort.Slice(sibs, func(i, j int) bool { return sibs[i].OrderIndex < sibs[j].OrderIndex })
	return sibs
}

// without returns blocks minus the one with the given id.
func without(blocks []Block, id string) []Block {
	rest := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.ID != id {
			rest = append(rest, b)
		}
	}
	return rest
}

// insertAt returns blocks with blk inserted at idx. idx must be in [0, len].
func insertAt(blocks []Block, idx int, blk Block) []Block {
	out := make([]Block, 0, len(blocks)+1)
	out = append(out, blocks[:idx]...)
	out = append(out, blk)
	out = append(out, blocks[idx:]...)
	return out
}

// applyOrdering assigns slotID and order indexes 0..n-1 to blocks by their
// position in the slice and returns only the blocks that actually changed.
// This is the single reindexing primitive behind insert, delete, reorder and
// move: callers build the desired final run of each touched slot and diff.
func applyOrdering(ordered []Block, slotID string, now time.Time) []Block {
	changed := make([]Block, 0, len(ordered))
	for i, b := range ordered {
		if b.OrderIndex == i && b.SlotID == slotID {
			continue
		}
		b.OrderIndex = i
		b.SlotID = slotID
		b.UpdatedAt = now
		changed = append(changed, b)
	}
	return changed
}
