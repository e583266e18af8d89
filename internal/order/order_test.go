package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(sec int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, sec, 0, time.UTC)
}

func TestSortTieBreakByCreatedAtThenID(t *testing.T) {
	blocks := []Block{
		{ID: "blk_A", CreatedAt: at(1)},
		{ID: "blk_B", CreatedAt: at(2), ParentIDs: []string{"blk_A"}},
		{ID: "blk_C", CreatedAt: at(1)},
	}
	assert.Equal(t, []string{"blk_A", "blk_C", "blk_B"}, Sort(blocks))
}

func TestSortParentBeforeChild(t *testing.T) {
	blocks := []Block{
		{ID: "blk_child", CreatedAt: at(0), ParentIDs: []string{"blk_parent"}},
		{ID: "blk_parent", CreatedAt: at(5)},
	}
	// The child is older but must still render after its parent.
	assert.Equal(t, []string{"blk_parent", "blk_child"}, Sort(blocks))
}

func TestSortBranching(t *testing.T) {
	blocks := []Block{
		{ID: "blk_root", CreatedAt: at(0)},
		{ID: "blk_left", CreatedAt: at(1), ParentIDs: []string{"blk_root"}},
		{ID: "blk_right", CreatedAt: at(2), ParentIDs: []string{"blk_root"}},
		{ID: "blk_merge", CreatedAt: at(3), ParentIDs: []string{"blk_left", "blk_right"}},
	}
	assert.Equal(t, []string{"blk_root", "blk_left", "blk_right", "blk_merge"}, Sort(blocks))
}

func TestSortIgnoresUnknownParents(t *testing.T) {
	blocks := []Block{
		{ID: "blk_a", CreatedAt: at(1), ParentIDs: []string{"blk_gone"}},
		{ID: "blk_b", CreatedAt: at(0)},
	}
	assert.Equal(t, []string{"blk_b", "blk_a"}, Sort(blocks))
}

func TestSortCycleFallsBackToCreationOrder(t *testing.T) {
	blocks := []Block{
		{ID: "blk_x", CreatedAt: at(2), ParentIDs: []string{"blk_y"}},
		{ID: "blk_y", CreatedAt: at(1), ParentIDs: []string{"blk_x"}},
		{ID: "blk_z", CreatedAt: at(0)},
	}
	// z is orderable; the x/y cycle is appended oldest-first.
	assert.Equal(t, []string{"blk_z", "blk_y", "blk_x"}, Sort(blocks))
}

func TestSortDeterministic(t *testing.T) {
	blocks := []Block{
		{ID: "blk_m", CreatedAt: at(1)},
		{ID: "blk_n", CreatedAt: at(1)},
		{ID: "blk_o", CreatedAt: at(1)},
		{ID: "blk_p", CreatedAt: at(2), ParentIDs: []string{"blk_m", "blk_o"}},
	}
	first := Sort(blocks)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Sort(blocks))
	}
}

func TestSortEmpty(t *testing.T) {
	assert.Empty(t, Sort(nil))
}
