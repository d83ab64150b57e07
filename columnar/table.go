package columnar

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// ItemRange is the row range one item occupies within its column. Items
// within a table have disjoint, contiguous row ranges (spec.md §3).
type ItemRange struct {
	TaskID     int32
	StartRow   int64
	NumRows    int64
}

func (r ItemRange) EndRow() int64 { return r.StartRow + r.NumRows }

// Table tracks, per (tableID, columnIndex), the ordered set of item row
// ranges, so a load path can answer "which item holds global row R"
// without a linear scan — spec.md's Table definition implies this but
// never names the operation (see SPEC_FULL.md §4.3). A plain sorted slice
// with binary search is deliberately used here instead of a third-party
// ordered map: ranges are appended in increasing StartRow order by
// construction (new_task always extends the table), so no rebalancing
// structure earns its complexity over sort.Search (see DESIGN.md).
type Table struct {
	mu      sync.RWMutex
	ranges  map[int32][]ItemRange // keyed by columnIndex
}

// NewTable returns an empty item-range index for one table_id.
func NewTable() *Table {
	return &Table{ranges: make(map[int32][]ItemRange)}
}

// AddItem records a new item's row range for columnIndex. Callers must add
// items in increasing StartRow order (true of the save worker, which opens
// a fresh item only after the previous one is durably flushed).
func (t *Table) AddItem(columnIndex int32, r ItemRange) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing := t.ranges[columnIndex]
	if len(existing) > 0 {
		last := existing[len(existing)-1]
		if r.StartRow < last.EndRow() {
			return errors.Newf("columnar: item %d range [%d,%d) overlaps previous item %d ending at %d",
				r.TaskID, r.StartRow, r.EndRow(), last.TaskID, last.EndRow())
		}
	}
	t.ranges[columnIndex] = append(existing, r)
	return nil
}

// AppendItem records taskID as the next item of columnIndex, occupying
// numRows rows starting at the column's current end row. This is the
// form the save worker uses: it always extends a column with the next
// contiguous range, so no overlap is possible.
func (t *Table) AppendItem(columnIndex, taskID int32, numRows int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing := t.ranges[columnIndex]
	var start int64
	if len(existing) > 0 {
		start = existing[len(existing)-1].EndRow()
	}
	t.ranges[columnIndex] = append(existing, ItemRange{TaskID: taskID, StartRow: start, NumRows: numRows})
}

// ItemForRow returns the item whose range contains globalRow, if any.
func (t *Table) ItemForRow(columnIndex int32, globalRow int64) (ItemRange, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ranges := t.ranges[columnIndex]
	i := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].EndRow() > globalRow
	})
	if i >= len(ranges) || ranges[i].StartRow > globalRow {
		return ItemRange{}, false
	}
	return ranges[i], true
}
