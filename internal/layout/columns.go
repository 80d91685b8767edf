package layout

import (
	"sort"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// column is a cluster of block indices sharing a horizontal band.
type column struct {
	lo, hi float64
	idxs   []int
}

// OrderByColumns reorders blocks from raster order into reading order.
// Blocks are grouped per page, clustered into columns by a 1-D interval
// merge over their horizontal centers, and emitted column by column, left
// to right, top to bottom within each column. Pages where one cluster
// dominates are treated as single-column and only sorted vertically.
func (c *Classifier) OrderByColumns(blocks []docmodel.TextBlock) []docmodel.TextBlock {
	byPage := make(map[int][]docmodel.TextBlock)
	var pages []int
	for _, b := range blocks {
		if _, seen := byPage[b.Page]; !seen {
			pages = append(pages, b.Page)
		}
		byPage[b.Page] = append(byPage[b.Page], b)
	}
	sort.Ints(pages)

	ordered := make([]docmodel.TextBlock, 0, len(blocks))
	for _, p := range pages {
		ordered = append(ordered, c.orderPage(byPage[p])...)
	}
	return ordered
}

func (c *Classifier) orderPage(blocks []docmodel.TextBlock) []docmodel.TextBlock {
	cols := c.clusterColumns(blocks)

	if c.singleDominantColumn(cols, len(blocks)) {
		out := make([]docmodel.TextBlock, len(blocks))
		copy(out, blocks)
		sortTopToBottom(out)
		return out
	}

	// Left-to-right column order, top-to-bottom within each column.
	sort.Slice(cols, func(i, j int) bool { return cols[i].lo < cols[j].lo })

	out := make([]docmodel.TextBlock, 0, len(blocks))
	for _, col := range cols {
		part := make([]docmodel.TextBlock, 0, len(col.idxs))
		for _, i := range col.idxs {
			part = append(part, blocks[i])
		}
		sortTopToBottom(part)
		out = append(out, part...)
	}
	return out
}

// clusterColumns merges block x-centers into intervals. Two blocks belong
// to the same column when their centers are within ColumnGapThreshold of
// the cluster's running interval. This is deterministic by construction,
// unlike density-based clustering.
func (c *Classifier) clusterColumns(blocks []docmodel.TextBlock) []column {
	if len(blocks) == 0 {
		return nil
	}

	idxs := make([]int, len(blocks))
	for i := range blocks {
		idxs[i] = i
	}
	sort.Slice(idxs, func(a, b int) bool {
		return blocks[idxs[a]].CenterX() < blocks[idxs[b]].CenterX()
	})

	var cols []column
	cur := column{
		lo:   blocks[idxs[0]].CenterX(),
		hi:   blocks[idxs[0]].CenterX(),
		idxs: []int{idxs[0]},
	}
	for _, i := range idxs[1:] {
		x := blocks[i].CenterX()
		if x-cur.hi <= c.cfg.ColumnGapThreshold {
			cur.hi = x
			cur.idxs = append(cur.idxs, i)
			continue
		}
		cols = append(cols, cur)
		cur = column{lo: x, hi: x, idxs: []int{i}}
	}
	cols = append(cols, cur)
	return cols
}

// singleDominantColumn reports whether one cluster holds enough of the
// page to skip column reordering entirely.
func (c *Classifier) singleDominantColumn(cols []column, total int) bool {
	if len(cols) <= 1 {
		return true
	}
	share := c.cfg.DominantColumnShare
	for _, col := range cols {
		if float64(len(col.idxs)) >= share*float64(total) {
			return true
		}
	}
	return false
}

// sortTopToBottom orders blocks by descending top edge (PDF Y grows
// upward), then reorders each visual line left to right. Lines are
// bucketed against the topmost block of the line, so chained near-ties
// cannot produce an inconsistent order.
func sortTopToBottom(blocks []docmodel.TextBlock) {
	const lineTolerance = 3.0
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Y1 > blocks[j].Y1
	})
	for start := 0; start < len(blocks); {
		end := start + 1
		for end < len(blocks) && blocks[start].Y1-blocks[end].Y1 <= lineTolerance {
			end++
		}
		line := blocks[start:end]
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].X0 < line[j].X0
		})
		start = end
	}
}
