package export

import (
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
)

// DefaultTitle heads the sheet when neither the spec nor the caller names one.
const DefaultTitle = "Device Compatibility"

// Column is one node of the export header tree.
// A node with children is a header group; a node without children is a leaf
// and must name an exportable registry column in Key.
type Column struct {
	Title    string         `json:"title"`
	Key      catalog.Column `json:"key,omitempty"`
	Children []Column       `json:"children,omitempty"`
}

func (c Column) isLeaf() bool { return len(c.Children) == 0 }

func (c Column) clone() Column {
	out := c
	if c.Children != nil {
		out.Children = make([]Column, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = child.clone()
		}
	}
	return out
}

// Spec describes one workbook: which rows to include and how to lay out the
// header. The embedded selection narrows the full row set; it is never
// paginated.
type Spec struct {
	engine.SelectInput

	Title   string   `json:"title,omitempty"`
	Columns []Column `json:"columns,omitempty"`
}

// Clone returns a copy of s that shares no memory with it.
func (s Spec) Clone() Spec {
	out := s
	out.Enums = s.Enums.Clone()
	out.Sort = slices.Clone(s.Sort)
	if s.Columns != nil {
		out.Columns = make([]Column, len(s.Columns))
		for i, c := range s.Columns {
			out.Columns[i] = c.clone()
		}
	}
	return out
}

// DefaultColumns returns every exportable column grouped under its display
// group: Device, eWeLink Cloud, Matter and Home Assistant.
func DefaultColumns() []Column {
	exportable := catalog.ColumnsWith(catalog.TraitExport)

	var out []Column
	for _, g := range catalog.Groups() {
		group := Column{Title: g.Title()}
		for _, def := range exportable {
			if def.Group == g {
				group.Children = append(group.Children, Column{Title: def.Title, Key: def.ID})
			}
		}
		if len(group.Children) > 0 {
			out = append(out, group)
		}
	}
	return out
}

// Validate checks that every leaf names an exportable column.
func Validate(columns []Column) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidSpec)
	}
	for _, c := range columns {
		if c.isLeaf() {
			if c.Key == "" {
				return fmt.Errorf("%w: column %q has neither key nor children", ErrInvalidSpec, c.Title)
			}
			if _, err := catalog.Require(c.Key, catalog.TraitExport); err != nil {
				return fmt.Errorf("%w: export: %w", engine.ErrUnknownColumn, err)
			}
			continue
		}
		if err := Validate(c.Children); err != nil {
			return err
		}
	}
	return nil
}

// header is the laid-out header block: one text row per tree level, the
// horizontal and vertical merges, and the leaf columns in sheet order.
type header struct {
	rows   [][]string
	merges []engine.MergeRange
	leaves []catalog.ColumnDef
}

// layoutHeader places the column tree on a grid. Group titles are merged
// across their leaves; leaves above the last level are merged down to it.
// Ranges are 0-based and relative to the first header row.
func layoutHeader(columns []Column) header {
	depth := treeDepth(columns, 1)
	width := 0
	for _, c := range columns {
		width += leafCount(c)
	}

	h := header{rows: make([][]string, depth)}
	for i := range h.rows {
		h.rows[i] = make([]string, width)
	}

	cursor := 0
	var place func(cols []Column, level int)
	place = func(cols []Column, level int) {
		for _, c := range cols {
			if c.isLeaf() {
				h.rows[level][cursor] = c.Title
				def, _ := catalog.Lookup(c.Key)
				h.leaves = append(h.leaves, def)
				if level < depth-1 {
					h.merges = append(h.merges, engine.MergeRange{StartRow: level, StartCol: cursor, EndRow: depth - 1, EndCol: cursor})
				}
				cursor++
				continue
			}
			start := cursor
			place(c.Children, level+1)
			h.rows[level][start] = c.Title
			if end := cursor - 1; end > start {
				h.merges = append(h.merges, engine.MergeRange{StartRow: level, StartCol: start, EndRow: level, EndCol: end})
			}
		}
	}
	place(columns, 0)
	return h
}

func treeDepth(columns []Column, level int) int {
	depth := level
	for _, c := range columns {
		if !c.isLeaf() {
			depth = max(depth, treeDepth(c.Children, level+1))
		}
	}
	return depth
}

func leafCount(c Column) int {
	if c.isLeaf() {
		return 1
	}
	n := 0
	for _, child := range c.Children {
		n += leafCount(child)
	}
	return n
}
