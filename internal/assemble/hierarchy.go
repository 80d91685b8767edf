// Package assemble converts the classifier's flat, ordered block sequence
// into the structured-document aggregate: the section tree, the reference
// list, the figure list, and document metadata. Everything here is a pure
// transformation over in-memory data.
package assemble

import (
	"strings"

	"github.com/google/uuid"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// Hierarchy is the built section tree plus, for every input block, the
// identity of the deepest section open at that block's position. The
// figure detector uses the positional index to attach captions.
type Hierarchy struct {
	Sections []docmodel.Section

	sectionAt []*uuid.UUID
}

// SectionAt returns the id of the deepest section open at block position
// i, or nil when no section was open yet.
func (h *Hierarchy) SectionAt(i int) *uuid.UUID {
	if i < 0 || i >= len(h.sectionAt) {
		return nil
	}
	return h.sectionAt[i]
}

// openSection tracks an in-progress section on the builder stack.
type openSection struct {
	sec     *docmodel.Section
	content []string
}

// BuildHierarchy runs the stack algorithm over the classified blocks.
//
// For each heading the stack is popped until its top is strictly
// shallower, which makes the top the parent. A heading that skips more
// than one level below its parent is clamped to parent+1 so the tree has
// no orphan gaps. Content arriving before any heading goes into an
// implicit root section titled implicitTitle. Order is a global running
// counter, so sibling order values are strictly increasing in document
// order.
func BuildHierarchy(blocks []docmodel.ClassifiedBlock, implicitTitle string) *Hierarchy {
	h := &Hierarchy{sectionAt: make([]*uuid.UUID, len(blocks))}

	var stack []*openSection
	var all []*openSection
	order := 0

	push := func(title string, level int) {
		// Clamp: a child may sit at most one level below its parent.
		if len(stack) > 0 {
			if max := stack[len(stack)-1].sec.Level + 1; level > max {
				level = max
			}
		} else if level > 1 {
			level = 1
		}

		sec := &docmodel.Section{
			ID:    uuid.New(),
			Title: title,
			Level: level,
			Order: order,
		}
		order++
		if len(stack) > 0 {
			parent := stack[len(stack)-1].sec.ID
			sec.ParentID = &parent
		}
		os := &openSection{sec: sec}
		stack = append(stack, os)
		all = append(all, os)
	}

	deepest := func() *openSection {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for i, b := range blocks {
		switch b.Role {
		case docmodel.RoleHeading:
			for len(stack) > 0 && stack[len(stack)-1].sec.Level >= b.Level {
				stack = stack[:len(stack)-1]
			}
			push(strings.TrimSpace(b.Text), b.Level)

		case docmodel.RoleParagraph:
			if deepest() == nil {
				push(implicitTitle, 1)
			}
			cur := deepest()
			cur.content = append(cur.content, strings.TrimSpace(b.Text))

		case docmodel.RoleCaption:
			if cur := deepest(); cur != nil {
				switch b.Kind {
				case docmodel.CaptionFigure:
					cur.sec.HasFigures = true
				case docmodel.CaptionTable:
					cur.sec.HasTables = true
				case docmodel.CaptionEquation:
					cur.sec.HasEquations = true
				}
			}

		case docmodel.RoleReferenceEntry:
			// Handled by the reference extractor; the bibliography section
			// itself stays empty.
		}

		if cur := deepest(); cur != nil {
			h.sectionAt[i] = &cur.sec.ID
		}
	}

	h.Sections = make([]docmodel.Section, 0, len(all))
	for _, os := range all {
		os.sec.Content = strings.Join(os.content, "\n\n")
		os.sec.WordCount = len(strings.Fields(os.sec.Content))
		if !os.sec.HasEquations && strings.Count(os.sec.Content, "$") >= 2 {
			os.sec.HasEquations = true
		}
		h.Sections = append(h.Sections, *os.sec)
	}
	return h
}
