package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Clone returns a deep copy of the document. Engine operations mutate
// clones so that a failed operation leaves the caller's document intact.
func (d *Document) Clone() *Document {
	out := &Document{
		Core:          d.Core,
		Concepts:      make([]Concept, len(d.Concepts)),
		Relationships: d.Relationships.Clone(),
	}
	copy(out.Concepts, d.Concepts)
	return out
}

// Index returns the position of id in Concepts, or -1.
func (d *Document) Index(id string) int {
	for i := range d.Concepts {
		if d.Concepts[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns a pointer to the concept with the given ID, or nil.
// The pointer is invalidated by any change to the Concepts slice.
func (d *Document) Find(id string) *Concept {
	if i := d.Index(id); i >= 0 {
		return &d.Concepts[i]
	}
	return nil
}

// FindFold looks up a concept ignoring case. An exact match wins.
func (d *Document) FindFold(id string) *Concept {
	if c := d.Find(id); c != nil {
		return c
	}
	for i := range d.Concepts {
		if strings.EqualFold(d.Concepts[i].ID, id) {
			return &d.Concepts[i]
		}
	}
	return nil
}

// Has reports whether a concept with the exact ID exists.
func (d *Document) Has(id string) bool {
	return d.Index(id) >= 0
}

// Root returns the root concept, or nil if it is missing. The concept
// named after the topic wins; a renamed root is found as the first concept
// without a parent.
func (d *Document) Root() *Concept {
	if c := d.Find(d.Core); c != nil && c.IsRoot() {
		return c
	}
	for i := range d.Concepts {
		if d.Concepts[i].IsRoot() {
			return &d.Concepts[i]
		}
	}
	return nil
}

// IDs returns all concept IDs in document order.
func (d *Document) IDs() []string {
	ids := make([]string, len(d.Concepts))
	for i, c := range d.Concepts {
		ids[i] = c.ID
	}
	return ids
}

// ChildrenOf returns the IDs of the direct children of id in document order.
func (d *Document) ChildrenOf(id string) []string {
	var out []string
	for _, c := range d.Concepts {
		if c.Parent == id {
			out = append(out, c.ID)
		}
	}
	return out
}

// IsLeaf reports whether id has no children.
func (d *Document) IsLeaf(id string) bool {
	for _, c := range d.Concepts {
		if c.Parent == id {
			return false
		}
	}
	return true
}

// Descendants returns every transitive descendant of id in document order.
// The closure is computed by repeated passes until no new descendant is
// found, which tolerates concepts that appear before their parents.
func (d *Document) Descendants(id string) []string {
	inSet := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, c := range d.Concepts {
			if !inSet[c.ID] && c.Parent != "" && inSet[c.Parent] {
				inSet[c.ID] = true
				changed = true
			}
		}
	}

	var out []string
	for _, c := range d.Concepts {
		if c.ID != id && inSet[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}

// ByLevel groups concept IDs by level, each group sorted.
func (d *Document) ByLevel() map[int][]string {
	out := make(map[int][]string)
	for _, c := range d.Concepts {
		out[c.Level] = append(out[c.Level], c.ID)
	}
	for level := range out {
		sort.Strings(out[level])
	}
	return out
}

// Levels returns the distinct levels in ascending order.
func (d *Document) Levels() []int {
	groups := d.ByLevel()
	levels := make([]int, 0, len(groups))
	for l := range groups {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

// Remove deletes the given concepts and every relationship that touches
// them. It returns the number of concepts removed.
func (d *Document) Remove(ids ...string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := d.Concepts[:0]
	removed := 0
	for _, c := range d.Concepts {
		if drop[c.ID] {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	d.Concepts = kept

	for k := range d.Relationships {
		if drop[k.Parent] || drop[k.Child] {
			delete(d.Relationships, k)
		}
	}
	return removed
}

// Rename changes a concept's ID, re-points its children and rewrites every
// relationship key that mentions the old ID.
func (d *Document) Rename(oldID, newID string) bool {
	c := d.Find(oldID)
	if c == nil {
		return false
	}
	c.ID = newID
	for i := range d.Concepts {
		if d.Concepts[i].Parent == oldID {
			d.Concepts[i].Parent = newID
		}
	}

	renamed := make(Relationships, len(d.Relationships))
	for k, v := range d.Relationships {
		if k.Parent == oldID {
			k.Parent = newID
		}
		if k.Child == oldID {
			k.Child = newID
		}
		renamed[k] = v
	}
	d.Relationships = renamed
	return true
}

// MissingEdges returns the parent->child edges that have no similarity
// recorded, grouped by parent in document order.
func (d *Document) MissingEdges() []EdgeKey {
	var out []EdgeKey
	for _, parent := range d.Concepts {
		for _, c := range d.Concepts {
			if c.Parent != parent.ID {
				continue
			}
			k := Edge(c.Parent, c.ID)
			if _, ok := d.Relationships[k]; !ok {
				out = append(out, k)
			}
		}
	}
	return out
}

// Validate checks field constraints and the structural invariants: unique
// IDs, a root concept at level 0, parents that exist and relationship
// keys that match an existing parent edge.
func (d *Document) Validate() error {
	var errs []error
	if err := validate.Struct(d); err != nil {
		errs = append(errs, fmt.Errorf("field validation: %w", err))
	}

	seen := make(map[string]bool, len(d.Concepts))
	for _, c := range d.Concepts {
		if seen[c.ID] {
			errs = append(errs, fmt.Errorf("duplicate concept %q", c.ID))
		}
		seen[c.ID] = true
	}

	rootID := ""
	root := d.Root()
	switch {
	case root == nil:
		errs = append(errs, fmt.Errorf("root concept %q missing", d.Core))
	case root.Level != 0:
		errs = append(errs, fmt.Errorf("root concept %q must have level 0 and no parent", root.ID))
	default:
		rootID = root.ID
	}

	parentOf := make(map[string]string, len(d.Concepts))
	for _, c := range d.Concepts {
		parentOf[c.ID] = c.Parent
		if c.ID == rootID {
			continue
		}
		switch {
		case c.Parent == "":
			errs = append(errs, fmt.Errorf("concept %q has no parent", c.ID))
		case !seen[c.Parent]:
			errs = append(errs, fmt.Errorf("concept %q references missing parent %q", c.ID, c.Parent))
		}
	}

	for k := range d.Relationships {
		if p, ok := parentOf[k.Child]; !ok || p != k.Parent {
			errs = append(errs, fmt.Errorf("relationship %q does not match a parent edge", k.String()))
		}
	}
	return errors.Join(errs...)
}

// Repair coerces a document into a consistent hierarchy. It is applied to
// generated content, never to loaded snapshots. It returns a description
// of every fix applied.
func (d *Document) Repair() []string {
	var fixes []string

	seen := make(map[string]bool, len(d.Concepts))
	kept := make([]Concept, 0, len(d.Concepts)+1)
	for _, c := range d.Concepts {
		c.ID = strings.TrimSpace(c.ID)
		switch {
		case c.ID == "":
			fixes = append(fixes, "dropped concept with blank id")
			continue
		case seen[c.ID]:
			fixes = append(fixes, fmt.Sprintf("dropped duplicate concept %q", c.ID))
			continue
		}
		seen[c.ID] = true
		kept = append(kept, c)
	}

	// root first, level 0, no parent
	rootIdx := -1
	for i, c := range kept {
		if c.ID == d.Core {
			rootIdx = i
			break
		}
	}
	if rootIdx < 0 {
		kept = append([]Concept{{ID: d.Core}}, kept...)
		seen[d.Core] = true
		fixes = append(fixes, fmt.Sprintf("seeded root %q", d.Core))
	} else {
		root := kept[rootIdx]
		if root.Level != 0 || root.Parent != "" {
			fixes = append(fixes, fmt.Sprintf("normalized root %q", d.Core))
		}
		root.Level, root.Parent = 0, ""
		kept = append(kept[:rootIdx], kept[rootIdx+1:]...)
		kept = append([]Concept{root}, kept...)
	}
	d.Concepts = kept

	for i := range d.Concepts {
		c := &d.Concepts[i]
		if c.ID == d.Core {
			continue
		}
		if c.Parent == "" || c.Parent == c.ID || !seen[c.Parent] {
			fixes = append(fixes, fmt.Sprintf("attached %q to root (parent %q)", c.ID, c.Parent))
			c.Parent = d.Core
		}
	}

	// break cycles: every chain must reach the root
	parentOf := make(map[string]string, len(d.Concepts))
	for _, c := range d.Concepts {
		parentOf[c.ID] = c.Parent
	}
	for i := range d.Concepts {
		c := &d.Concepts[i]
		cur, steps := c.ID, 0
		for cur != d.Core && steps <= len(d.Concepts) {
			cur = parentOf[cur]
			steps++
		}
		if cur != d.Core {
			fixes = append(fixes, fmt.Sprintf("broke cycle at %q", c.ID))
			c.Parent = d.Core
			parentOf[c.ID] = d.Core
		}
	}

	// levels must increase along every edge; walk breadth-first from the root
	level := map[string]int{d.Core: 0}
	queue := []string{d.Core}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for i := range d.Concepts {
			c := &d.Concepts[i]
			if c.Parent != parent || c.ID == d.Core {
				continue
			}
			if c.Level <= level[parent] {
				fixes = append(fixes, fmt.Sprintf("moved %q from level %d to %d", c.ID, c.Level, level[parent]+1))
				c.Level = level[parent] + 1
			}
			level[c.ID] = c.Level
			queue = append(queue, c.ID)
		}
	}

	if d.Relationships == nil {
		d.Relationships = make(Relationships)
	}
	for k := range d.Relationships {
		if p, ok := parentOf[k.Child]; !ok || p != k.Parent {
			delete(d.Relationships, k)
			fixes = append(fixes, fmt.Sprintf("pruned relationship %q", k.String()))
		}
	}
	return fixes
}
