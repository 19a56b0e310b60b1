// Package graph provides the concept hierarchy data model for conceptmap.
//
// A Document is a rooted forest of concepts for a single topic. The root
// concept carries the topic as its ID, level 0 and no parent. Every other
// concept names its parent by ID. Relationships hold an optional similarity
// score for each parent->child edge.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EdgeDelimiter separates parent and child IDs in serialized relationship keys.
const EdgeDelimiter = "->"

// ErrInvalidID is returned for concept IDs that are blank or contain the
// edge delimiter.
var ErrInvalidID = errors.New("invalid concept id")

// Concept is a single node of the hierarchy.
type Concept struct {
	// ID is the display name and the unique key of the concept.
	ID string `validate:"required"`

	// Level is the depth of the concept; the root is level 0.
	Level int `validate:"gte=0"`

	// Parent is the ID of the parent concept, empty for the root.
	Parent string
}

// IsRoot reports whether the concept has no parent.
func (c Concept) IsRoot() bool {
	return c.Parent == ""
}

type conceptJSON struct {
	ID     string  `json:"id"`
	Level  int     `json:"level"`
	Parent *string `json:"parent"`
}

// MarshalJSON encodes the root's empty parent as null.
func (c Concept) MarshalJSON() ([]byte, error) {
	out := conceptJSON{ID: c.ID, Level: c.Level}
	if c.Parent != "" {
		parent := c.Parent
		out.Parent = &parent
	}
	return json.Marshal(out)
}

func (c *Concept) UnmarshalJSON(data []byte) error {
	var in conceptJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.ID = in.ID
	c.Level = in.Level
	c.Parent = ""
	if in.Parent != nil {
		c.Parent = *in.Parent
	}
	return nil
}

// EdgeKey identifies a parent->child edge.
type EdgeKey struct {
	Parent string
	Child  string
}

// Edge builds an EdgeKey.
func Edge(parent, child string) EdgeKey {
	return EdgeKey{Parent: parent, Child: child}
}

// String renders the key in its serialized "parent->child" form.
func (k EdgeKey) String() string {
	return k.Parent + EdgeDelimiter + k.Child
}

// Relationships maps edges to similarity scores in [0, 100].
type Relationships map[EdgeKey]float64

// Clone returns an independent copy.
func (r Relationships) Clone() Relationships {
	out := make(Relationships, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Document is the complete persisted state for one topic.
type Document struct {
	// Core is the topic the snapshot belongs to. The root concept starts out
	// with this ID; renaming the root leaves Core unchanged.
	Core string `validate:"required"`

	// Concepts in insertion order.
	Concepts []Concept `validate:"dive"`

	// Relationships holds edge similarities. Missing entries are computed lazily.
	Relationships Relationships
}

// NewDocument returns a document holding only the root concept for topic.
func NewDocument(topic string) *Document {
	return &Document{
		Core:          topic,
		Concepts:      []Concept{{ID: topic, Level: 0}},
		Relationships: make(Relationships),
	}
}

type documentJSON struct {
	Core          string             `json:"core"`
	Concepts      []Concept          `json:"concepts"`
	Relationships map[string]float64 `json:"relationships"`
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{
		Core:          d.Core,
		Concepts:      d.Concepts,
		Relationships: make(map[string]float64, len(d.Relationships)),
	}
	if out.Concepts == nil {
		out.Concepts = []Concept{}
	}
	for k, v := range d.Relationships {
		out.Relationships[k.String()] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a snapshot. Relationship keys are split against
// the known concept IDs so that IDs containing the delimiter in legacy
// snapshots still resolve; keys without a delimiter are dropped.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	d.Core = in.Core
	d.Concepts = in.Concepts
	if d.Concepts == nil {
		d.Concepts = []Concept{}
	}
	d.Relationships = make(Relationships, len(in.Relationships))

	known := make(map[string]bool, len(d.Concepts))
	for _, c := range d.Concepts {
		known[c.ID] = true
	}
	for raw, v := range in.Relationships {
		key, ok := ParseEdgeKey(raw, known)
		if !ok {
			continue
		}
		d.Relationships[key] = v
	}
	return nil
}

// ParseEdgeKey splits a serialized "parent->child" key. When the delimiter
// occurs more than once, the split where both sides are known IDs wins,
// then a split with a known parent, then the first occurrence.
func ParseEdgeKey(raw string, known map[string]bool) (EdgeKey, bool) {
	var splits []EdgeKey
	for i := 0; i+len(EdgeDelimiter) <= len(raw); i++ {
		if strings.HasPrefix(raw[i:], EdgeDelimiter) {
			splits = append(splits, EdgeKey{Parent: raw[:i], Child: raw[i+len(EdgeDelimiter):]})
		}
	}
	if len(splits) == 0 {
		return EdgeKey{}, false
	}
	for _, s := range splits {
		if known[s.Parent] && known[s.Child] {
			return s, true
		}
	}
	for _, s := range splits {
		if known[s.Parent] {
			return s, true
		}
	}
	return splits[0], true
}

// ValidateNewID rejects IDs that cannot be stored unambiguously.
func ValidateNewID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: blank", ErrInvalidID)
	}
	if strings.Contains(id, EdgeDelimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, EdgeDelimiter)
	}
	return nil
}
