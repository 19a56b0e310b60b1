package engine

import (
	"fmt"
	"strings"

	"github.com/Benny93/conceptmap-go/internal/graph"
)

// Token budgets per prompt kind.
const (
	hierarchyTokens  = 2000
	placementTokens  = 300
	bestParentTokens = 500
	subtreeTokens    = 2000
	childrenTokens   = 1000
)

const autoAddFallbackReason = "Defaulting to core topic as parent due to API error."

func hierarchyPrompt(topic string, depth, breadth int) string {
	return fmt.Sprintf(`Generate a concept hierarchy for %q as a JSON array of objects with these fields:
- "id": concept name (string)
- "level": depth level (integer, 0 for root)
- "parent": parent concept name (string, or null for root)

Go %d levels deep with ~%d concepts per level.
Return ONLY the JSON array with no explanation.`, topic, depth, breadth)
}

// conceptsByLevel renders the hierarchy as "Level N:" sections with sorted
// bullet lists.
func conceptsByLevel(doc *graph.Document) string {
	groups := doc.ByLevel()
	sections := make([]string, 0, len(groups))
	for _, level := range doc.Levels() {
		var b strings.Builder
		fmt.Fprintf(&b, "Level %d:", level)
		for _, id := range groups[level] {
			b.WriteString("\n- ")
			b.WriteString(id)
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n")
}

func placementPrompt(doc *graph.Document, concept string) string {
	return fmt.Sprintf(`For a knowledge graph about %q with these concepts:

%s

What should be the PARENT of new concept %q and at what LEVEL?

Respond exactly as:
PARENT: [existing concept name]
LEVEL: [number]`, doc.Core, conceptsByLevel(doc), concept)
}

func bestParentPrompt(doc *graph.Document, term string) string {
	return fmt.Sprintf(`For a knowledge graph about %q with these existing concepts:

%s

I want to add a new concept: %q

Which EXISTING concept should be the PARENT of this new term?

Consider the hierarchical relationship and conceptual relevance. Pick the most appropriate parent from the existing concepts.

Respond exactly as:
PARENT: [existing concept name]
LEVEL: [number]
REASON: [brief explanation of why this parent is appropriate]`, doc.Core, conceptsByLevel(doc), term)
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func subtreePrompt(topic string, node graph.Concept, existing []string) string {
	exclusion := ""
	if len(existing) > 0 {
		exclusion = "Existing children to exclude:\n" + bulletList(existing) + "\n\n"
	}
	return fmt.Sprintf(`For a knowledge graph about %[1]q, I need to expand the node %[2]q with a subtree of concepts.

%[3]sGenerate a JSON array of objects with these fields:
- "id": concept name (string)
- "level": depth level (integer, %[4]d for direct children, higher for their descendants)
- "parent": parent concept name (string, %[2]q for direct children, or the ID of another new node for descendants)

Create a subtree with 3-5 direct children, and 2-3 children for each of those (2 levels deep).
Make sure all concepts are semantically relevant to both %[2]q and the core topic %[1]q.
Do not include any concepts that are already listed as existing children.

Return ONLY the JSON array without any explanation or markdown formatting.`, topic, node.ID, exclusion, node.Level+1)
}

func childrenPrompt(topic string, node graph.Concept, existing []string) string {
	return fmt.Sprintf(`For a knowledge graph about %[1]q, I need to add more child nodes to the concept %[2]q.

Existing children to exclude:
%[3]s

Generate a JSON array of objects with these fields:
- "id": concept name (string)
- "level": depth level (integer, should be %[4]d for all children)
- "parent": parent concept name (string, should be %[2]q for all)

Generate 3-5 new child concepts that:
1. Are semantically relevant to both %[2]q and the core topic %[1]q
2. Are distinct from the existing children listed above
3. Represent important aspects, subtopics, or categories of %[2]q

Return ONLY the JSON array without any explanation or markdown formatting.`, topic, node.ID, bulletList(existing), node.Level+1)
}
