package gate

import (
	"sort"

	"github.com/liurenhao/stagegate/internal/domain"
)

const (
	// MaxContextDocuments bounds how many documents enter a handoff context.
	MaxContextDocuments = 12
	// MaxDocumentChars bounds each document body within the context.
	MaxDocumentChars = 4000

	truncatedMarker = "\n(truncated)"
)

// Prioritizer orders candidate documents by relevance to a gate and bounds
// the result so the assembled context stays within the completion endpoint's
// practical size budget.
type Prioritizer struct {
	taxonomy *Taxonomy
}

// NewPrioritizer creates a prioritizer over the given taxonomy.
func NewPrioritizer(taxonomy *Taxonomy) *Prioritizer {
	return &Prioritizer{taxonomy: taxonomy}
}

// Prioritize sorts documents by the gate's category priority list and
// truncates the result. The sort is stable: documents with a listed category
// order by list position; unlisted categories sort after all listed ones,
// keeping their original relative order. Idempotent: re-running on its own
// output yields the same order.
func (p *Prioritizer) Prioritize(docs []domain.Document, g domain.Gate) []domain.Document {
	priorities := p.taxonomy.Priorities(g)
	rank := make(map[domain.DocumentCategory]int, len(priorities))
	for i, cat := range priorities {
		rank[cat] = i
	}

	out := make([]domain.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iOK := rank[out[i].Category]
		rj, jOK := rank[out[j].Category]
		if iOK && jOK {
			return ri < rj
		}
		// A listed category always precedes an unlisted one; two unlisted
		// documents keep their original order.
		return iOK && !jOK
	})

	if len(out) > MaxContextDocuments {
		out = out[:MaxContextDocuments]
	}
	for i := range out {
		if len(out[i].Body) > MaxDocumentChars {
			out[i].Body = out[i].Body[:MaxDocumentChars] + truncatedMarker
		}
	}
	return out
}
