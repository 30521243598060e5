package gate

import (
	"strings"
	"testing"

	"github.com/liurenhao/stagegate/internal/domain"
)

func newTestPrioritizer(t *testing.T) *Prioritizer {
	t.Helper()
	taxonomy, err := LoadTaxonomy()
	if err != nil {
		t.Fatalf("failed to load taxonomy: %v", err)
	}
	return NewPrioritizer(taxonomy)
}

func docWith(category domain.DocumentCategory, title string) domain.Document {
	return domain.Document{
		DocumentID: title,
		Project:    "proj-1",
		Category:   category,
		Title:      title,
		Body:       "body of " + title,
	}
}

func TestPrioritizeHandoffGate(t *testing.T) {
	p := newTestPrioritizer(t)

	docs := []domain.Document{
		docWith(domain.CategoryDesign, "design"),
		docWith(domain.CategoryOther, "notes"),
		docWith(domain.CategoryRequirements, "reqs"),
	}

	out := p.Prioritize(docs, domain.GateG5)
	want := []domain.DocumentCategory{
		domain.CategoryRequirements,
		domain.CategoryDesign,
		domain.CategoryOther,
	}
	if len(out) != len(want) {
		t.Fatalf("expected %d documents, got %d", len(want), len(out))
	}
	for i, cat := range want {
		if out[i].Category != cat {
			t.Fatalf("position %d: expected %s, got %s", i, cat, out[i].Category)
		}
	}
}

func TestPrioritizeIsStableAndIdempotent(t *testing.T) {
	p := newTestPrioritizer(t)

	docs := []domain.Document{
		docWith(domain.CategoryOther, "other-a"),
		docWith(domain.CategoryRequirements, "reqs-a"),
		docWith(domain.CategoryOther, "other-b"),
		docWith(domain.CategoryRequirements, "reqs-b"),
	}

	first := p.Prioritize(docs, domain.GateG5)
	second := p.Prioritize(first, domain.GateG5)

	for i := range first {
		if first[i].Title != second[i].Title {
			t.Fatalf("re-prioritizing changed order at %d: %s vs %s", i, first[i].Title, second[i].Title)
		}
	}

	// Ties keep their original relative order.
	if first[0].Title != "reqs-a" || first[1].Title != "reqs-b" {
		t.Fatalf("listed ties out of order: %s, %s", first[0].Title, first[1].Title)
	}
	if first[2].Title != "other-a" || first[3].Title != "other-b" {
		t.Fatalf("unlisted ties out of order: %s, %s", first[2].Title, first[3].Title)
	}
}

func TestPrioritizeUnlistedSortsAfterListed(t *testing.T) {
	p := newTestPrioritizer(t)

	docs := []domain.Document{
		docWith(domain.CategoryDeploymentPlan, "deploy"),
		docWith(domain.CategoryDatabaseSchema, "schema"),
	}

	out := p.Prioritize(docs, domain.GateG5)
	if out[0].Category != domain.CategoryDatabaseSchema {
		t.Fatalf("listed category should come first, got %s", out[0].Category)
	}
	if out[1].Category != domain.CategoryDeploymentPlan {
		t.Fatalf("unlisted category should come last, got %s", out[1].Category)
	}
}

func TestPrioritizeBoundsCountAndBody(t *testing.T) {
	p := newTestPrioritizer(t)

	var docs []domain.Document
	for i := 0; i < MaxContextDocuments+5; i++ {
		d := docWith(domain.CategoryRequirements, "doc")
		d.Body = strings.Repeat("x", MaxDocumentChars+100)
		docs = append(docs, d)
	}

	out := p.Prioritize(docs, domain.GateG5)
	if len(out) != MaxContextDocuments {
		t.Fatalf("expected %d documents, got %d", MaxContextDocuments, len(out))
	}
	for _, d := range out {
		if !strings.HasSuffix(d.Body, "(truncated)") {
			t.Fatal("oversized body should carry the truncation marker")
		}
		if len(d.Body) > MaxDocumentChars+len("\n(truncated)") {
			t.Fatalf("body not truncated: %d chars", len(d.Body))
		}
	}

	// Inputs are not mutated.
	if strings.HasSuffix(docs[0].Body, "(truncated)") {
		t.Fatal("prioritize should not mutate its input")
	}
}

func TestTaxonomyEligibility(t *testing.T) {
	taxonomy, err := LoadTaxonomy()
	if err != nil {
		t.Fatalf("failed to load taxonomy: %v", err)
	}

	if !taxonomy.Eligible(domain.GateG6, domain.RoleEngineer) {
		t.Fatal("engineer should be eligible at G6")
	}
	if taxonomy.Eligible(domain.GateG6, domain.RoleAnalyst) {
		t.Fatal("analyst should not be eligible at G6")
	}
	if !taxonomy.Eligible(domain.GateG4, domain.RoleDesigner) {
		t.Fatal("designer should be eligible at G4")
	}

	for _, g := range domain.Gates {
		if _, ok := taxonomy.Entry(g); !ok {
			t.Fatalf("taxonomy missing %s", g)
		}
	}
}
