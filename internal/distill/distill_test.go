package distill

import (
	"testing"

	"github.com/bioindex/kbsync/internal/model"
)

func stmt(typ model.StatementType, agents []string, evs ...model.Evidence) *model.Statement {
	s := &model.Statement{Type: typ}
	for _, name := range agents {
		s.Agents = append(s.Agents, model.Agent{Name: name})
	}
	s.Evidence = evs
	return s
}

func totalEvidence(stmts []*model.Statement) int {
	n := 0
	for _, s := range stmts {
		n += len(s.Evidence)
	}
	return n
}

func TestExpandEvidence_SplitsMultiEvidence(t *testing.T) {
	in := []*model.Statement{
		stmt(model.TypeActivation, []string{"A", "B"},
			model.Evidence{SourceAPI: "signor", SourceID: "1"},
			model.Evidence{SourceAPI: "signor", SourceID: "2"},
			model.Evidence{SourceAPI: "signor", SourceID: "3"},
		),
	}

	out := ExpandEvidence(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(out))
	}
	for i, s := range out {
		if len(s.Evidence) != 1 {
			t.Errorf("statement %d has %d evidence records", i, len(s.Evidence))
		}
		if s.ContentHash() != in[0].ContentHash() {
			t.Errorf("statement %d lost its content identity", i)
		}
	}
	// Original evidence order is preserved
	for i, want := range []string{"1", "2", "3"} {
		if got := out[i].Evidence[0].SourceID; got != want {
			t.Errorf("position %d: expected source id %s, got %s", i, want, got)
		}
	}
}

func TestExpandEvidence_PassThrough(t *testing.T) {
	single := stmt(model.TypeInhibition, []string{"X", "Y"}, model.Evidence{SourceAPI: "cbn"})
	bare := stmt(model.TypeComplex, []string{"P", "Q"})

	out := ExpandEvidence([]*model.Statement{single, bare})
	if len(out) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(out))
	}
	if out[0] != single || out[1] != bare {
		t.Error("statements with <=1 evidence should pass through unchanged")
	}
}

func TestExpandEvidence_PreservesTotalCount(t *testing.T) {
	in := []*model.Statement{
		stmt(model.TypeActivation, []string{"A", "B"},
			model.Evidence{SourceID: "1"}, model.Evidence{SourceID: "2"}),
		stmt(model.TypeBinding, []string{"C", "D"}, model.Evidence{SourceID: "3"}),
		stmt(model.TypeComplex, []string{"E"}),
	}

	out := ExpandEvidence(in)
	if totalEvidence(out) != totalEvidence(in) {
		t.Errorf("evidence count changed: %d -> %d", totalEvidence(in), totalEvidence(out))
	}
	for _, s := range out {
		if len(s.Evidence) > 1 {
			t.Errorf("statement still carries %d evidence records", len(s.Evidence))
		}
	}
}

func TestExtractDuplicates_Partition(t *testing.T) {
	a := stmt(model.TypeActivation, []string{"A", "B"}, model.Evidence{SourceID: "1"})
	b := stmt(model.TypeActivation, []string{"A", "B"}, model.Evidence{SourceID: "1"}) // same key as a
	c := stmt(model.TypeActivation, []string{"A", "B"}, model.Evidence{SourceID: "2"}) // same content, other evidence
	d := stmt(model.TypeInhibition, []string{"C", "D"}, model.Evidence{SourceID: "1"})
	in := []*model.Statement{a, b, c, d}

	unique, dups := ExtractDuplicates(in, KeyContentAndSource)

	if len(unique)+len(dups) != len(in) {
		t.Errorf("partition broken: %d + %d != %d", len(unique), len(dups), len(in))
	}
	if len(unique) != 3 || len(dups) != 1 {
		t.Fatalf("expected 3 unique / 1 dup, got %d / %d", len(unique), len(dups))
	}
	if unique[0] != a {
		t.Error("first-seen statement should survive")
	}
	if dups[0] != b {
		t.Error("the later duplicate should be discarded")
	}

	seen := make(map[model.StatementKey]bool)
	for _, s := range unique {
		k := s.Key()
		if seen[k] {
			t.Errorf("unique set contains repeated key %+v", k)
		}
		seen[k] = true
	}
}

func TestExtractDuplicates_ContentOnlyKey(t *testing.T) {
	a := stmt(model.TypeActivation, []string{"A", "B"}, model.Evidence{SourceID: "1"})
	c := stmt(model.TypeActivation, []string{"A", "B"}, model.Evidence{SourceID: "2"})

	unique, dups := ExtractDuplicates([]*model.Statement{a, c}, KeyContentOnly)
	if len(unique) != 1 || len(dups) != 1 {
		t.Errorf("content-only key should collapse across source ids: %d / %d", len(unique), len(dups))
	}
}

func TestExtractDuplicates_NilKeyDefaults(t *testing.T) {
	a := stmt(model.TypeActivation, []string{"A"}, model.Evidence{SourceID: "1"})
	unique, dups := ExtractDuplicates([]*model.Statement{a, a}, nil)
	if len(unique) != 1 || len(dups) != 1 {
		t.Errorf("nil key func should fall back to the default key: %d / %d", len(unique), len(dups))
	}
}

func TestExtractDuplicates_Empty(t *testing.T) {
	unique, dups := ExtractDuplicates(nil, KeyContentAndSource)
	if len(unique) != 0 || len(dups) != 0 {
		t.Error("empty input should yield empty outputs")
	}
}

// The end-to-end normalization scenario: 3 raw statements, one carrying two
// evidence records, one colliding exactly with another. Expansion yields 4,
// deduplication collapses the colliding pair, 3 remain.
func TestExpandThenExtract(t *testing.T) {
	shared := model.Evidence{SourceAPI: "ctd", SourceID: "rec-9"}
	in := []*model.Statement{
		stmt(model.TypeActivation, []string{"A", "B"},
			model.Evidence{SourceAPI: "ctd", SourceID: "rec-1"}, shared),
		stmt(model.TypeActivation, []string{"A", "B"}, shared),
		stmt(model.TypeInhibition, []string{"C", "D"}, model.Evidence{SourceAPI: "ctd", SourceID: "rec-2"}),
	}

	expanded := ExpandEvidence(in)
	if len(expanded) != 4 {
		t.Fatalf("expected 4 expanded statements, got %d", len(expanded))
	}

	unique, dups := ExtractDuplicates(expanded, KeyContentAndSource)
	if len(unique) != 3 {
		t.Errorf("expected 3 unique statements, got %d", len(unique))
	}
	if len(dups) != 1 {
		t.Errorf("expected 1 duplicate, got %d", len(dups))
	}
}
