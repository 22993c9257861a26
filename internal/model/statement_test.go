package model

import "testing"

func TestContentHash_Deterministic(t *testing.T) {
	s1 := &Statement{
		Type: TypeActivation,
		Agents: []Agent{
			{Name: "MAP2K1", DBRefs: map[string]string{"HGNC": "6840", "UP": "Q02750"}},
			{Name: "MAPK1", DBRefs: map[string]string{"HGNC": "6871"}},
		},
	}
	s2 := &Statement{
		Type: TypeActivation,
		Agents: []Agent{
			{Name: "MAP2K1", DBRefs: map[string]string{"UP": "Q02750", "HGNC": "6840"}},
			{Name: "MAPK1", DBRefs: map[string]string{"HGNC": "6871"}},
		},
	}

	if s1.ContentHash() != s2.ContentHash() {
		t.Error("same content with different map ordering should hash identically")
	}
}

func TestContentHash_IgnoresEvidence(t *testing.T) {
	s := &Statement{
		Type:   TypeInhibition,
		Agents: []Agent{{Name: "TP53"}, {Name: "MDM2"}},
	}
	before := s.ContentHash()

	s.Evidence = append(s.Evidence, Evidence{SourceAPI: "signor", SourceID: "S-1"})
	if s.ContentHash() != before {
		t.Error("evidence must not contribute to the content hash")
	}
}

func TestContentHash_AgentOrderSignificant(t *testing.T) {
	ab := &Statement{Type: TypeBinding, Agents: []Agent{{Name: "A"}, {Name: "B"}}}
	ba := &Statement{Type: TypeBinding, Agents: []Agent{{Name: "B"}, {Name: "A"}}}

	if ab.ContentHash() == ba.ContentHash() {
		t.Error("agent order should be significant")
	}
}

func TestSourceHash_IndependentOfStatement(t *testing.T) {
	ev := Evidence{SourceAPI: "cbn", SourceID: "edge-42", Text: "A activates B"}

	s1 := &Statement{Type: TypeActivation, Agents: []Agent{{Name: "A"}, {Name: "B"}}, Evidence: []Evidence{ev}}
	s2 := &Statement{Type: TypeInhibition, Agents: []Agent{{Name: "X"}}, Evidence: []Evidence{ev}}

	if s1.Evidence[0].SourceHash() != s2.Evidence[0].SourceHash() {
		t.Error("source hash must depend only on the evidence content")
	}
}

func TestSourceHash_DistinguishesContent(t *testing.T) {
	e1 := Evidence{SourceAPI: "signor", SourceID: "S-1"}
	e2 := Evidence{SourceAPI: "signor", SourceID: "S-2"}

	if e1.SourceHash() == e2.SourceHash() {
		t.Error("different evidence should hash differently")
	}
}

func TestGenericCopy(t *testing.T) {
	s := &Statement{
		Type:   TypePhosphorylation,
		Agents: []Agent{{Name: "SRC"}, {Name: "CTNNB1"}},
		Evidence: []Evidence{
			{SourceAPI: "hprd", SourceID: "03633"},
			{SourceAPI: "hprd", SourceID: "03634"},
		},
	}

	cp := s.GenericCopy()
	if cp.Type != s.Type {
		t.Errorf("type changed: %s", cp.Type)
	}
	if len(cp.Agents) != 2 || cp.Agents[0].Name != "SRC" {
		t.Errorf("agents not preserved: %+v", cp.Agents)
	}
	if len(cp.Evidence) != 0 {
		t.Errorf("expected empty evidence, got %d", len(cp.Evidence))
	}
	if cp.ContentHash() != s.ContentHash() {
		t.Error("generic copy must keep the content hash")
	}

	// Mutating the copy's agents must not touch the original
	cp.Agents[0].Name = "LCK"
	if s.Agents[0].Name != "SRC" {
		t.Error("copy shares agent backing array with original")
	}
}
