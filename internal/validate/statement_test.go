package validate

import (
	"strings"
	"testing"

	"github.com/bioindex/kbsync/internal/model"
)

func TestAssertValid_OK(t *testing.T) {
	s := &model.Statement{
		Type: model.TypeActivation,
		Agents: []model.Agent{
			{Name: "MAP2K1", DBRefs: map[string]string{"HGNC": "6840"}},
			{Name: "MAPK1"},
		},
		Evidence: []model.Evidence{{SourceAPI: "signor", SourceID: "S-1"}},
	}
	if err := AssertValid(s); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestAssertValid_Violations(t *testing.T) {
	cases := []struct {
		name   string
		stmt   *model.Statement
		reason string
	}{
		{"nil statement", nil, "nil statement"},
		{
			"missing type",
			&model.Statement{Agents: []model.Agent{{Name: "A"}}},
			"missing statement type",
		},
		{
			"unknown type",
			&model.Statement{Type: "teleportation", Agents: []model.Agent{{Name: "A"}}},
			"unknown statement type",
		},
		{
			"no agents",
			&model.Statement{Type: model.TypeComplex},
			"no agents",
		},
		{
			"unnamed agents",
			&model.Statement{Type: model.TypeComplex, Agents: []model.Agent{{}, {}}},
			"no agent has a name",
		},
		{
			"malformed grounding",
			&model.Statement{
				Type:   model.TypeBinding,
				Agents: []model.Agent{{Name: "A", DBRefs: map[string]string{"HGNC": ""}}},
			},
			"malformed grounding",
		},
		{
			"evidence without source",
			&model.Statement{
				Type:     model.TypeBinding,
				Agents:   []model.Agent{{Name: "A"}, {Name: "B"}},
				Evidence: []model.Evidence{{SourceID: "x"}},
			},
			"missing source_api",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertValid(tc.stmt)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.reason) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.reason)
			}
		})
	}
}

func TestError_IncludesContext(t *testing.T) {
	s := &model.Statement{
		Type:   model.TypeInhibition,
		Agents: []model.Agent{{Name: "TP53"}, {Name: "MDM2"}},
	}
	err := &Error{Reason: "boom", Statement: s}
	msg := err.Error()
	if !strings.Contains(msg, "TP53") || !strings.Contains(msg, "inhibition") {
		t.Errorf("error message lacks identifying context: %q", msg)
	}
}
