package model

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strings"
)

// StatementType classifies the interaction a statement asserts
type StatementType string

const (
	TypeActivation        StatementType = "activation"
	TypeInhibition        StatementType = "inhibition"
	TypePhosphorylation   StatementType = "phosphorylation"
	TypeDephosphorylation StatementType = "dephosphorylation"
	TypeComplex           StatementType = "complex"
	TypeIncreaseAmount    StatementType = "increase_amount"
	TypeDecreaseAmount    StatementType = "decrease_amount"
	TypeBinding           StatementType = "binding"
)

// KnownTypes lists every statement type the store accepts
var KnownTypes = map[StatementType]bool{
	TypeActivation:        true,
	TypeInhibition:        true,
	TypePhosphorylation:   true,
	TypeDephosphorylation: true,
	TypeComplex:           true,
	TypeIncreaseAmount:    true,
	TypeDecreaseAmount:    true,
	TypeBinding:           true,
}

// Agent is one participant in a statement
type Agent struct {
	Name   string            `json:"name"`              // Canonical display name
	DBRefs map[string]string `json:"db_refs,omitempty"` // Grounding: namespace -> identifier (HGNC, UP, CHEBI, ...)
}

// Evidence is the provenance for one statement
type Evidence struct {
	SourceAPI   string            `json:"source_api"`             // Which reader/processor produced it
	SourceID    string            `json:"source_id,omitempty"`    // Source-internal record identifier
	SourceSubID string            `json:"source_sub_id,omitempty"` // Source-internal subset identifier
	PMID        string            `json:"pmid,omitempty"`          // PubMed reference, if any
	TextRefs    map[string]string `json:"text_refs,omitempty"`     // Other text references (PMCID, DOI, ...)
	Text        string            `json:"text,omitempty"`          // Supporting text excerpt
	Annotations map[string]string `json:"annotations,omitempty"`   // Free-form source annotations
}

// Statement is a typed factual assertion about an interaction.
// After normalization it carries exactly one evidence record.
type Statement struct {
	Type     StatementType `json:"type"`
	Agents   []Agent       `json:"agents"` // Order is significant (subject, object, ...)
	Evidence []Evidence    `json:"evidence,omitempty"`
}

// StatementKey is the exact-duplicate identity of a normalized statement
type StatementKey struct {
	ContentHash int64
	SourceHash  int64
}

// ContentHash fingerprints the statement's type and agents.
// Evidence never contributes, so the hash is stable across sources
// reporting the same interaction.
func (s *Statement) ContentHash() int64 {
	var b strings.Builder
	b.WriteString(string(s.Type))
	for _, ag := range s.Agents {
		b.WriteByte('|')
		b.WriteString(ag.Name)
		for _, k := range sortedKeys(ag.DBRefs) {
			b.WriteByte(';')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(ag.DBRefs[k])
		}
	}
	return hash64(b.String())
}

// SourceHash fingerprints the evidence's own content, independent of
// the owning statement.
func (e *Evidence) SourceHash() int64 {
	var b strings.Builder
	b.WriteString(e.SourceAPI)
	b.WriteByte('|')
	b.WriteString(e.SourceID)
	b.WriteByte('|')
	b.WriteString(e.SourceSubID)
	b.WriteByte('|')
	b.WriteString(e.PMID)
	for _, k := range sortedKeys(e.TextRefs) {
		b.WriteByte(';')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.TextRefs[k])
	}
	b.WriteByte('|')
	b.WriteString(e.Text)
	return hash64(b.String())
}

// Key returns the dedup key of a normalized statement. Only valid once
// the statement has exactly one evidence record.
func (s *Statement) Key() StatementKey {
	key := StatementKey{ContentHash: s.ContentHash()}
	if len(s.Evidence) > 0 {
		key.SourceHash = s.Evidence[0].SourceHash()
	}
	return key
}

// GenericCopy returns a statement with the same type and agents and an
// empty evidence list.
func (s *Statement) GenericCopy() *Statement {
	agents := make([]Agent, len(s.Agents))
	copy(agents, s.Agents)
	return &Statement{Type: s.Type, Agents: agents}
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// hash64 derives a signed 64-bit fingerprint from the first 8 bytes of
// a sha256 digest. The store's hash columns are 64-bit.
func hash64(s string) int64 {
	sum := sha256.Sum256([]byte(s))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
