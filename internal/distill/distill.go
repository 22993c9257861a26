// Package distill normalizes raw statement batches before they reach the
// store: multi-evidence statements are expanded into single-evidence copies
// and exact duplicates are split off by a pluggable key function.
package distill

import "github.com/bioindex/kbsync/internal/model"

// KeyFunc derives the dedup identity of a normalized statement
type KeyFunc func(*model.Statement) model.StatementKey

// KeyContentAndSource keys on (content hash, source hash). Two statements
// match only if they assert the same content with the very same evidence.
// This is the default key.
func KeyContentAndSource(s *model.Statement) model.StatementKey {
	return s.Key()
}

// KeyContentOnly keys on content hash alone, collapsing duplicates across
// source-internal record ids.
func KeyContentOnly(s *model.Statement) model.StatementKey {
	return model.StatementKey{ContentHash: s.ContentHash()}
}

// ExpandEvidence returns a sequence in which every statement carries exactly
// one evidence record. A statement with k>1 evidence records becomes k
// generic copies, one per evidence, in the original evidence order.
// Statements with zero or one evidence records pass through unchanged.
func ExpandEvidence(stmts []*model.Statement) []*model.Statement {
	out := make([]*model.Statement, 0, len(stmts))
	for _, s := range stmts {
		if len(s.Evidence) <= 1 {
			out = append(out, s)
			continue
		}
		for _, ev := range s.Evidence {
			cp := s.GenericCopy()
			cp.Evidence = append(cp.Evidence, ev)
			out = append(out, cp)
		}
	}
	return out
}

// ExtractDuplicates splits a normalized sequence into its first-seen
// representatives and the discarded duplicates. The input is consumed in a
// single pass; for identical keys the first statement in iteration order
// survives. len(unique)+len(duplicates) always equals len(stmts).
func ExtractDuplicates(stmts []*model.Statement, key KeyFunc) (unique, duplicates []*model.Statement) {
	if key == nil {
		key = KeyContentAndSource
	}
	seen := make(map[model.StatementKey]struct{}, len(stmts))
	for _, s := range stmts {
		k := key(s)
		if _, dup := seen[k]; dup {
			duplicates = append(duplicates, s)
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, s)
	}
	return unique, duplicates
}
