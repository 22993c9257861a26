// Package validate checks statements against the structural contract the
// store requires. Validation runs before any persistence; an invalid
// statement aborts the whole batch.
package validate

import (
	"fmt"
	"strings"

	"github.com/bioindex/kbsync/internal/model"
)

// Error describes one structural violation with enough context to find
// the offending record.
type Error struct {
	Reason    string
	Statement *model.Statement
}

func (e *Error) Error() string {
	if e.Statement == nil {
		return e.Reason
	}
	names := make([]string, 0, len(e.Statement.Agents))
	for _, ag := range e.Statement.Agents {
		names = append(names, ag.Name)
	}
	return fmt.Sprintf("invalid statement (%s over [%s]): %s",
		e.Statement.Type, strings.Join(names, ", "), e.Reason)
}

// AssertValid returns a descriptive error if the statement violates the
// structural contract: known type, at least one named agent, well-formed
// groundings, and consistent evidence provenance.
func AssertValid(s *model.Statement) error {
	if s == nil {
		return &Error{Reason: "nil statement"}
	}
	if s.Type == "" {
		return &Error{Reason: "missing statement type", Statement: s}
	}
	if !model.KnownTypes[s.Type] {
		return &Error{Reason: fmt.Sprintf("unknown statement type %q", s.Type), Statement: s}
	}
	if len(s.Agents) == 0 {
		return &Error{Reason: "no agents", Statement: s}
	}
	named := false
	for i, ag := range s.Agents {
		if ag.Name != "" {
			named = true
		}
		for ns, id := range ag.DBRefs {
			if ns == "" || id == "" {
				return &Error{
					Reason:    fmt.Sprintf("agent %d has malformed grounding %q=%q", i, ns, id),
					Statement: s,
				}
			}
		}
	}
	if !named {
		return &Error{Reason: "no agent has a name", Statement: s}
	}
	for i, ev := range s.Evidence {
		if ev.SourceAPI == "" {
			return &Error{
				Reason:    fmt.Sprintf("evidence %d missing source_api", i),
				Statement: s,
			}
		}
	}
	return nil
}
