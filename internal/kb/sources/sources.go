// Package sources holds the adapter for each external knowledge base.
// Every adapter fetches its upstream's full current content, parses it
// into statements, and normalizes the batch (single-evidence expansion
// plus exact-duplicate removal) before handing it to the manager.
package sources

import (
	"github.com/bioindex/kbsync/internal/distill"
	"github.com/bioindex/kbsync/internal/fetch"
	"github.com/bioindex/kbsync/internal/kb"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
)

// normalize applies the shared pre-upload transform: expand to one
// evidence per statement, then drop exact duplicates.
func normalize(stmts []*model.Statement) []*model.Statement {
	unique, _ := distill.ExtractDuplicates(distill.ExpandEvidence(stmts), distill.KeyContentAndSource)
	return unique
}

// BuildRegistry wires every configured adapter into a registry. The
// list is explicit: adding a source means adding a constructor here.
func BuildRegistry(cfg *model.Config, fetcher *fetch.Fetcher, log *logging.Logger) (*kb.Registry, error) {
	reg := kb.NewRegistry()
	all := []kb.Source{
		NewSignor(cfg.Sources.Signor, fetcher, log),
		NewCBN(cfg.Sources.CBN, fetcher, log),
		NewHPRD(cfg.Sources.HPRD, fetcher, log),
		NewCTD(cfg.Sources.CTD, cfg.AWS.Region, log),
	}
	for _, src := range all {
		if err := reg.Register(src); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
