package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bioindex/kbsync/internal/fetch"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
)

// CBN ingests the Causal Bionet network archive: a zip of JSON graph
// files, one statement per signed edge.
type CBN struct {
	archiveURL string
	fetcher    *fetch.Fetcher
	log        *logging.Logger
}

// NewCBN creates the Causal Bionet adapter
func NewCBN(cfg model.CBNConfig, fetcher *fetch.Fetcher, log *logging.Logger) *CBN {
	return &CBN{archiveURL: cfg.ArchiveURL, fetcher: fetcher, log: log.With("source", "cbn")}
}

func (c *CBN) ShortName() string { return "cbn" }
func (c *CBN) FullName() string  { return "Causal Bionet" }
func (c *CBN) SourceAPI() string { return "bel" }

// Statements downloads the archive and parses every graph file in it
func (c *CBN) Statements(ctx context.Context) ([]*model.Statement, error) {
	c.log.Info("retrieving network zip archive", "url", c.archiveURL)
	body, err := c.fetcher.Get(ctx, c.archiveURL)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("cbn: open archive: %w", err)
	}

	var stmts []*model.Statement
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".jgf") && !strings.HasSuffix(f.Name, ".jgif") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("cbn: open %s: %w", f.Name, err)
		}
		graphStmts, err := parseCBNGraph(rc, f.Name)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		c.log.Debug("parsed graph file", "file", f.Name, "statements", len(graphStmts))
		stmts = append(stmts, graphStmts...)
	}
	c.log.Info("parsed network archive", "statements", len(stmts))
	return normalize(stmts), nil
}

type cbnGraphFile struct {
	Graph struct {
		Label string `json:"label"`
		Nodes []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"nodes"`
		Edges []struct {
			Source   string `json:"source"`
			Relation string `json:"relation"`
			Target   string `json:"target"`
			Metadata struct {
				Evidences []struct {
					Citation struct {
						ID string `json:"id"`
					} `json:"citation"`
					SummaryText string `json:"summary_text"`
				} `json:"evidences"`
			} `json:"metadata"`
		} `json:"edges"`
	} `json:"graph"`
}

func parseCBNGraph(r io.Reader, name string) ([]*model.Statement, error) {
	var file cbnGraphFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("cbn: decode %s: %w", name, err)
	}

	labels := make(map[string]string, len(file.Graph.Nodes))
	for _, n := range file.Graph.Nodes {
		labels[n.ID] = n.Label
	}
	nodeName := func(id string) string {
		if label := labels[id]; label != "" {
			return label
		}
		return id
	}

	var stmts []*model.Statement
	for i, edge := range file.Graph.Edges {
		typ, ok := cbnRelationType(edge.Relation)
		if !ok {
			continue
		}
		stmt := &model.Statement{
			Type: typ,
			Agents: []model.Agent{
				{Name: nodeName(edge.Source)},
				{Name: nodeName(edge.Target)},
			},
		}
		edgeID := fmt.Sprintf("%s:%s:%d", file.Graph.Label, edge.Relation, i)
		if len(edge.Metadata.Evidences) == 0 {
			stmt.Evidence = []model.Evidence{{SourceAPI: "bel", SourceID: edgeID}}
		}
		for _, ev := range edge.Metadata.Evidences {
			stmt.Evidence = append(stmt.Evidence, model.Evidence{
				SourceAPI: "bel",
				SourceID:  edgeID,
				PMID:      ev.Citation.ID,
				Text:      ev.SummaryText,
			})
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func cbnRelationType(relation string) (model.StatementType, bool) {
	switch strings.ToLower(relation) {
	case "increases", "directlyincreases":
		return model.TypeIncreaseAmount, true
	case "decreases", "directlydecreases":
		return model.TypeDecreaseAmount, true
	case "complexabundance", "hascomponent":
		return model.TypeComplex, true
	default:
		return "", false
	}
}
