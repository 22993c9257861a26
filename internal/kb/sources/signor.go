package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/bioindex/kbsync/internal/fetch"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
)

// Signor ingests the SIGNOR causal relationship release, published as a
// tab-separated dump behind a release endpoint.
type Signor struct {
	url     string
	fetcher *fetch.Fetcher
	log     *logging.Logger
}

// NewSignor creates the SIGNOR adapter
func NewSignor(cfg model.SignorConfig, fetcher *fetch.Fetcher, log *logging.Logger) *Signor {
	return &Signor{url: cfg.URL, fetcher: fetcher, log: log.With("source", "signor")}
}

func (s *Signor) ShortName() string { return "signor" }
func (s *Signor) FullName() string  { return "SIGNOR" }
func (s *Signor) SourceAPI() string { return "signor" }

// Statements fetches and parses the current release
func (s *Signor) Statements(ctx context.Context) ([]*model.Statement, error) {
	s.log.Info("fetching SIGNOR release", "url", s.url)
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	stmts, err := parseSignorTSV(string(body))
	if err != nil {
		return nil, err
	}
	s.log.Info("parsed SIGNOR rows", "statements", len(stmts))
	return normalize(stmts), nil
}

func parseSignorTSV(body string) ([]*model.Statement, error) {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	if len(lines) < 1 {
		return nil, fmt.Errorf("signor: empty dump")
	}

	header := strings.Split(lines[0], "\t")
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"ENTITYA", "ENTITYB", "EFFECT", "SIGNOR_ID"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("signor: missing column %s", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var stmts []*model.Statement
	for n, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := strings.Split(line, "\t")

		typ, ok := signorEffectType(field(row, "EFFECT"), field(row, "MECHANISM"))
		if !ok {
			continue // unsigned or unparsable relations are skipped
		}

		a := model.Agent{Name: field(row, "ENTITYA")}
		if id := field(row, "IDA"); id != "" {
			a.DBRefs = map[string]string{strings.ToUpper(field(row, "DATABASEA")): id}
		}
		b := model.Agent{Name: field(row, "ENTITYB")}
		if id := field(row, "IDB"); id != "" {
			b.DBRefs = map[string]string{strings.ToUpper(field(row, "DATABASEB")): id}
		}
		if a.Name == "" || b.Name == "" {
			return nil, fmt.Errorf("signor: row %d has unnamed entity", n+2)
		}

		stmts = append(stmts, &model.Statement{
			Type:   typ,
			Agents: []model.Agent{a, b},
			Evidence: []model.Evidence{{
				SourceAPI: "signor",
				SourceID:  field(row, "SIGNOR_ID"),
				PMID:      field(row, "PMID"),
				Text:      field(row, "SENTENCE"),
			}},
		})
	}
	return stmts, nil
}

// signorEffectType maps SIGNOR's effect/mechanism vocabulary onto
// statement types
func signorEffectType(effect, mechanism string) (model.StatementType, bool) {
	mech := strings.ToLower(mechanism)
	switch {
	case strings.Contains(mech, "dephosphorylation"):
		return model.TypeDephosphorylation, true
	case strings.Contains(mech, "phosphorylation"):
		return model.TypePhosphorylation, true
	case strings.Contains(mech, "binding"):
		return model.TypeBinding, true
	}
	switch {
	case strings.HasPrefix(strings.ToLower(effect), "up-regulates"):
		return model.TypeActivation, true
	case strings.HasPrefix(strings.ToLower(effect), "down-regulates"):
		return model.TypeInhibition, true
	default:
		return "", false
	}
}
