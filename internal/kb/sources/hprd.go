package sources

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/bioindex/kbsync/internal/fetch"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
)

// HPRD ingests the HPRD flat-file release: a tar.gz of tab-separated
// files, discovered by scraping the release index page for the archive
// link.
type HPRD struct {
	releaseURL string
	fetcher    *fetch.Fetcher
	log        *logging.Logger
}

// NewHPRD creates the HPRD adapter
func NewHPRD(cfg model.HPRDConfig, fetcher *fetch.Fetcher, log *logging.Logger) *HPRD {
	return &HPRD{releaseURL: cfg.ReleaseURL, fetcher: fetcher, log: log.With("source", "hprd")}
}

func (h *HPRD) ShortName() string { return "hprd" }
func (h *HPRD) FullName() string  { return "HPRD" }
func (h *HPRD) SourceAPI() string { return "hprd" }

// Statements discovers, downloads and parses the current flat-file
// release
func (h *HPRD) Statements(ctx context.Context) ([]*model.Statement, error) {
	archiveURL, err := h.discoverArchive(ctx)
	if err != nil {
		return nil, err
	}
	h.log.Info("downloading flat-file archive", "url", archiveURL)

	body, err := h.fetcher.Get(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	files, err := extractTarGz(body, []string{
		"BINARY_PROTEIN_PROTEIN_INTERACTIONS.txt",
		"POST_TRANSLATIONAL_MODIFICATIONS.txt",
	})
	if err != nil {
		return nil, fmt.Errorf("hprd: %w", err)
	}

	var stmts []*model.Statement
	if ppi, ok := files["BINARY_PROTEIN_PROTEIN_INTERACTIONS.txt"]; ok {
		stmts = append(stmts, parseHPRDInteractions(ppi)...)
	}
	if ptm, ok := files["POST_TRANSLATIONAL_MODIFICATIONS.txt"]; ok {
		stmts = append(stmts, parseHPRDModifications(ptm)...)
	}
	h.log.Info("parsed flat files", "statements", len(stmts))
	return normalize(stmts), nil
}

// discoverArchive scrapes the release index page for the tar.gz link
func (h *HPRD) discoverArchive(ctx context.Context) (string, error) {
	page, err := h.fetcher.Get(ctx, h.releaseURL)
	if err != nil {
		return "", err
	}
	link, err := findArchiveLink(string(page), ".tar.gz")
	if err != nil {
		return "", fmt.Errorf("hprd: %w", err)
	}
	base, err := url.Parse(h.releaseURL)
	if err != nil {
		return "", fmt.Errorf("hprd: parse release URL: %w", err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("hprd: parse archive link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// findArchiveLink returns the first anchor href with the given suffix
func findArchiveLink(page, suffix string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse release page: %w", err)
	}

	var link string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.HasSuffix(attr.Val, suffix) {
					link = attr.Val
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)

	if link == "" {
		return "", errors.New("no archive link on release page")
	}
	return link, nil
}

// extractTarGz pulls the wanted file names (matched by base name) out
// of a gzipped tarball
func extractTarGz(archive []byte, wanted []string) (map[string][]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		parts := strings.Split(hdr.Name, "/")
		base := parts[len(parts)-1]
		if !want[base] {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		files[base] = data
	}
	return files, nil
}

// parseHPRDInteractions turns binary PPI rows into binding statements.
// Row layout: gene1, hprd_id1, refseq1, gene2, hprd_id2, refseq2,
// experiment types, pmids.
func parseHPRDInteractions(data []byte) []*model.Statement {
	var stmts []*model.Statement
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		row := strings.Split(line, "\t")
		if len(row) < 6 || row[0] == "" || row[3] == "" {
			continue
		}
		stmt := &model.Statement{
			Type: model.TypeBinding,
			Agents: []model.Agent{
				{Name: row[0], DBRefs: map[string]string{"HPRD": row[1]}},
				{Name: row[3], DBRefs: map[string]string{"HPRD": row[4]}},
			},
		}
		sourceID := row[1] + ":" + row[4]
		pmids := ""
		if len(row) >= 8 {
			pmids = strings.TrimSpace(row[7])
		}
		if pmids == "" {
			stmt.Evidence = []model.Evidence{{SourceAPI: "hprd", SourceID: sourceID}}
		}
		for _, pmid := range strings.Split(pmids, ",") {
			if pmid = strings.TrimSpace(pmid); pmid != "" {
				stmt.Evidence = append(stmt.Evidence, model.Evidence{
					SourceAPI: "hprd", SourceID: sourceID, PMID: pmid,
				})
			}
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}

// parseHPRDModifications turns PTM rows into (de)phosphorylation
// statements. Row layout: substrate, hprd_id, refseq, site, residue,
// enzyme, enzyme_hprd_id, modification type, pmids.
func parseHPRDModifications(data []byte) []*model.Statement {
	var stmts []*model.Statement
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		row := strings.Split(line, "\t")
		if len(row) < 8 || row[0] == "" || row[5] == "" || row[5] == "-" {
			continue
		}
		var typ model.StatementType
		switch strings.ToLower(row[7]) {
		case "phosphorylation":
			typ = model.TypePhosphorylation
		case "dephosphorylation":
			typ = model.TypeDephosphorylation
		default:
			continue
		}
		stmt := &model.Statement{
			Type: typ,
			Agents: []model.Agent{
				{Name: row[5], DBRefs: map[string]string{"HPRD": row[6]}},
				{Name: row[0], DBRefs: map[string]string{"HPRD": row[1]}},
			},
		}
		sourceID := row[1] + ":" + row[3] + row[4]
		pmids := ""
		if len(row) >= 9 {
			pmids = strings.TrimSpace(row[8])
		}
		if pmids == "" {
			stmt.Evidence = []model.Evidence{{SourceAPI: "hprd", SourceID: sourceID}}
		}
		for _, pmid := range strings.Split(pmids, ";") {
			if pmid = strings.TrimSpace(pmid); pmid != "" {
				stmt.Evidence = append(stmt.Evidence, model.Evidence{
					SourceAPI: "hprd", SourceID: sourceID, PMID: pmid,
				})
			}
		}
		stmts = append(stmts, stmt)
	}
	return stmts
}
