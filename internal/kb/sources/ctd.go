package sources

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
)

// CTD ingests pre-processed CTD statement dumps from an object store:
// one gzipped JSON array per curated subset.
type CTD struct {
	bucket  string
	prefix  string
	subsets []string
	client  s3iface.S3API
	log     *logging.Logger
}

// NewCTD creates the CTD adapter with a live S3 client
func NewCTD(cfg model.CTDConfig, region string, log *logging.Logger) *CTD {
	sess := session.New(&aws.Config{Region: aws.String(region)})
	return NewCTDWithClient(cfg, s3.New(sess), log)
}

// NewCTDWithClient creates the CTD adapter with the given client
func NewCTDWithClient(cfg model.CTDConfig, client s3iface.S3API, log *logging.Logger) *CTD {
	return &CTD{
		bucket:  cfg.Bucket,
		prefix:  cfg.KeyPrefix,
		subsets: cfg.Subsets,
		client:  client,
		log:     log.With("source", "ctd"),
	}
}

func (c *CTD) ShortName() string { return "ctd" }
func (c *CTD) FullName() string  { return "Comparative Toxicogenomics Database" }
func (c *CTD) SourceAPI() string { return "ctd" }

// Statements downloads and decodes every configured subset
func (c *CTD) Statements(ctx context.Context) ([]*model.Statement, error) {
	var stmts []*model.Statement
	for _, subset := range c.subsets {
		key := path.Join(c.prefix, subset+".json.gz")
		batch, err := c.fetchSubset(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("ctd: subset %s: %w", subset, err)
		}
		c.log.Info("decoded subset", "subset", subset, "statements", len(batch))
		stmts = append(stmts, batch...)
	}
	return normalize(stmts), nil
}

func (c *CTD) fetchSubset(ctx context.Context, key string) ([]*model.Statement, error) {
	out, err := c.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", c.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	var stmts []*model.Statement
	if strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(out.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		if err := json.NewDecoder(gz).Decode(&stmts); err != nil {
			return nil, fmt.Errorf("decode statements: %w", err)
		}
		return stmts, nil
	}
	if err := json.NewDecoder(out.Body).Decode(&stmts); err != nil {
		return nil, fmt.Errorf("decode statements: %w", err)
	}
	return stmts, nil
}
