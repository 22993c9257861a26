package model

import "time"

// Config is the complete kbsync configuration
type Config struct {
	Databases   DatabaseConfig    `yaml:"databases" mapstructure:"databases"`
	AWS         AWSConfig         `yaml:"aws" mapstructure:"aws"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	LogMode     string            `yaml:"log_mode" mapstructure:"log_mode"` // "dev" or "prod"
}

// DatabaseConfig holds the principal and readonly database settings
type DatabaseConfig struct {
	PrincipalDSN string `yaml:"principal_dsn" mapstructure:"principal_dsn"`
	ReadonlyDSN  string `yaml:"readonly_dsn" mapstructure:"readonly_dsn"`
	SpoolDir     string `yaml:"spool_dir" mapstructure:"spool_dir"` // Where readonly dumps land before transfer
}

// AWSConfig holds the S3 and Lambda settings used for source dumps,
// snapshot artifacts and the serving-layer redirect
type AWSConfig struct {
	Region         string `yaml:"region" mapstructure:"region"`
	Bucket         string `yaml:"bucket" mapstructure:"bucket"`                   // Source dumps and snapshot artifacts
	LambdaFunction string `yaml:"lambda_function" mapstructure:"lambda_function"` // Serving function to redirect during cutover
	LambdaRole     string `yaml:"lambda_role" mapstructure:"lambda_role"`         // Role to assume for the redirect, if not already held
}

// HTTPConfig controls outbound fetches
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerSecond  float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	RespectRobots  bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy      string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy     string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy        string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// CacheConfig controls download caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds the ingest batch runner
type ConcurrencyConfig struct {
	IngestWorkers int `yaml:"ingest_workers" mapstructure:"ingest_workers"`
}

// SourcesConfig carries adapter-specific settings
type SourcesConfig struct {
	Signor SignorConfig `yaml:"signor" mapstructure:"signor"`
	CBN    CBNConfig    `yaml:"cbn" mapstructure:"cbn"`
	HPRD   HPRDConfig   `yaml:"hprd" mapstructure:"hprd"`
	CTD    CTDConfig    `yaml:"ctd" mapstructure:"ctd"`
}

// SignorConfig configures the SIGNOR web TSV adapter
type SignorConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// CBNConfig configures the Causal Bionet zip archive adapter
type CBNConfig struct {
	ArchiveURL string `yaml:"archive_url" mapstructure:"archive_url"`
}

// HPRDConfig configures the HPRD flat-file tarball adapter
type HPRDConfig struct {
	ReleaseURL string `yaml:"release_url" mapstructure:"release_url"` // Release index page; the tarball link is discovered from it
}

// CTDConfig configures the CTD object-store adapter
type CTDConfig struct {
	Bucket    string   `yaml:"bucket" mapstructure:"bucket"`
	KeyPrefix string   `yaml:"key_prefix" mapstructure:"key_prefix"`
	Subsets   []string `yaml:"subsets" mapstructure:"subsets"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Databases: DatabaseConfig{
			PrincipalDSN: "postgres://postgres@localhost:5432/kbsync?sslmode=disable",
			ReadonlyDSN:  "postgres://postgres@localhost:5432/kbsync_ro?sslmode=disable",
			SpoolDir:     "/tmp/kbsync-spool",
		},
		AWS: AWSConfig{
			Region: "us-east-1",
			Bucket: "kbsync-artifacts",
		},
		HTTP: HTTPConfig{
			Timeout:       5 * time.Minute,
			UserAgent:     "kbsync/0.3 (+https://github.com/bioindex/kbsync)",
			MaxBodyBytes:  512_000_000,
			RatePerSecond: 2,
			RateBurst:     4,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "/tmp/kbsync-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			IngestWorkers: 4,
		},
		Sources: SourcesConfig{
			Signor: SignorConfig{
				URL: "https://signor.uniroma2.it/releases/getLatestRelease.php",
			},
			CBN: CBNConfig{
				ArchiveURL: "http://www.causalbionet.com/Content/jgf_bulk_files/Human-2.0.zip",
			},
			HPRD: HPRDConfig{
				ReleaseURL: "http://www.hprd.org/RELEASE9/",
			},
			CTD: CTDConfig{
				Bucket:    "kbsync-source-dumps",
				KeyPrefix: "ctd",
				Subsets:   []string{"gene_disease", "chemical_disease", "chemical_gene"},
			},
		},
		LogMode: "dev",
	}
}
