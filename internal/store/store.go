// Package store persists registrations and raw statements and exposes
// the snapshot operations the readonly refresh cycle needs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bioindex/kbsync/internal/model"
)

// ErrNotFound is returned by lookups that matched nothing
var ErrNotFound = errors.New("store: not found")

// Registration binds a knowledge base short name to its source API.
// db_name is the identity key; source_api is mutable metadata.
type Registration struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	DBName    string    `gorm:"column:db_name;uniqueIndex;not null"`
	SourceAPI string    `gorm:"column:source_api;not null"`
	FullName  string    `gorm:"column:db_full_name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName keeps the historical table name
func (Registration) TableName() string { return "db_info" }

// RawStatement is one persisted normalized statement
type RawStatement struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	DBInfoID   int64     `gorm:"column:db_info_id;index;not null"`
	MkHash     int64     `gorm:"column:mk_hash;index:idx_raw_statements_keys"`
	SourceHash int64     `gorm:"column:source_hash;index:idx_raw_statements_keys"`
	Type       string    `gorm:"column:type"`
	JSON       []byte    `gorm:"column:json"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName keeps the historical table name
func (RawStatement) TableName() string { return "raw_statements" }

// Store is the surface the knowledgebase manager consumes
type Store interface {
	// RegistrationByName looks up a registration; ErrNotFound when absent.
	RegistrationByName(ctx context.Context, dbName string) (*Registration, error)
	// InsertRegistration persists a new registration and returns its id.
	InsertRegistration(ctx context.Context, reg *Registration) (int64, error)
	// SetRegistrationSource overwrites the stored source_api.
	SetRegistrationSource(ctx context.Context, id int64, sourceAPI string) error
	// ExistingKeys returns every (content hash, source hash) pair persisted
	// under the registration. Computed fresh on every call.
	ExistingKeys(ctx context.Context, regID int64) (map[model.StatementKey]struct{}, error)
	// InsertStatements persists the batch under the registration. The batch
	// is transactional: either every row lands or none do.
	InsertStatements(ctx context.Context, regID int64, stmts []*model.Statement) error
}

// Principal extends Store with the snapshot-side operations of the
// primary database.
type Principal interface {
	Store
	// URL returns the connection string, used for the cutover redirect.
	URL() string
	// Schemas lists the database's schemas.
	Schemas(ctx context.Context) ([]string, error)
	// DropSchema drops a schema and everything in it.
	DropSchema(ctx context.Context, name string) error
	// GenerateReadonly derives the read-optimized schema. views selects a
	// subset (nil means all); allowContinue permits resuming atop a
	// partially built schema instead of failing when it already exists.
	GenerateReadonly(ctx context.Context, views []string, allowContinue bool) error
	// DumpReadonly serializes the readonly schema into spoolDir and
	// returns the artifact path.
	DumpReadonly(ctx context.Context, spoolDir string) (string, error)
}

// Readonly is the read-serving database the snapshot is loaded into
type Readonly interface {
	URL() string
	LoadDump(ctx context.Context, path string) error
}
