package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bioindex/kbsync/internal/model"
)

const readonlySchema = "readonly"

// readonlyViews maps each derived view to the statement that builds it.
// Build order follows viewOrder; later views may reference earlier ones.
var readonlyViews = map[string]string{
	"source_meta": `CREATE MATERIALIZED VIEW readonly.source_meta AS
		SELECT di.id AS db_info_id, di.db_name, di.source_api,
		       count(rs.id) AS stmt_count
		FROM db_info di LEFT JOIN raw_statements rs ON rs.db_info_id = di.id
		GROUP BY di.id, di.db_name, di.source_api`,
	"raw_stmt_src": `CREATE MATERIALIZED VIEW readonly.raw_stmt_src AS
		SELECT rs.mk_hash, rs.source_hash, rs.type, di.db_name AS src
		FROM raw_statements rs JOIN db_info di ON di.id = rs.db_info_id`,
	"stmt_counts": `CREATE MATERIALIZED VIEW readonly.stmt_counts AS
		SELECT type, count(*) AS n FROM raw_statements GROUP BY type`,
}

var viewOrder = []string{"source_meta", "raw_stmt_src", "stmt_counts"}

// SQL implements Store, Principal and Readonly over a gorm connection
type SQL struct {
	db  *gorm.DB
	dsn string
}

// OpenPostgres connects to a postgres database and migrates the primary
// tables.
func OpenPostgres(dsn string) (*SQL, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return NewSQL(db, dsn)
}

// NewSQL wraps an existing gorm connection. Used directly by tests,
// which substitute a sqlite dialector.
func NewSQL(db *gorm.DB, dsn string) (*SQL, error) {
	if err := db.AutoMigrate(&Registration{}, &RawStatement{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQL{db: db, dsn: dsn}, nil
}

// URL returns the connection string
func (s *SQL) URL() string { return s.dsn }

// RegistrationByName looks up a registration by db_name
func (s *SQL) RegistrationByName(ctx context.Context, dbName string) (*Registration, error) {
	var reg Registration
	err := s.db.WithContext(ctx).Where("db_name = ?", dbName).First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select registration %s: %w", dbName, err)
	}
	return &reg, nil
}

// InsertRegistration persists a new registration
func (s *SQL) InsertRegistration(ctx context.Context, reg *Registration) (int64, error) {
	if err := s.db.WithContext(ctx).Create(reg).Error; err != nil {
		return 0, fmt.Errorf("insert registration %s: %w", reg.DBName, err)
	}
	return reg.ID, nil
}

// SetRegistrationSource overwrites source_api for an existing registration
func (s *SQL) SetRegistrationSource(ctx context.Context, id int64, sourceAPI string) error {
	res := s.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ?", id).Update("source_api", sourceAPI)
	if res.Error != nil {
		return fmt.Errorf("update source_api for registration %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistingKeys reads every persisted (mk_hash, source_hash) pair for a
// registration
func (s *SQL) ExistingKeys(ctx context.Context, regID int64) (map[model.StatementKey]struct{}, error) {
	var rows []struct {
		MkHash     int64
		SourceHash int64
	}
	err := s.db.WithContext(ctx).Model(&RawStatement{}).
		Select("mk_hash", "source_hash").
		Where("db_info_id = ?", regID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select existing keys for registration %d: %w", regID, err)
	}
	keys := make(map[model.StatementKey]struct{}, len(rows))
	for _, r := range rows {
		keys[model.StatementKey{ContentHash: r.MkHash, SourceHash: r.SourceHash}] = struct{}{}
	}
	return keys, nil
}

// InsertStatements persists the batch in one transaction
func (s *SQL) InsertStatements(ctx context.Context, regID int64, stmts []*model.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	rows := make([]RawStatement, 0, len(stmts))
	for _, st := range stmts {
		payload, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal statement: %w", err)
		}
		key := st.Key()
		rows = append(rows, RawStatement{
			DBInfoID:   regID,
			MkHash:     key.ContentHash,
			SourceHash: key.SourceHash,
			Type:       string(st.Type),
			JSON:       payload,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 1000).Error
	})
	if err != nil {
		return fmt.Errorf("insert %d statements for registration %d: %w", len(rows), regID, err)
	}
	return nil
}

// Schemas lists the database's schemas
func (s *SQL) Schemas(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Raw("SELECT schema_name FROM information_schema.schemata").
		Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// DropSchema drops a schema and its contents
func (s *SQL) DropSchema(ctx context.Context, name string) error {
	if err := s.db.WithContext(ctx).Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", name)).Error; err != nil {
		return fmt.Errorf("drop schema %s: %w", name, err)
	}
	return nil
}

// GenerateReadonly derives the readonly schema from the primary tables.
// With allowContinue, views that already exist are skipped so an
// interrupted build can be resumed; without it, an existing schema is an
// error.
func (s *SQL) GenerateReadonly(ctx context.Context, views []string, allowContinue bool) error {
	schemas, err := s.Schemas(ctx)
	if err != nil {
		return err
	}
	exists := false
	for _, name := range schemas {
		if name == readonlySchema {
			exists = true
			break
		}
	}
	if exists && !allowContinue {
		return fmt.Errorf("schema %s already exists; pass allow-continue to resume, or delete it first", readonlySchema)
	}
	if !exists {
		if err := s.db.WithContext(ctx).Exec("CREATE SCHEMA " + readonlySchema).Error; err != nil {
			return fmt.Errorf("create schema %s: %w", readonlySchema, err)
		}
	}

	selected := make(map[string]bool, len(views))
	for _, v := range views {
		if _, ok := readonlyViews[v]; !ok {
			return fmt.Errorf("unknown readonly view %q", v)
		}
		selected[v] = true
	}

	for _, name := range viewOrder {
		if len(selected) > 0 && !selected[name] {
			continue
		}
		if allowContinue && s.viewExists(ctx, name) {
			continue
		}
		if err := s.db.WithContext(ctx).Exec(readonlyViews[name]).Error; err != nil {
			return fmt.Errorf("build readonly view %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQL) viewExists(ctx context.Context, name string) bool {
	var n int64
	err := s.db.WithContext(ctx).
		Raw("SELECT count(*) FROM pg_matviews WHERE schemaname = ? AND matviewname = ?",
			readonlySchema, name).
		Scan(&n).Error
	return err == nil && n > 0
}

// DumpReadonly serializes the readonly schema with pg_dump
func (s *SQL) DumpReadonly(ctx context.Context, spoolDir string) (string, error) {
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	path := filepath.Join(spoolDir,
		fmt.Sprintf("readonly-%s.dump", time.Now().UTC().Format("20060102-150405")))

	cmd := exec.CommandContext(ctx, "pg_dump",
		"--schema="+readonlySchema, "--format=custom", "--file="+path, s.dsn)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pg_dump: %w: %s", err, out)
	}
	return path, nil
}

// LoadDump restores a dump artifact into this database
func (s *SQL) LoadDump(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "pg_restore",
		"--clean", "--if-exists", "--no-owner", "--dbname="+s.dsn, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pg_restore %s: %w: %s", path, err, out)
	}
	return nil
}
