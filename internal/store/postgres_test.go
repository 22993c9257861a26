package store

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bioindex/kbsync/internal/model"
)

func openTestStore(t *testing.T) *SQL {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewSQL(db, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSQL_RegistrationLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.RegistrationByName(ctx, "signor"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	id, err := s.InsertRegistration(ctx, &Registration{
		DBName: "signor", SourceAPI: "signor", FullName: "SIGNOR",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected nonzero id")
	}

	reg, err := s.RegistrationByName(ctx, "signor")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if reg.ID != id || reg.SourceAPI != "signor" {
		t.Errorf("unexpected registration %+v", reg)
	}

	if err := s.SetRegistrationSource(ctx, id, "signor_v2"); err != nil {
		t.Fatalf("set source: %v", err)
	}
	reg, _ = s.RegistrationByName(ctx, "signor")
	if reg.SourceAPI != "signor_v2" {
		t.Errorf("source_api not updated: %s", reg.SourceAPI)
	}

	if err := s.SetRegistrationSource(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestSQL_InsertAndExistingKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRegistration(ctx, &Registration{DBName: "cbn", SourceAPI: "bel"})
	if err != nil {
		t.Fatalf("insert registration: %v", err)
	}

	stmts := []*model.Statement{
		{
			Type:     model.TypeActivation,
			Agents:   []model.Agent{{Name: "A"}, {Name: "B"}},
			Evidence: []model.Evidence{{SourceAPI: "bel", SourceID: "1"}},
		},
		{
			Type:     model.TypeInhibition,
			Agents:   []model.Agent{{Name: "C"}, {Name: "D"}},
			Evidence: []model.Evidence{{SourceAPI: "bel", SourceID: "2"}},
		},
	}
	if err := s.InsertStatements(ctx, id, stmts); err != nil {
		t.Fatalf("insert statements: %v", err)
	}

	keys, err := s.ExistingKeys(ctx, id)
	if err != nil {
		t.Fatalf("existing keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	for _, st := range stmts {
		if _, ok := keys[st.Key()]; !ok {
			t.Errorf("missing key %+v", st.Key())
		}
	}

	// Keys are scoped per registration
	other, _ := s.InsertRegistration(ctx, &Registration{DBName: "hprd", SourceAPI: "hprd"})
	keys, err = s.ExistingKeys(ctx, other)
	if err != nil {
		t.Fatalf("existing keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys for fresh registration, got %d", len(keys))
	}
}

func TestSQL_InsertStatements_Empty(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertStatements(context.Background(), 1, nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}
