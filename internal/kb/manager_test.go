package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/bioindex/kbsync/internal/distill"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
	"github.com/bioindex/kbsync/internal/store"
)

// fakeStore is an in-memory store.Store
type fakeStore struct {
	regs        map[string]*store.Registration
	nextID      int64
	rows        map[int64][]*model.Statement
	sourceSets  int
	insertCalls int
	failInsert  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		regs:   make(map[string]*store.Registration),
		rows:   make(map[int64][]*model.Statement),
		nextID: 1,
	}
}

func (f *fakeStore) RegistrationByName(_ context.Context, name string) (*store.Registration, error) {
	if reg, ok := f.regs[name]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) InsertRegistration(_ context.Context, reg *store.Registration) (int64, error) {
	reg.ID = f.nextID
	f.nextID++
	f.regs[reg.DBName] = reg
	return reg.ID, nil
}

func (f *fakeStore) SetRegistrationSource(_ context.Context, id int64, sourceAPI string) error {
	f.sourceSets++
	for _, reg := range f.regs {
		if reg.ID == id {
			reg.SourceAPI = sourceAPI
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ExistingKeys(_ context.Context, regID int64) (map[model.StatementKey]struct{}, error) {
	keys := make(map[model.StatementKey]struct{})
	for _, s := range f.rows[regID] {
		keys[s.Key()] = struct{}{}
	}
	return keys, nil
}

func (f *fakeStore) InsertStatements(_ context.Context, regID int64, stmts []*model.Statement) error {
	f.insertCalls++
	if f.failInsert != nil {
		return f.failInsert
	}
	f.rows[regID] = append(f.rows[regID], stmts...)
	return nil
}

// fakeSource serves a scripted statement set, normalizing like a real
// adapter would
type fakeSource struct {
	short, full, api string
	stmts            []*model.Statement
	fetchErr         error
	fetches          int
}

func (s *fakeSource) ShortName() string { return s.short }
func (s *fakeSource) FullName() string  { return s.full }
func (s *fakeSource) SourceAPI() string { return s.api }

func (s *fakeSource) Statements(context.Context) ([]*model.Statement, error) {
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	unique, _ := distill.ExtractDuplicates(distill.ExpandEvidence(s.stmts), distill.KeyContentAndSource)
	return unique, nil
}

func validStmt(a, b, sourceID string) *model.Statement {
	return &model.Statement{
		Type:     model.TypeActivation,
		Agents:   []model.Agent{{Name: a}, {Name: b}},
		Evidence: []model.Evidence{{SourceAPI: "test", SourceID: sourceID}},
	}
}

func TestUpload_RegistersAndPersists(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{short: "tas", full: "TAS", api: "tas",
		stmts: []*model.Statement{validStmt("A", "B", "1"), validStmt("C", "D", "2")}}
	m := NewManager(src, logging.Nop())

	if err := m.Upload(context.Background(), st); err != nil {
		t.Fatalf("upload: %v", err)
	}

	reg, ok := st.regs["tas"]
	if !ok {
		t.Fatal("registration not created")
	}
	if got := len(st.rows[reg.ID]); got != 2 {
		t.Errorf("expected 2 persisted statements, got %d", got)
	}
}

func TestUpload_InvalidStatementAbortsBeforePersist(t *testing.T) {
	st := newFakeStore()
	bad := &model.Statement{Type: "nonsense", Agents: []model.Agent{{Name: "A"}},
		Evidence: []model.Evidence{{SourceAPI: "test"}}}
	src := &fakeSource{short: "cbn", full: "Causal Bionet", api: "bel",
		stmts: []*model.Statement{validStmt("A", "B", "1"), bad}}
	m := NewManager(src, logging.Nop())

	err := m.Upload(context.Background(), st)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if st.insertCalls != 0 {
		t.Error("insert was attempted despite invalid statement")
	}
	for _, rows := range st.rows {
		if len(rows) != 0 {
			t.Error("rows persisted despite validation failure")
		}
	}
}

func TestUpload_FetchFailureIsFatal(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{short: "hprd", full: "HPRD", api: "hprd",
		fetchErr: errors.New("upstream down")}
	m := NewManager(src, logging.Nop())

	if err := m.Upload(context.Background(), st); err == nil {
		t.Fatal("expected fetch error")
	}
	if st.insertCalls != 0 {
		t.Error("insert attempted after fetch failure")
	}
}

func TestUpdate_BeforeUploadIsUsageError(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{short: "signor", full: "Signor", api: "signor",
		stmts: []*model.Statement{validStmt("A", "B", "1")}}
	m := NewManager(src, logging.Nop())

	err := m.Update(context.Background(), st)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if len(st.regs) != 0 {
		t.Error("update must not create a registration")
	}
	if src.fetches != 0 {
		t.Error("update must not fetch before confirming registration")
	}
}

func TestUpdate_FiltersExistingKeys(t *testing.T) {
	st := newFakeStore()
	s1 := validStmt("A", "B", "1")
	s2 := validStmt("C", "D", "2")
	src := &fakeSource{short: "trrust", full: "TRRUST", api: "trrust",
		stmts: []*model.Statement{s1}}
	m := NewManager(src, logging.Nop())

	if err := m.Upload(context.Background(), st); err != nil {
		t.Fatalf("upload: %v", err)
	}

	// Upstream grows by one statement; update persists exactly the new one
	src.stmts = []*model.Statement{s1, s2}
	if err := m.Update(context.Background(), st); err != nil {
		t.Fatalf("update: %v", err)
	}

	regID := st.regs["trrust"].ID
	if got := len(st.rows[regID]); got != 2 {
		t.Fatalf("expected 2 persisted statements, got %d", got)
	}
	found := false
	for _, s := range st.rows[regID] {
		if s.Key() == s2.Key() {
			found = true
		}
	}
	if !found {
		t.Error("the new statement was not persisted")
	}
}

func TestUpdate_Idempotent(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{short: "pe", full: "Phospho.ELM", api: "phosphoelm",
		stmts: []*model.Statement{validStmt("A", "B", "1"), validStmt("C", "D", "2")}}
	m := NewManager(src, logging.Nop())

	if err := m.Upload(context.Background(), st); err != nil {
		t.Fatalf("upload: %v", err)
	}
	regID := st.regs["pe"].ID
	before := len(st.rows[regID])

	if err := m.Update(context.Background(), st); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := m.Update(context.Background(), st); err != nil {
		t.Fatalf("second update: %v", err)
	}

	if got := len(st.rows[regID]); got != before {
		t.Errorf("updates with no upstream change persisted rows: %d -> %d", before, got)
	}
}

func TestEnsureRegistration_StableAndDriftAware(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{short: "dgi", full: "DGI", api: "dgi",
		stmts: []*model.Statement{validStmt("A", "B", "1")}}
	m := NewManager(src, logging.Nop())
	ctx := context.Background()

	id1, err := m.ensureRegistration(ctx, st, true)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	id2, err := m.ensureRegistration(ctx, st, true)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if id1 != id2 {
		t.Errorf("registration id changed: %d -> %d", id1, id2)
	}
	if st.sourceSets != 0 {
		t.Errorf("no metadata write expected with unchanged source, got %d", st.sourceSets)
	}

	// A changed source_api is written through
	src.api = "dgi_v5"
	id3, err := m.ensureRegistration(ctx, st, false)
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if id3 != id1 {
		t.Errorf("drift must not change identity: %d -> %d", id1, id3)
	}
	if st.sourceSets != 1 {
		t.Errorf("expected exactly one metadata write, got %d", st.sourceSets)
	}
	if st.regs["dgi"].SourceAPI != "dgi_v5" {
		t.Errorf("stored source_api = %s", st.regs["dgi"].SourceAPI)
	}
}

func TestUpload_PersistFailureIsFatal(t *testing.T) {
	st := newFakeStore()
	st.failInsert = errors.New("connection lost")
	src := &fakeSource{short: "vhn", full: "VirHostNet", api: "virhostnet",
		stmts: []*model.Statement{validStmt("A", "B", "1")}}
	m := NewManager(src, logging.Nop())

	if err := m.Upload(context.Background(), st); err == nil {
		t.Fatal("expected persistence error to propagate")
	}
}

// Adapter returns 3 raw statements, one with two evidence records and a
// hash collision with another: 4 after expansion, 3 after dedup, 3
// persisted.
func TestUpload_EndToEndNormalization(t *testing.T) {
	shared := model.Evidence{SourceAPI: "test", SourceID: "rec-9"}
	raw := []*model.Statement{
		{
			Type:   model.TypeActivation,
			Agents: []model.Agent{{Name: "A"}, {Name: "B"}},
			Evidence: []model.Evidence{
				{SourceAPI: "test", SourceID: "rec-1"}, shared,
			},
		},
		{
			Type:     model.TypeActivation,
			Agents:   []model.Agent{{Name: "A"}, {Name: "B"}},
			Evidence: []model.Evidence{shared},
		},
		{
			Type:     model.TypeInhibition,
			Agents:   []model.Agent{{Name: "C"}, {Name: "D"}},
			Evidence: []model.Evidence{{SourceAPI: "test", SourceID: "rec-2"}},
		},
	}

	st := newFakeStore()
	src := &fakeSource{short: "ctd", full: "CTD", api: "ctd", stmts: raw}
	m := NewManager(src, logging.Nop())

	if err := m.Upload(context.Background(), st); err != nil {
		t.Fatalf("upload: %v", err)
	}
	regID := st.regs["ctd"].ID
	if got := len(st.rows[regID]); got != 3 {
		t.Errorf("expected 3 persisted statements, got %d", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &fakeSource{short: "a"}
	b := &fakeSource{short: "b"}
	if err := r.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := r.Register(&fakeSource{short: "a"}); err == nil {
		t.Error("duplicate registration should fail")
	}

	if got, ok := r.Get("b"); !ok || got != b {
		t.Error("lookup by short name failed")
	}
	all := r.All()
	if len(all) != 2 || all[0] != a || all[1] != b {
		t.Error("All should preserve registration order")
	}
}
