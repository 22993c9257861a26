package kb

import (
	"context"
	"errors"
	"fmt"

	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/model"
	"github.com/bioindex/kbsync/internal/store"
	"github.com/bioindex/kbsync/internal/validate"
)

// ErrNotRegistered is returned by Update when the source has never been
// uploaded. Updating before a first upload is a usage error.
var ErrNotRegistered = errors.New("knowledge base has not yet been registered")

// Manager runs one source end to end against the store
type Manager struct {
	src Source
	log *logging.Logger
}

// NewManager creates a manager for one source
func NewManager(src Source, log *logging.Logger) *Manager {
	return &Manager{src: src, log: log.With("source", src.ShortName())}
}

// Upload performs the initial full load: register the source (creating
// the registration if needed), fetch, validate everything, then persist
// the whole batch. Validation failure aborts before any row is written.
func (m *Manager) Upload(ctx context.Context, st store.Store) error {
	regID, err := m.ensureRegistration(ctx, st, true)
	if err != nil {
		return err
	}

	stmts, err := m.src.Statements(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", m.src.ShortName(), err)
	}
	m.log.Info("fetched statements", "count", len(stmts))

	for _, s := range stmts {
		if err := validate.AssertValid(s); err != nil {
			return fmt.Errorf("upload %s aborted: %w", m.src.ShortName(), err)
		}
	}

	if err := st.InsertStatements(ctx, regID, stmts); err != nil {
		return err
	}
	m.log.Info("upload complete", "persisted", len(stmts))
	return nil
}

// Update adds statements that appeared upstream since the last run. The
// upstream set is re-fetched in full and diffed against the persisted
// (content hash, source hash) pairs; nothing is ever deleted, so the
// stored set only grows. Running Update twice in a row persists nothing
// the second time.
func (m *Manager) Update(ctx context.Context, st store.Store) error {
	regID, err := m.ensureRegistration(ctx, st, false)
	if err != nil {
		return err
	}

	existing, err := st.ExistingKeys(ctx, regID)
	if err != nil {
		return err
	}

	stmts, err := m.src.Statements(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", m.src.ShortName(), err)
	}

	fresh := make([]*model.Statement, 0, len(stmts))
	for _, s := range stmts {
		if _, seen := existing[s.Key()]; !seen {
			fresh = append(fresh, s)
		}
	}
	m.log.Info("filtered against existing keys",
		"fetched", len(stmts), "existing", len(existing), "new", len(fresh))

	if err := st.InsertStatements(ctx, regID, fresh); err != nil {
		return err
	}
	m.log.Info("update complete", "persisted", len(fresh))
	return nil
}

// ensureRegistration resolves the source's registration. When absent and
// canCreate is set, it is created; when absent otherwise,
// ErrNotRegistered is returned with no side effect. A drifted source_api
// on an existing registration is overwritten; failing to persist that
// overwrite is fatal to the caller.
func (m *Manager) ensureRegistration(ctx context.Context, st store.Store, canCreate bool) (int64, error) {
	reg, err := st.RegistrationByName(ctx, m.src.ShortName())
	if errors.Is(err, store.ErrNotFound) {
		if !canCreate {
			return 0, fmt.Errorf("%s: %w", m.src.ShortName(), ErrNotRegistered)
		}
		id, err := st.InsertRegistration(ctx, &store.Registration{
			DBName:    m.src.ShortName(),
			SourceAPI: m.src.SourceAPI(),
			FullName:  m.src.FullName(),
		})
		if err != nil {
			return 0, err
		}
		m.log.Info("registered knowledge base", "registration_id", id)
		return id, nil
	}
	if err != nil {
		return 0, err
	}

	if reg.SourceAPI != m.src.SourceAPI() {
		if err := st.SetRegistrationSource(ctx, reg.ID, m.src.SourceAPI()); err != nil {
			return 0, fmt.Errorf("could not update source_api for %s: %w", reg.DBName, err)
		}
		m.log.Warn("source_api drifted, overwrote",
			"old", reg.SourceAPI, "new", m.src.SourceAPI())
	}
	return reg.ID, nil
}
