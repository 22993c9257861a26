// Package snapshot regenerates the readonly copy of the store and swaps
// it in behind a serving-layer redirect. The refresh is modeled as an
// explicit state machine; the redirect applied before loading is
// guaranteed to be reverted on every exit path after it was applied.
package snapshot

import (
	"context"
	"fmt"
	"os"

	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/store"
)

// EnvReadonlyOverride is the serving-layer variable that, when set,
// points reads at the principal database instead of the readonly copy.
const EnvReadonlyOverride = "KBSYNC_RO_OVERRIDE"

// State is one phase of the refresh cycle
type State string

const (
	StateIdle        State = "idle"
	StateBuilding    State = "building"
	StateDumping     State = "dumping"
	StateCuttingOver State = "cutting_over"
	StateLoading     State = "loading"
	StateRestoring   State = "restoring"
	StateFailed      State = "failed"
)

// Redirector points the serving layer's environment somewhere else.
// Passing an empty map clears the override.
type Redirector interface {
	SetEnvironment(ctx context.Context, vars map[string]string) error
}

// Uploader transfers the dump artifact to durable storage
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Options selects what one refresh cycle builds
type Options struct {
	Views          []string // Subset of readonly views to build; nil means all
	AllowContinue  bool     // Resume atop a partially built schema
	DeleteExisting bool     // Drop a pre-existing readonly schema first
	SpoolDir       string   // Where the dump artifact lands locally
}

// Cycle runs one snapshot refresh. Only one cycle may be in flight at a
// time: the redirect is a single global toggle on the serving layer.
type Cycle struct {
	principal store.Principal
	readonly  store.Readonly
	redirect  Redirector
	uploader  Uploader // optional; nil skips the artifact transfer
	log       *logging.Logger
	state     State
}

// New creates a refresh cycle
func New(principal store.Principal, readonly store.Readonly, redirect Redirector, uploader Uploader, log *logging.Logger) *Cycle {
	return &Cycle{
		principal: principal,
		readonly:  readonly,
		redirect:  redirect,
		uploader:  uploader,
		log:       log.With("component", "snapshot"),
		state:     StateIdle,
	}
}

// State reports the cycle's current phase
func (c *Cycle) State() State { return c.state }

// Run executes BUILDING -> DUMPING -> CUTTING_OVER -> LOADING ->
// RESTORING. Failures before cutover abort with the serving layer
// untouched; a load failure still restores the redirect before the
// error propagates. The temporary readonly schema on the principal is
// dropped only after confirmed success, preserving forensic state on
// failure.
func (c *Cycle) Run(ctx context.Context, opts Options) error {
	c.enter(StateBuilding)
	if opts.DeleteExisting {
		if err := c.dropExistingSchema(ctx); err != nil {
			return c.fail(err)
		}
	}
	if err := c.principal.GenerateReadonly(ctx, opts.Views, opts.AllowContinue); err != nil {
		return c.fail(fmt.Errorf("generate readonly schema: %w", err))
	}

	c.enter(StateDumping)
	artifact, err := c.principal.DumpReadonly(ctx, opts.SpoolDir)
	if err != nil {
		return c.fail(fmt.Errorf("dump readonly schema: %w", err))
	}
	c.log.Info("dumped readonly schema", "artifact", artifact)
	if c.uploader != nil {
		remote, err := c.uploader.Upload(ctx, artifact)
		if err != nil {
			return c.fail(fmt.Errorf("upload artifact: %w", err))
		}
		c.log.Info("uploaded artifact", "location", remote)
	}

	c.enter(StateCuttingOver)
	vars := map[string]string{EnvReadonlyOverride: c.principal.URL()}
	if err := c.redirect.SetEnvironment(ctx, vars); err != nil {
		return c.fail(fmt.Errorf("apply serving redirect: %w", err))
	}

	c.enter(StateLoading)
	loadErr := c.readonly.LoadDump(ctx, artifact)

	c.enter(StateRestoring)
	restoreErr := c.redirect.SetEnvironment(ctx, map[string]string{})

	if loadErr != nil {
		if restoreErr != nil {
			// The serving layer is left redirected at the principal, which
			// still serves correct data; flag it loudly for the operator.
			c.log.Error("redirect restore failed after load failure", "error", restoreErr)
		}
		return c.fail(fmt.Errorf("load dump: %w", loadErr))
	}
	if restoreErr != nil {
		return c.fail(fmt.Errorf("restore serving redirect: %w", restoreErr))
	}

	// Confirmed success: the principal no longer needs the temporary
	// schema, and the local artifact has been transferred.
	if err := c.principal.DropSchema(ctx, "readonly"); err != nil {
		return c.fail(fmt.Errorf("drop temporary schema: %w", err))
	}
	if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
		c.log.Warn("could not remove local artifact", "path", artifact, "error", err)
	}

	c.enter(StateIdle)
	c.log.Info("snapshot refresh complete")
	return nil
}

func (c *Cycle) dropExistingSchema(ctx context.Context) error {
	schemas, err := c.principal.Schemas(ctx)
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}
	for _, name := range schemas {
		if name == "readonly" {
			c.log.Info("dropping pre-existing readonly schema")
			if err := c.principal.DropSchema(ctx, "readonly"); err != nil {
				return fmt.Errorf("drop existing schema: %w", err)
			}
			return nil
		}
	}
	return nil
}

func (c *Cycle) enter(s State) {
	c.state = s
	c.log.Info("state transition", "state", string(s))
}

func (c *Cycle) fail(err error) error {
	c.state = StateFailed
	c.log.Error("snapshot refresh failed", "error", err)
	return err
}
