package worker

import (
	"context"
	"fmt"

	"github.com/bioindex/kbsync/internal/kb"
	"github.com/bioindex/kbsync/internal/logging"
	"github.com/bioindex/kbsync/internal/store"
)

// Mode selects the manager operation a batch run performs
type Mode string

const (
	ModeUpload Mode = "upload"
	ModeUpdate Mode = "update"
)

// ParseMode validates a mode string from the command line
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUpload, ModeUpdate:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode: %s", s)
	}
}

// IngestJob runs one source's manager in the requested mode
type IngestJob struct {
	Manager *kb.Manager
	Source  string
	Mode    Mode
	Store   store.Store
}

// Execute runs the job
func (j *IngestJob) Execute(ctx context.Context) Result {
	var err error
	switch j.Mode {
	case ModeUpload:
		err = j.Manager.Upload(ctx, j.Store)
	case ModeUpdate:
		err = j.Manager.Update(ctx, j.Store)
	default:
		err = fmt.Errorf("invalid mode: %s", j.Mode)
	}
	return &IngestResult{Source: j.Source, Mode: j.Mode, Err: err}
}

// IngestResult is the outcome of one source's run
type IngestResult struct {
	Source string
	Mode   Mode
	Err    error
}

// GetError returns the job's error, nil on success
func (r *IngestResult) GetError() error { return r.Err }

// RunBatch runs every source through the pool. Failures are collected
// per source and reported together; one failing source never stops the
// others.
func RunBatch(ctx context.Context, sources []kb.Source, mode Mode, st store.Store, concurrency int, log *logging.Logger) []*IngestResult {
	pool := NewPool(ctx, concurrency)
	pool.Start()

	for _, src := range sources {
		pool.Submit(&IngestJob{
			Manager: kb.NewManager(src, log),
			Source:  src.ShortName(),
			Mode:    mode,
			Store:   st,
		})
	}

	raw := pool.Wait()
	results := make([]*IngestResult, 0, len(raw))
	for _, r := range raw {
		res := r.(*IngestResult)
		if res.Err != nil {
			log.Error("source run failed", "source", res.Source, "mode", string(res.Mode), "error", res.Err)
		} else {
			log.Info("source run finished", "source", res.Source, "mode", string(res.Mode))
		}
		results = append(results, res)
	}
	return results
}
