// Package pipeline runs one weave of a module document: load, rewrite, sign,
// save and record. It is the build-step harness around package weave.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"varweave/internal/config"
	"varweave/internal/ledger"
	"varweave/internal/logging"
	"varweave/internal/metadata"
	"varweave/internal/modfile"
	"varweave/internal/signing"
	"varweave/internal/weave"
)

// Task holds what every run shares. Ledger may be nil.
type Task struct {
	Config *config.Config
	Logger *zap.Logger
	Ledger *ledger.Store
}

// Request names one run's input and output. An empty Output rewrites the
// input in place.
type Request struct {
	Input  string
	Output string
	DryRun bool
}

// Outcome describes a finished run.
type Outcome struct {
	RunID        string
	Input        string
	Output       string
	Changed      bool
	Written      bool
	Signed       bool
	Patched      int
	Warnings     int
	Errors       int
	Events       []weave.Event
	InputDigest  []byte
	OutputDigest []byte
	Duration     time.Duration
}

// HasErrors reports whether the rewrite logged error diagnostics.
func (o *Outcome) HasErrors() bool { return o != nil && o.Errors > 0 }

// Run executes one weave. A nil Config means the defaults.
func (t *Task) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	cfg := t.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := t.Logger
	if log == nil {
		log = logging.Get(logging.CategoryWeave)
	}
	if req.Input == "" {
		return nil, errors.New("no input module")
	}

	out := &Outcome{Input: req.Input, Output: req.Output}
	if out.Output == "" {
		out.Output = req.Input
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := modfile.Load(req.Input)
	if err != nil {
		return nil, err
	}
	if out.InputDigest, err = modfile.Digest(m); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := &weave.Recorder{}
	out.Changed, err = weave.Rewrite(m, weave.Options{
		Names: weave.MarkerNames{
			Covariant:     cfg.Markers.Covariant,
			Contravariant: cfg.Markers.Contravariant,
		},
		Sink: weave.MultiSink(rec, logging.NewSink(log)),
	})
	out.Events = rec.Events()
	out.Patched = rec.Patched()
	out.Warnings = rec.Count(weave.SeverityWarning)
	out.Errors = rec.Count(weave.SeverityError)
	if err != nil {
		return out, fmt.Errorf("weave %s: %w", req.Input, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if out.Changed && cfg.Signing.Enabled {
		if out.Signed, err = sign(cfg.Signing, m, log); err != nil {
			return out, err
		}
	}

	write := out.Changed || !samePath(req.Input, out.Output)
	if write && !req.DryRun {
		if err := modfile.Save(out.Output, m); err != nil {
			return out, err
		}
		out.Written = true
	}
	if out.OutputDigest, err = modfile.Digest(m); err != nil {
		return out, err
	}
	out.Duration = time.Since(start)

	log.Info("weave finished",
		zap.String("input", req.Input),
		zap.String("output", out.Output),
		zap.Bool("changed", out.Changed),
		zap.Bool("written", out.Written),
		zap.Bool("signed", out.Signed),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("patched", out.Patched),
		zap.Duration("took", out.Duration))

	t.record(ctx, out, req.DryRun, start, log)
	return out, nil
}

func sign(c config.SigningConfig, m *metadata.Module, log *zap.Logger) (bool, error) {
	path, err := signing.FindKeyFile(c, m)
	if err != nil {
		return false, err
	}
	if path == "" {
		log.Warn("signing enabled but no key file is configured or named by the module",
			zap.String("module", m.Name))
		return false, nil
	}
	key, err := signing.LoadKey(path)
	if err != nil {
		return false, err
	}
	if err := signing.Sign(m, key); err != nil {
		return false, err
	}
	return key.CanSign(), nil
}

// record stores the run in the ledger. Ledger failures are logged, not
// returned: the module itself was produced.
func (t *Task) record(ctx context.Context, out *Outcome, dryRun bool, start time.Time, log *zap.Logger) {
	if t.Ledger == nil {
		return
	}
	run := &ledger.Run{
		Input:        out.Input,
		Output:       out.Output,
		InputDigest:  out.InputDigest,
		OutputDigest: out.OutputDigest,
		Changed:      out.Changed,
		Patched:      out.Patched,
		Warnings:     out.Warnings,
		Errors:       out.Errors,
		Signed:       out.Signed,
		DryRun:       dryRun,
		Duration:     out.Duration,
		StartedAt:    start,
	}
	if err := t.Ledger.Record(ctx, run); err != nil {
		log.Warn("failed to record run", zap.Error(err))
		return
	}
	out.RunID = run.ID
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
