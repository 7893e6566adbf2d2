package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"stratum/internal/dedup"
	"stratum/internal/fileutil"
	"stratum/internal/journal"
	"stratum/internal/logging"
	"stratum/internal/packager"
	"stratum/internal/state"
)

// Stats aggregates the outcome of one batch.
type Stats struct {
	Found      int
	Succeeded  int
	Duplicates int
	Skipped    int
	Failed     int
}

// Options tunes a Runner.
type Options struct {
	OutputRoot string
	// Workers is the pool size; values below 1 select DefaultWorkers().
	Workers int
	// CheckpointInterval is the number of completions between state saves
	// in pooled mode. Single-worker mode checkpoints after every artifact.
	CheckpointInterval int
	// CopySource preserves the original artifact: copied to the output
	// root in single-worker mode, embedded in the archive in pooled mode.
	CopySource bool
	// RunID tags journal records; ignored when no journal is attached.
	RunID string
}

// DefaultWorkers reserves one CPU of headroom for the host system.
func DefaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// Runner executes one batch over the shared dedup and state tables.
type Runner struct {
	store    *state.Store
	st       *state.State
	resolver *dedup.Resolver
	packager *packager.Packager
	journal  *journal.Journal
	logger   *slog.Logger
	opts     Options
}

// NewRunner wires a coordinator. jnl may be nil to disable run recording.
func NewRunner(store *state.Store, st *state.State, resolver *dedup.Resolver, pkg *packager.Packager, jnl *journal.Journal, logger *slog.Logger, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers()
	}
	if opts.CheckpointInterval < 1 {
		opts.CheckpointInterval = 10
	}
	return &Runner{
		store:    store,
		st:       st,
		resolver: resolver,
		packager: pkg,
		journal:  jnl,
		logger:   logging.WithComponent(logger, "pipeline"),
		opts:     opts,
	}
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeDuplicate
	outcomeFailed
)

type taskResult struct {
	path       string
	hash       string
	outputName string
	layerCount int
	outcome    outcome
	err        error
}

// Run processes artifacts and returns aggregate counts. Artifacts already in
// the processed set are skipped without dispatch. The method blocks until
// every dispatched task has completed.
func (r *Runner) Run(ctx context.Context, artifacts []string) Stats {
	stats := Stats{Found: len(artifacts)}

	pending := make([]string, 0, len(artifacts))
	for _, path := range artifacts {
		if r.st.IsProcessed(path) {
			stats.Skipped++
			continue
		}
		pending = append(pending, path)
	}
	if stats.Skipped > 0 {
		r.logger.Info("skipping previously processed artifacts",
			logging.Int("skipped_count", stats.Skipped))
	}
	if len(pending) == 0 {
		r.checkpoint()
		return stats
	}

	// Mode follows the configured pool size, not the batch size: a pooled
	// run over a short batch still embeds source copies in the archives.
	single := r.opts.Workers == 1
	workers := r.opts.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	checkpointEvery := r.opts.CheckpointInterval
	if single {
		checkpointEvery = 1
	}

	r.logger.Info("dispatching batch",
		logging.Int("pending_count", len(pending)),
		logging.Int("workers", workers))

	work := make(chan string)
	results := make(chan taskResult)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range work {
				results <- r.process(ctx, path, single)
			}
		}()
	}
	go func() {
		for _, path := range pending {
			work <- path
		}
		close(work)
		wg.Wait()
		close(results)
	}()

	// Single collector: the only goroutine that touches the processed set
	// or triggers checkpoints.
	completions := 0
	done := 0
	for res := range results {
		done++
		switch res.outcome {
		case outcomeFailed:
			stats.Failed++
			// Unbind the name so a rerun retries the artifact instead
			// of mistaking its own failed attempt for a duplicate.
			r.resolver.Release(res.hash)
			r.logger.Error("artifact failed",
				logging.String(logging.FieldArtifact, res.path),
				logging.Error(res.err))
		case outcomeDuplicate:
			stats.Duplicates++
			r.st.MarkProcessed(res.path)
			r.logger.Info("duplicate content",
				logging.String(logging.FieldArtifact, filepath.Base(res.path)),
				logging.String(logging.FieldOutput, res.outputName),
				logging.Int("progress", done),
				logging.Int("total", len(pending)))
		case outcomeSucceeded:
			stats.Succeeded++
			r.st.MarkProcessed(res.path)
			r.logger.Info("artifact processed",
				logging.String(logging.FieldArtifact, filepath.Base(res.path)),
				logging.String(logging.FieldOutput, res.outputName),
				logging.Int("layer_count", res.layerCount),
				logging.Int("progress", done),
				logging.Int("total", len(pending)))
		}
		r.record(ctx, res)
		if res.outcome != outcomeFailed {
			completions++
			if completions%checkpointEvery == 0 {
				r.checkpoint()
			}
		}
	}

	r.checkpoint()
	return stats
}

// process handles one artifact end to end. Errors never escape; they are
// converted to a failed outcome at this boundary.
func (r *Runner) process(ctx context.Context, path string, single bool) taskResult {
	hash, err := dedup.HashFile(path)
	if err != nil {
		return taskResult{path: path, outcome: outcomeFailed, err: err}
	}

	name, duplicate := r.resolver.Resolve(hash, filepath.Base(path))
	if duplicate {
		// Confirmed duplicate: no copy, no decode, no archive.
		return taskResult{path: path, hash: hash, outputName: name, outcome: outcomeDuplicate}
	}

	if single && r.opts.CopySource {
		if err := fileutil.CopyFile(path, filepath.Join(r.opts.OutputRoot, name)); err != nil {
			return taskResult{path: path, hash: hash, outputName: name, outcome: outcomeFailed, err: err}
		}
	}

	embed := r.opts.CopySource && !single
	layerCount, err := r.packager.Package(ctx, path, name, embed)
	if err != nil {
		return taskResult{path: path, hash: hash, outputName: name, outcome: outcomeFailed, err: err}
	}
	return taskResult{path: path, hash: hash, outputName: name, layerCount: layerCount, outcome: outcomeSucceeded}
}

func (r *Runner) checkpoint() {
	if err := r.resolver.Checkpoint(r.store.Save); err != nil {
		r.logger.Warn("state checkpoint failed",
			logging.String("path", r.store.Path()),
			logging.Error(err))
	}
}

func (r *Runner) record(ctx context.Context, res taskResult) {
	if r.journal == nil {
		return
	}
	label := journal.OutcomeSucceeded
	switch res.outcome {
	case outcomeDuplicate:
		label = journal.OutcomeDuplicate
	case outcomeFailed:
		label = journal.OutcomeFailed
	}
	if err := r.journal.RecordArtifact(ctx, r.opts.RunID, res.path, label, res.outputName, res.layerCount); err != nil {
		r.logger.Warn("journal write failed", logging.Error(err))
	}
}
