package dedup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stratum/internal/logging"
	"stratum/internal/state"
)

// Resolver allocates output names for content hashes. All table access goes
// through a single mutex shared by every worker.
type Resolver struct {
	mu         sync.Mutex
	outputRoot string
	st         *state.State
	bound      map[string]struct{}
	logger     *slog.Logger
}

// NewResolver wraps the hash and counter tables of st. outputRoot is where
// candidate names are checked against the filesystem for foreign collisions.
func NewResolver(outputRoot string, st *state.State, logger *slog.Logger) *Resolver {
	bound := make(map[string]struct{}, len(st.Hashes))
	for _, name := range st.Hashes {
		bound[name] = struct{}{}
	}
	return &Resolver{
		outputRoot: outputRoot,
		st:         st,
		bound:      bound,
		logger:     logging.WithComponent(logger, "dedup"),
	}
}

// Resolve returns the output name bound to hash, allocating one when the
// hash is new. duplicate reports whether the hash was already bound, in
// which case the caller must perform no I/O for this artifact.
func (r *Resolver) Resolve(hash, originalBaseName string) (name string, duplicate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.st.Hashes[hash]; ok {
		r.logger.Debug("duplicate content",
			logging.String(logging.FieldArtifact, originalBaseName),
			logging.String(logging.FieldOutput, existing))
		return existing, true
	}

	ext := filepath.Ext(originalBaseName)
	stem := strings.TrimSuffix(originalBaseName, ext)
	ext = strings.ToLower(ext)

	// The counter records the last issued suffix for this base name; -1
	// makes the first allocation produce the bare name.
	if _, ok := r.st.Counters[stem]; !ok {
		r.st.Counters[stem] = -1
	}

	for {
		r.st.Counters[stem]++
		candidate := r.candidateName(stem, ext, r.st.Counters[stem])
		if r.candidateFree(candidate) {
			r.st.Hashes[hash] = candidate
			r.bound[candidate] = struct{}{}
			return candidate, false
		}
		r.logger.Debug("skipping foreign name collision",
			logging.String(logging.FieldOutput, candidate))
	}
}

// Release drops the binding for hash so a later run can retry the artifact.
// The suffix counter stays advanced; the released candidate is never
// re-issued, the retry simply allocates the next free name. Unbound hashes
// are a no-op.
func (r *Resolver) Release(hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.st.Hashes[hash]
	if !ok {
		return
	}
	delete(r.st.Hashes, hash)
	delete(r.bound, name)
}

func (r *Resolver) candidateName(stem, ext string, suffix int) string {
	if suffix == 0 {
		return stem + ext
	}
	return fmt.Sprintf("%s-%d%s", stem, suffix, ext)
}

// candidateFree reports whether candidate may be bound: either nothing with
// that name (or its derived archive name) exists under the output root, or
// whatever exists was placed there by this pipeline in a previous run.
func (r *Resolver) candidateFree(candidate string) bool {
	if _, ours := r.bound[candidate]; ours {
		return true
	}
	if r.existsOnDisk(candidate) {
		return false
	}
	stem := strings.TrimSuffix(candidate, filepath.Ext(candidate))
	return !r.existsOnDisk(stem + ".zip")
}

func (r *Resolver) existsOnDisk(name string) bool {
	_, err := os.Stat(filepath.Join(r.outputRoot, name))
	return err == nil
}

// Checkpoint persists st through save while holding the table lock, so a
// concurrent Resolve can never tear the serialized tables.
func (r *Resolver) Checkpoint(save func(*state.State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return save(r.st)
}
