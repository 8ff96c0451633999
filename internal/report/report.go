// Package report accumulates consolidation statistics and per-duplicate
// decisions across a pipeline run.
package report

import "sync"

// Decision records one dedup merge: which candidate survived, which
// were folded into it, and why.
type Decision struct {
	KeptID           string             `json:"kept"`
	RemovedIDs       []string           `json:"removed"`
	Reason           string             `json:"reason"`
	SimilarityScores map[string]float64 `json:"similarity_scores,omitempty"`
}

// Stats summarizes a run's consolidation funnel.
type Stats struct {
	TotalCandidatesExtracted  int `json:"total_candidates_extracted"`
	OverlapDuplicatesRemoved  int `json:"overlap_duplicates_removed"`
	SemanticDuplicatesRemoved int `json:"semantic_duplicates_removed"`
	QualityFiltered           int `json:"quality_filtered"`
	FinalCount                int `json:"final_count"`
}

// Builder collects stats and decisions as stages run. Safe for
// concurrent use; the extraction stage reports from worker goroutines.
type Builder struct {
	mu        sync.Mutex
	stats     Stats
	decisions []Decision
	notes     []string
	degraded  bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddExtracted bumps the extracted-candidate count.
func (b *Builder) AddExtracted(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.TotalCandidatesExtracted += n
}

// RecordExactRemoval notes candidates dropped as verbatim duplicates.
func (b *Builder) RecordExactRemoval(d Decision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.OverlapDuplicatesRemoved += len(d.RemovedIDs)
	b.decisions = append(b.decisions, d)
}

// RecordSemanticRemoval notes candidates merged as near-duplicates.
func (b *Builder) RecordSemanticRemoval(d Decision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.SemanticDuplicatesRemoved += len(d.RemovedIDs)
	b.decisions = append(b.decisions, d)
}

// SetQualityFiltered records how many survivors fell below the quality
// threshold during selection.
func (b *Builder) SetQualityFiltered(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.QualityFiltered = n
}

// SetFinalCount records the size of the selected output set.
func (b *Builder) SetFinalCount(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.FinalCount = n
}

// MarkDegraded flags the run as degraded and attaches a note saying why.
func (b *Builder) MarkDegraded(note string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.degraded = true
	b.notes = append(b.notes, note)
}

// AddNote attaches an informational note without degrading the run.
func (b *Builder) AddNote(note string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = append(b.notes, note)
}

// Stats returns a snapshot of the accumulated counters.
func (b *Builder) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Decisions returns the recorded dedup decisions in insertion order.
func (b *Builder) Decisions() []Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Decision, len(b.decisions))
	copy(out, b.decisions)
	return out
}

// Degraded reports whether any stage fell back to partial behavior.
func (b *Builder) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// Notes returns the accumulated notes in insertion order.
func (b *Builder) Notes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.notes))
	copy(out, b.notes)
	return out
}
