package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/extract"
	"github.com/dgallion1/edugest/internal/store"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusLoading     JobStatus = "loading"
	StatusClassifying JobStatus = "classifying"
	StatusSegmenting  JobStatus = "segmenting"
	StatusExtracting  JobStatus = "extracting"
	StatusStoring     JobStatus = "storing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	SourceID string `json:"source_id"`
	Domain   string `json:"domain,omitempty"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	DeclaredType  string `json:"declared_type,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	Focus         string `json:"focus,omitempty"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData       []byte
	classification *classify.Classification
	result         *extract.Result
	saved          store.SaveStats
	errors         []string
	warnings       []string
}

// Progress counters, readable while the job runs.
type Progress struct {
	TotalSections     int      `json:"total_sections"`
	SectionsProcessed int      `json:"sections_processed"`
	SectionsSkipped   int      `json:"sections_skipped"`
	ChunksProcessed   int      `json:"chunks_processed"`
	FailedChunks      int      `json:"failed_chunks"`
	Assertions        int      `json:"assertions"`
	Questions         int      `json:"questions"`
	Vocabulary        int      `json:"vocabulary"`
	Stored            int      `json:"stored"`
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
}

// NewJob creates a queued job with a fresh ULID.
func NewJob(filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          NewJobID(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// NewJobID returns a lexically sortable job id.
func NewJobID() string {
	return ulid.Make().String()
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddWarnings records degrade-path warnings.
func (j *Job) AddWarnings(ws ...string) {
	if len(ws) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.warnings = append(j.warnings, ws...)
	j.Progress.Warnings = j.warnings
	j.UpdatedAt = time.Now()
}

// SetSections records how many sections will be extracted and how many the
// filter skipped.
func (j *Job) SetSections(total, skipped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalSections = total
	j.Progress.SectionsSkipped = skipped
	j.UpdatedAt = time.Now()
}

// AddSection folds one section's extraction counts into the progress.
func (j *Job) AddSection(r *extract.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsProcessed++
	j.Progress.ChunksProcessed += r.ChunksProcessed
	j.Progress.FailedChunks += r.FailedChunks
	j.Progress.Assertions += len(r.Assertions)
	j.Progress.Questions += len(r.Questions)
	j.Progress.Vocabulary += len(r.Vocabulary)
	j.UpdatedAt = time.Now()
}

// SetResult stores the deduplicated run result and resets the item counters
// to match it.
func (j *Job) SetResult(r *extract.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = r
	j.Progress.Assertions = len(r.Assertions)
	j.Progress.Questions = len(r.Questions)
	j.Progress.Vocabulary = len(r.Vocabulary)
	j.UpdatedAt = time.Now()
}

// Result returns the run result, nil until extraction finishes.
func (j *Job) Result() *extract.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) SetSaved(s store.SaveStats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.saved = s
	j.Progress.Stored = s.Assertions + s.Questions + s.Vocabulary
	j.UpdatedAt = time.Now()
}

func (j *Job) SetClassification(c classify.Classification) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.classification = &c
	j.UpdatedAt = time.Now()
}

// Classification returns the document classification, nil until known.
func (j *Job) Classification() *classify.Classification {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.classification == nil {
		return nil
	}
	c := *j.classification
	return &c
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFile drops the upload once it has been decoded.
func (j *Job) releaseFile() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID             string                   `json:"job_id"`
	SourceID       string                   `json:"source_id"`
	Domain         string                   `json:"domain,omitempty"`
	Status         JobStatus                `json:"status"`
	Phase          string                   `json:"phase"`
	Filename       string                   `json:"filename"`
	Classification *classify.Classification `json:"classification,omitempty"`
	Progress       Progress                 `json:"progress"`
	Saved          store.SaveStats          `json:"saved"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.errors...)
	p.Warnings = append([]string{}, j.warnings...)
	var cls *classify.Classification
	if j.classification != nil {
		c := *j.classification
		cls = &c
	}
	return JobSnapshot{
		ID:             j.ID,
		SourceID:       j.SourceID,
		Domain:         j.Domain,
		Status:         j.Status,
		Phase:          j.Phase,
		Filename:       j.Filename,
		Classification: cls,
		Progress:       p,
		Saved:          j.saved,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

// JobTracker holds job state for status polling. Implementations must be
// safe for concurrent use.
type JobTracker interface {
	Create(job *Job)
	Get(id string) *Job
	Update(id string, fn func(*Job)) bool
	SweepExpired() int
}

// MemoryTracker is a thread-safe in-memory JobTracker with TTL eviction.
type MemoryTracker struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *MemoryTracker) Create(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *MemoryTracker) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Update applies fn to a tracked job and reports whether it was found.
func (s *MemoryTracker) Update(id string, fn func(*Job)) bool {
	job := s.Get(id)
	if job == nil {
		return false
	}
	fn(job)
	return true
}

// SweepExpired removes jobs idle longer than the TTL. Running jobs are kept.
func (s *MemoryTracker) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// SourceIDFor derives a stable source id from upload bytes so re-ingesting
// the same file adds to the same source.
func SourceIDFor(data []byte) string {
	return "src-" + ContentHashHex(data)[:16]
}
