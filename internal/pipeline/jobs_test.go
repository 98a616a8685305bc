package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/edugest/internal/extract"
	"github.com/dgallion1/edugest/internal/store"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusLoading, "loading"},
		{StatusClassifying, "classifying"},
		{StatusSegmenting, "segmenting"},
		{StatusExtracting, "extracting"},
		{StatusStoring, "storing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Done(t *testing.T) {
	for _, s := range []JobStatus{StatusCompleted, StatusFailed, StatusPartial} {
		if !s.Done() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	for _, s := range []JobStatus{StatusQueued, StatusLoading, StatusExtracting, StatusStoring} {
		if s.Done() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("section 3 failed")
	job.AddError("section 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "section 3 failed" {
		t.Errorf("expected first error %q, got %q", "section 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_AddSection(t *testing.T) {
	job := &Job{ID: "section-test", UpdatedAt: time.Now()}
	job.SetSections(2, 1)
	job.AddSection(&extract.Result{ChunksProcessed: 3, FailedChunks: 1, Assertions: make([]extract.Assertion, 4)})
	job.AddSection(&extract.Result{ChunksProcessed: 1, Questions: make([]extract.Question, 2)})

	p := job.Snapshot().Progress
	if p.TotalSections != 2 || p.SectionsSkipped != 1 || p.SectionsProcessed != 2 {
		t.Errorf("unexpected section counters: %+v", p)
	}
	if p.ChunksProcessed != 4 || p.FailedChunks != 1 {
		t.Errorf("expected 4 chunks and 1 failure, got %d and %d", p.ChunksProcessed, p.FailedChunks)
	}
	if p.Assertions != 4 || p.Questions != 2 {
		t.Errorf("expected 4 assertions and 2 questions, got %d and %d", p.Assertions, p.Questions)
	}

	// The deduplicated result replaces the running totals.
	job.SetResult(&extract.Result{Assertions: make([]extract.Assertion, 3)})
	if got := job.Snapshot().Progress.Assertions; got != 3 {
		t.Errorf("expected 3 assertions after SetResult, got %d", got)
	}
	job.SetSaved(store.SaveStats{Assertions: 2, Questions: 1, Skipped: 1})
	if got := job.Snapshot().Progress.Stored; got != 3 {
		t.Errorf("expected 3 stored, got %d", got)
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
	job.releaseFile()
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors and warnings slices.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Progress.Warnings == nil {
		t.Error("expected non-nil slices in snapshot")
	}
	if snap.Classification != nil {
		t.Error("expected no classification before it is set")
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("notes.md", []byte("# Cells"))
	if len(job.ID) != 26 {
		t.Errorf("expected 26-char ULID, got %q", job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected queued, got %q", job.Status)
	}
	next := NewJob("notes.md", []byte("# Cells"))
	if next.ID == job.ID {
		t.Error("expected distinct job ids")
	}
	if next.ContentHash != job.ContentHash {
		t.Error("expected identical content hashes for identical bytes")
	}
}

func TestSourceIDFor(t *testing.T) {
	id := SourceIDFor([]byte("hello world"))
	if id != "src-b94d27b9934d3e08" {
		t.Errorf("unexpected source id %q", id)
	}
	if !strings.HasPrefix(SourceIDFor(nil), "src-") {
		t.Error("expected src- prefix")
	}
}

func TestMemoryTracker_CreateGet(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	tracker.Create(job)

	got := tracker.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestMemoryTracker_GetMissing(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour)
	if tracker.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestMemoryTracker_Update(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour)
	tracker.Create(&Job{ID: "u-1"})
	if !tracker.Update("u-1", func(j *Job) { j.SetStatus(StatusFailed, "cancelled") }) {
		t.Fatal("expected update to find the job")
	}
	if tracker.Get("u-1").Snapshot().Status != StatusFailed {
		t.Error("expected update to apply")
	}
	if tracker.Update("missing", func(*Job) {}) {
		t.Error("expected update of a missing job to report false")
	}
}

func TestMemoryTracker_SweepExpired(t *testing.T) {
	tracker := NewMemoryTracker(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	running := &Job{ID: "running", Status: StatusExtracting, UpdatedAt: time.Now()}
	tracker.Create(expired)
	tracker.Create(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", Status: StatusCompleted, UpdatedAt: time.Now()}
	tracker.Create(fresh)

	if n := tracker.SweepExpired(); n != 1 {
		t.Errorf("expected 1 job swept, got %d", n)
	}
	if tracker.Get("old") != nil {
		t.Error("expected expired job to be swept")
	}
	if tracker.Get("running") == nil {
		t.Error("expected running job to survive the sweep")
	}
	if tracker.Get("new") == nil {
		t.Error("expected fresh job to survive the sweep")
	}
}

func TestMemoryTracker_SweepEmpty(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour)
	// Should not panic on an empty tracker.
	tracker.SweepExpired()
}
