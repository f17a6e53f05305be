package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusReading     JobStatus = "reading"
	StatusCleaning    JobStatus = "cleaning"
	StatusStructuring JobStatus = "structuring"
	StatusChunking    JobStatus = "chunking"
	StatusIndexing    JobStatus = "indexing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
	StatusDupSkipped  JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks the state of a single manual ingestion.
type Job struct {
	mu sync.Mutex

	ID       string
	Filename string

	Status   JobStatus
	Phase    string
	Progress Progress

	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress counts what each ingestion phase produced.
type Progress struct {
	Pages         int      `json:"pages"`
	EmptyPages    int      `json:"empty_pages"`
	Sections      int      `json:"sections"`
	TotalChunks   int      `json:"total_chunks"`
	ChunksIndexed int      `json:"chunks_indexed"`
	Tokens        int      `json:"estimated_tokens"`
	Errors        []string `json:"errors"`
}

// NewJob returns a queued job for the given upload.
func NewJob(id, filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
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

// Update applies fn to the progress counters under the job lock.
func (j *Job) Update(fn func(p *Progress)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.Progress)
	j.UpdatedAt = time.Now()
}

// IncrIndexed atomically adds n to the indexed chunk count.
func (j *Job) IncrIndexed(n int) {
	j.Update(func(p *Progress) { p.ChunksIndexed += n })
}

func (j *Job) setContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseData drops the upload once it has been parsed.
func (j *Job) releaseData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.errors...)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction. It
// also remembers which content the index currently holds, so duplicate
// uploads are detected against the live index rather than job history.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration

	// indexed maps content hash to the job that wrote it.
	indexed map[string]string
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs:    make(map[string]*Job),
		ttl:     ttl,
		indexed: make(map[string]string),
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// FindIndexed returns the id of the job whose content with this hash is in
// the index right now, if any.
func (s *JobStore) FindIndexed(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.indexed[hash]
	return id, ok
}

// MarkIndexed records that jobID wrote content with this hash. With replace
// set the index held nothing else afterwards, so earlier entries are dropped.
func (s *JobStore) MarkIndexed(hash, jobID string, replace bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if replace {
		clear(s.indexed)
	}
	s.indexed[hash] = jobID
}

// ForgetIndexed drops every record of indexed content, after the index was
// cleared without a successful write.
func (s *JobStore) ForgetIndexed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.indexed)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
