package form

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-form-filler/internal/artifact"
)

// Step is the position of a session in the fill/submit flow
type Step string

const (
	StepEditing    Step = "editing"
	StepPreviewed  Step = "previewed"
	StepSubmitting Step = "submitting"
	StepSubmitted  Step = "submitted"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrSubmitInFlight is returned when a second submit starts before the first finished
	ErrSubmitInFlight = errors.New("a submission is already in progress for this session")
)

// Session is the explicit context of one editing session: form values,
// the uploaded PDF, the current preview and the submit flag.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	State     *State    `json:"-"`

	mu         sync.Mutex
	step       Step
	upload     *artifact.Artifact
	preview    *artifact.Artifact
	submitting bool
}

// NewSession starts a session with empty values
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		State:     NewState(),
		step:      StepEditing,
	}
}

// Step returns the current step
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SetStep moves the session to step
func (s *Session) SetStep(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
}

// AttachUpload stores the PDF to merge on submit, releasing any previous one
func (s *Session) AttachUpload(a *artifact.Artifact) {
	s.mu.Lock()
	old := s.upload
	s.upload = a
	s.mu.Unlock()
	if old != nil && old != a {
		old.Release()
	}
}

// Upload returns the attached PDF, or nil
func (s *Session) Upload() *artifact.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// ReplacePreview installs a new preview and only then releases the old one
func (s *Session) ReplacePreview(a *artifact.Artifact) {
	s.mu.Lock()
	old := s.preview
	s.preview = a
	if s.step == StepEditing {
		s.step = StepPreviewed
	}
	s.mu.Unlock()
	if old != nil && old != a {
		old.Release()
	}
}

// Preview returns the current preview, or nil
func (s *Session) Preview() *artifact.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// BeginSubmit marks a submission as in flight
func (s *Session) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return ErrSubmitInFlight
	}
	s.submitting = true
	s.step = StepSubmitting
	return nil
}

// EndSubmit clears the in-flight flag. A failed submission returns the
// session to editing with its values untouched.
func (s *Session) EndSubmit(success bool) {
	s.mu.Lock()
	s.submitting = false
	if !success {
		s.step = StepEditing
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.Clear()
	s.SetStep(StepSubmitted)
}

// Submitting reports whether a submission is in flight
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Clear resets values and drops the upload and preview
func (s *Session) Clear() {
	s.State.Reset()

	s.mu.Lock()
	upload, preview := s.upload, s.preview
	s.upload, s.preview = nil, nil
	s.step = StepEditing
	s.mu.Unlock()

	if upload != nil {
		upload.Release()
	}
	if preview != nil {
		preview.Release()
	}
}

// Store keeps sessions in memory
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create starts and registers a new session
func (st *Store) Create() *Session {
	s := NewSession()
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get retrieves a session by ID
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete clears and removes a session
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Clear()
	return nil
}

// List returns sessions ordered by start time
func (st *Store) List() []*Session {
	st.mu.RLock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	st.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
