// Package artifact defines the byte buffers handed between pipeline stages.
package artifact

import (
	"sync"
	"time"
)

// MIME types produced by the pipeline
const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// Artifact is a generated PDF or image owned by one stage at a time.
// Superseded artifacts are released explicitly.
type Artifact struct {
	Filename  string
	MIMEType  string
	CreatedAt time.Time

	mu       sync.RWMutex
	data     []byte
	released bool
}

// New wraps data as an artifact
func New(filename, mimeType string, data []byte) *Artifact {
	return &Artifact{
		Filename:  filename,
		MIMEType:  mimeType,
		CreatedAt: time.Now(),
		data:      data,
	}
}

// Bytes returns the artifact content, nil once released
func (a *Artifact) Bytes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// Size returns the content length in bytes
func (a *Artifact) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}

// Release drops the content. Releasing twice is a no-op.
func (a *Artifact) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.released = true
}

// Released reports whether Release has been called
func (a *Artifact) Released() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.released
}
