package models

import (
	"sync"
	"time"
)

// MediaState represents where an uploaded file is in its analysis lifecycle
type MediaState string

const (
	MediaStateUploaded MediaState = "uploaded"
	MediaStateProbing  MediaState = "probing"
	MediaStateAnalyzed MediaState = "analyzed"
	MediaStateFailed   MediaState = "failed"
)

// Media represents an uploaded media file
type Media struct {
	ID          string     // Unique media identifier
	Filename    string     // Original upload filename
	StoragePath string     // Path relative to the storage backend
	Size        int64      // Size in bytes
	UploadedAt  time.Time  // When the upload completed
	State       MediaState // Current state
	LastError   string     // Error from the most recent failed analysis

	// Stats
	Stats MediaStats

	lastAnalysis *GOPAnalysis // Most recent successful analysis
	mu           sync.RWMutex // Protects concurrent access
}

// MediaStats tracks analysis activity for one media file
type MediaStats struct {
	Analyses         uint64    // Completed analyses
	FramesAnalyzed   uint64    // Frames seen across all analyses
	LastAnalyzedAt   time.Time // Time of the most recent analysis
	LastStreamIndex  int       // Stream analyzed most recently
	LastGOPCount     int       // GOPs found by the most recent analysis
	LastSeekability  float64   // Seekability score of the most recent analysis
	LastKeyframeSecs float64   // Keyframe interval of the most recent analysis
}

// SetState safely updates the media state
func (m *Media) SetState(state MediaState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.State = state
	if state != MediaStateFailed {
		m.LastError = ""
	}
}

// GetState safely returns the current media state
func (m *Media) GetState() MediaState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.State
}

// RecordAnalysis stores the headline numbers of a finished analysis
func (m *Media) RecordAnalysis(result *GOPAnalysis) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.State = MediaStateAnalyzed
	m.LastError = ""
	m.Stats.Analyses++
	m.Stats.FramesAnalyzed += uint64(result.TotalFrames)
	m.Stats.LastAnalyzedAt = time.Now()
	m.Stats.LastStreamIndex = result.StreamIndex
	m.Stats.LastGOPCount = result.Stats.TotalGOPs
	m.Stats.LastSeekability = result.Stats.SeekabilityScore
	m.Stats.LastKeyframeSecs = result.Stats.KeyframeIntervalSec
	m.lastAnalysis = result
}

// LastAnalysis returns the most recent successful analysis, or nil
func (m *Media) LastAnalysis() *GOPAnalysis {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAnalysis
}

// RecordFailure marks the media as failed with the given error
func (m *Media) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.State = MediaStateFailed
	if err != nil {
		m.LastError = err.Error()
	}
}

// Snapshot returns a copy of the stats and error safe to read without the lock
func (m *Media) Snapshot() (MediaState, MediaStats, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.State, m.Stats, m.LastError
}
