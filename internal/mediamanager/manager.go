package mediamanager

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gopscope/pkg/models"
)

// Manager maintains the in-memory registry of uploaded media and fans out
// finished analyses to subscribers
type Manager struct {
	media map[string]*models.Media // mediaID -> Media
	mu    sync.RWMutex

	// Channels for pub/sub
	subscribers map[string][]chan *models.GOPAnalysis // mediaID -> list of subscriber channels
	subMu       sync.RWMutex
}

// New creates a new media manager
func New() *Manager {
	return &Manager{
		media:       make(map[string]*models.Media),
		subscribers: make(map[string][]chan *models.GOPAnalysis),
	}
}

// NewID returns a fresh media identifier
func NewID() string {
	return uuid.NewString()
}

// Register adds an uploaded file to the registry
func (m *Manager) Register(id, filename, storagePath string, size int64) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.media[id]; exists {
		return nil, fmt.Errorf("media %s already registered", id)
	}

	media := &models.Media{
		ID:          id,
		Filename:    filename,
		StoragePath: storagePath,
		Size:        size,
		UploadedAt:  time.Now(),
		State:       models.MediaStateUploaded,
	}

	m.media[id] = media
	return media, nil
}

// Get retrieves media by ID
func (m *Manager) Get(id string) (*models.Media, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	media, exists := m.media[id]
	return media, exists
}

// List returns all media, oldest upload first
func (m *Manager) List() []*models.Media {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*models.Media, 0, len(m.media))
	for _, media := range m.media {
		list = append(list, media)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UploadedAt.Before(list[j].UploadedAt)
	})

	return list
}

// Delete removes media from the registry and closes its subscriptions
func (m *Manager) Delete(id string) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	media, exists := m.media[id]
	if !exists {
		return nil, fmt.Errorf("media %s not found", id)
	}

	m.closeSubscribers(id)
	delete(m.media, id)
	return media, nil
}

// Count returns the number of registered media
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.media)
}

// Publish records a finished analysis and sends it to all subscribers
func (m *Manager) Publish(result *models.GOPAnalysis) error {
	media, exists := m.Get(result.MediaID)
	if !exists {
		return fmt.Errorf("media %s not found", result.MediaID)
	}

	media.RecordAnalysis(result)

	m.subMu.RLock()
	defer m.subMu.RUnlock()

	// Send to all subscribers (non-blocking); a slow reader misses the result
	for _, ch := range m.subscribers[result.MediaID] {
		select {
		case ch <- result:
		default:
		}
	}

	return nil
}

// Subscribe creates a subscription to a media's analysis results
// Returns a channel that will receive results and a cleanup function.
// The channel is closed when the media is deleted.
func (m *Manager) Subscribe(id string, bufferSize int) (<-chan *models.GOPAnalysis, func(), error) {
	// Holding mu keeps a concurrent Delete from missing this subscription
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, exists := m.media[id]; !exists {
		return nil, nil, fmt.Errorf("media %s not found", id)
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()

	ch := make(chan *models.GOPAnalysis, bufferSize)
	m.subscribers[id] = append(m.subscribers[id], ch)

	cleanup := func() {
		m.unsubscribe(id, ch)
	}

	return ch, cleanup, nil
}

// SubscriberCount returns the number of open subscriptions for a media
func (m *Manager) SubscriberCount(id string) int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers[id])
}

// unsubscribe removes a subscriber channel
func (m *Manager) unsubscribe(id string, ch chan *models.GOPAnalysis) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	subscribers, exists := m.subscribers[id]
	if !exists {
		return
	}

	for i, subCh := range subscribers {
		if subCh == ch {
			m.subscribers[id] = append(subscribers[:i], subscribers[i+1:]...)
			close(ch)
			break
		}
	}

	if len(m.subscribers[id]) == 0 {
		delete(m.subscribers, id)
	}
}

// closeSubscribers closes all subscriber channels for a media
func (m *Manager) closeSubscribers(id string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subscribers[id] {
		close(ch)
	}

	delete(m.subscribers, id)
}
