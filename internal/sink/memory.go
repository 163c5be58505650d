package sink

import (
	"context"
	"sync"
	"time"
)

// File is a payload held by a Memory sink.
type File struct {
	Name        string
	MIMEType    string
	Payload     []byte
	DeliveredAt time.Time
}

// Memory keeps delivered payloads in memory, keyed by filename. The web
// server parks background export results here until they are downloaded;
// the CLI uses it for dry runs.
type Memory struct {
	mu    sync.RWMutex
	files map[string]File
	order []string
}

// NewMemory returns an empty memory sink.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]File)}
}

// Deliver stores a copy of payload. A later delivery with the same name
// replaces the earlier one.
func (m *Memory) Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error {
	if err := checkName(filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[filename]; !ok {
		m.order = append(m.order, filename)
	}
	m.files[filename] = File{
		Name:        filename,
		MIMEType:    mimeType,
		Payload:     append([]byte(nil), payload...),
		DeliveredAt: time.Now(),
	}
	return nil
}

// Get returns the file delivered under name.
func (m *Memory) Get(name string) (File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[name]
	return f, ok
}

// Last returns the most recently added file.
func (m *Memory) Last() (File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return File{}, false
	}
	return m.files[m.order[len(m.order)-1]], true
}

// Files returns every held file in delivery order.
func (m *Memory) Files() []File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]File, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.files[name])
	}
	return out
}

// Len returns the number of held files.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
