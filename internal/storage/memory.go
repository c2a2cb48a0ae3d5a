package storage

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store. Used by tests and STORE_DRIVER=memory.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

func (m *Memory) Get(ctx context.Context, path string) (*Document, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Value = append([]byte(nil), doc.Value...)
	return &doc, nil
}

func (m *Memory) Set(ctx context.Context, path string, value []byte) error {
	if err := validPath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(path, m.docs[path].Version, value)
	return nil
}

func (m *Memory) CompareAndSet(ctx context.Context, path string, version int64, value []byte) error {
	if err := validPath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[path].Version != version {
		return ErrVersionConflict
	}
	m.put(path, version, value)
	return nil
}

func (m *Memory) put(path string, version int64, value []byte) {
	m.docs[path] = Document{
		Path:    path,
		Value:   append([]byte(nil), value...),
		Version: version + 1,
	}
}

func (m *Memory) Children(ctx context.Context, parent string) ([]Document, error) {
	if err := validPath(parent); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := parent + "/"
	var docs []Document
	for path, doc := range m.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		doc.Value = append([]byte(nil), doc.Value...)
		docs = append(docs, doc)
	}

	sortDocuments(docs)
	return docs, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() error {
	return nil
}
