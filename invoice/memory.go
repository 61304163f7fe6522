package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore stores artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores an artifact.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// MemoryInvoices is an in-memory InvoiceSource (test/dev only).
type MemoryInvoices struct {
	mu       sync.RWMutex
	invoices map[string]Invoice
}

// NewMemoryInvoices creates an in-memory invoice source seeded with invoices.
func NewMemoryInvoices(invoices ...Invoice) *MemoryInvoices {
	m := &MemoryInvoices{invoices: make(map[string]Invoice, len(invoices))}
	for _, inv := range invoices {
		m.Save(inv)
	}
	return m
}

// Save stores an invoice under its ID, or its invoice number when the ID is empty.
func (m *MemoryInvoices) Save(inv Invoice) {
	key := inv.ID
	if key == "" {
		key = inv.InvoiceNumber
	}
	m.mu.Lock()
	m.invoices[key] = inv
	m.mu.Unlock()
}

// Invoice returns the invoice stored under id.
func (m *MemoryInvoices) Invoice(ctx context.Context, id string) (Invoice, error) {
	_ = ctx
	m.mu.RLock()
	inv, ok := m.invoices[id]
	m.mu.RUnlock()
	if !ok {
		return Invoice{}, NewError(KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
	}
	return inv, nil
}
