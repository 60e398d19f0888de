package core

import (
	"context"
	"sync"
)

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// Telemetry interface - optional telemetry support
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Storage is the key-value persistence surface shared by every store.
// It is the browser-profile storage analog: values are opaque JSON
// documents addressed by key, surviving process restarts when the
// backing implementation is durable.
//
// Load returns (nil, nil) for an absent key. Consumers treat malformed
// stored documents as absent rather than failing (see the stores'
// decode helpers).
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Subscriber receives change notifications from a store.
// Callbacks run synchronously on the mutating goroutine after the
// mutation has been committed and persisted.
type Subscriber func()

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// NoOpTelemetry provides a no-op telemetry implementation
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan provides a no-op span implementation
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// MemoryStorage provides a mutex-guarded in-memory implementation of
// Storage. It is the default backend and the one tests instantiate.
type MemoryStorage struct {
	mu     sync.RWMutex
	data   map[string][]byte
	logger Logger
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data:   make(map[string][]byte),
		logger: &NoOpLogger{},
	}
}

// SetLogger configures the logger for this storage
func (m *MemoryStorage) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Load retrieves a stored document; absent keys yield (nil, nil)
func (m *MemoryStorage) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists {
		m.logger.Debug("Storage miss", map[string]interface{}{
			"operation": "storage_load",
			"key":       key,
		})
		return nil, nil
	}

	// Hand out a copy so callers cannot alias the stored document
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Save stores a document under a key, replacing any previous value
func (m *MemoryStorage) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored

	m.logger.Debug("Storage save", map[string]interface{}{
		"operation":  "storage_save",
		"key":        key,
		"value_size": len(value),
	})
	return nil
}

// Delete removes a document
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.data[key]
	delete(m.data, key)

	m.logger.Debug("Storage delete", map[string]interface{}{
		"operation": "storage_delete",
		"key":       key,
		"existed":   existed,
	})
	return nil
}

// Exists checks if a key holds a document
func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[key]
	return exists, nil
}
