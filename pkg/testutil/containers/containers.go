//go:build integration

// Package containers starts Postgres, Redis and Kafka under testcontainers.
// Each container is started on first use and shared by every suite in the
// test binary; Ryuk reaps them when the process exits.
package containers

import (
	"sync"
	"testing"
)

// lazy starts a fixture at most once. A failed start is retried by the next
// caller rather than cached.
type lazy[T any] struct {
	mu  sync.Mutex
	val T
	ok  bool
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok {
		l.val = start(t)
		l.ok = true
	}
	return l.val
}

// Manager hands out the shared containers.
type Manager struct {
	postgres lazy[*PostgresContainer]
	redis    lazy[*RedisContainer]
	kafka    lazy[*KafkaContainer]
}

var manager = &Manager{}

func GetManager() *Manager { return manager }

// GetPostgres returns a migrated Postgres.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}
