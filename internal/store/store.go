// Package store is the durable persistence layer: tasks, orders, and
// sessions, backed by SQLite with a single serialized connection.
package store

import (
	"context"
	"time"
)

// TaskStatus mirrors the executor's TaskResult status, persisted for
// after-the-fact inspection (the executor's own result map is the live
// source of truth while a process is running).
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// TaskRecord is the durable row for one submitted unit of work.
type TaskRecord struct {
	ID           int64
	TaskID       uint64
	Status       TaskStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	Metadata     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderRecord is the durable row for a completed or attempted purchase.
type OrderRecord struct {
	ID        int64
	OrderID   string
	ProductID string
	AccountID string
	Status    string
	Price     float64
	Quantity  int
	Metadata  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRecord is the durable, persistence-layer view of a session: the
// cookie blob is opaque ciphertext, sealed by the crypto envelope.
type SessionRecord struct {
	ID         int64
	SessionID  string
	AccountID  string
	Status     string
	Cookies    []byte
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the persistence interface. All writes are synchronous from the
// caller's perspective and serialized through a single connection mutex.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	InsertTask(ctx context.Context, taskID uint64, metadata string) (*TaskRecord, error)
	UpdateTaskStatus(ctx context.Context, taskID uint64, status TaskStatus, errMsg string) error
	GetTask(ctx context.Context, taskID uint64) (*TaskRecord, bool, error)
	ListTasks(ctx context.Context, status TaskStatus) ([]*TaskRecord, error)
	DeleteTask(ctx context.Context, taskID uint64) error

	InsertOrder(ctx context.Context, o *OrderRecord) error
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	GetOrder(ctx context.Context, orderID string) (*OrderRecord, bool, error)
	ListOrdersByAccount(ctx context.Context, accountID string) ([]*OrderRecord, error)
	DeleteOrder(ctx context.Context, orderID string) error

	InsertSession(ctx context.Context, s *SessionRecord) error
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, bool, error)
	ListSessionsByAccount(ctx context.Context, accountID string) ([]*SessionRecord, error)
	ListAllSessions(ctx context.Context) ([]*SessionRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error
	TouchSession(ctx context.Context, sessionID string, lastUsedAt time.Time) error
}
