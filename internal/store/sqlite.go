package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements Store on top of modernc.org/sqlite (cgo-free).
// Writes are serialized through mu, on top of the single open connection,
// matching the design note that persistence has no parallel SQL.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a SQLiteStore and initializes its schema idempotently.
// Pass ":memory:" for an in-memory store (test mode).
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// --- tasks ---

func (s *SQLiteStore) InsertTask(ctx context.Context, taskID uint64, metadata string) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, status, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, TaskPending, metadata, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: insert task: %w", err)
	}
	return s.getTaskLocked(ctx, taskID)
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID uint64, status TaskStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	switch status {
	case TaskRunning:
		_, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, started_at = ?, updated_at = ? WHERE task_id = ?`,
			status, now, now, taskID)
		return err
	case TaskCompleted, TaskFailed, TaskCancelled:
		_, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, completed_at = ?, error_message = ?, updated_at = ? WHERE task_id = ?`,
			status, now, errMsg, now, taskID)
		return err
	default:
		_, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE task_id = ?`, status, now, taskID)
		return err
	}
}

func (s *SQLiteStore) GetTask(ctx context.Context, taskID uint64) (*TaskRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.getTaskLocked(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) getTaskLocked(ctx context.Context, taskID uint64) (*TaskRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, task_id, status, started_at, completed_at, error_message, metadata, created_at, updated_at
		 FROM tasks WHERE task_id = ?`, taskID)
	return scanTask(row)
}

func (s *SQLiteStore) ListTasks(ctx context.Context, status TaskStatus) ([]*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, task_id, status, started_at, completed_at, error_message, metadata, created_at, updated_at
			 FROM tasks ORDER BY task_id`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, task_id, status, started_at, completed_at, error_message, metadata, created_at, updated_at
			 FROM tasks WHERE status = ? ORDER BY task_id`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
	return err
}

func scanTask(scanner interface{ Scan(...any) error }) (*TaskRecord, error) {
	var (
		id                   int64
		taskID               uint64
		status               string
		startedAt, completed sql.NullString
		errMsg, metadata     sql.NullString
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&id, &taskID, &status, &startedAt, &completed, &errMsg, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec := &TaskRecord{
		ID:           id,
		TaskID:       taskID,
		Status:       TaskStatus(status),
		ErrorMessage: errMsg.String,
		Metadata:     metadata.String,
	}
	rec.StartedAt = parseNullTime(startedAt)
	rec.CompletedAt = parseNullTime(completed)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// --- orders ---

func (s *SQLiteStore) InsertOrder(ctx context.Context, o *OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, product_id, account_id, status, price, quantity, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.ProductID, o.AccountID, o.Status, o.Price, o.Quantity, o.Metadata, now, now)
	return err
}

func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?`, status, nowRFC3339(), orderID)
	return err
}

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*OrderRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, product_id, account_id, status, price, quantity, metadata, created_at, updated_at
		 FROM orders WHERE order_id = ?`, orderID)
	rec, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) ListOrdersByAccount(ctx context.Context, accountID string) ([]*OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, account_id, status, price, quantity, metadata, created_at, updated_at
		 FROM orders WHERE account_id = ? ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = ?`, orderID)
	return err
}

func scanOrder(scanner interface{ Scan(...any) error }) (*OrderRecord, error) {
	var (
		id                   int64
		orderID, productID   string
		accountID, status    string
		price                sql.NullFloat64
		quantity             int
		metadata             sql.NullString
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&id, &orderID, &productID, &accountID, &status, &price, &quantity, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec := &OrderRecord{
		ID: id, OrderID: orderID, ProductID: productID, AccountID: accountID,
		Status: status, Price: price.Float64, Quantity: quantity, Metadata: metadata.String,
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

// --- sessions ---

func (s *SQLiteStore) InsertSession(ctx context.Context, rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, account_id, status, cookies, last_used_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.AccountID, rec.Status, rec.Cookies, nullableTimeStr(rec.LastUsedAt), now, now)
	return err
}

func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`, status, nowRFC3339(), sessionID)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, account_id, status, cookies, last_used_at, created_at, updated_at
		 FROM sessions WHERE session_id = ?`, sessionID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) ListSessionsByAccount(ctx context.Context, accountID string) ([]*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, account_id, status, cookies, last_used_at, created_at, updated_at
		 FROM sessions WHERE account_id = ? ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAllSessions(ctx context.Context) ([]*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, account_id, status, cookies, last_used_at, created_at, updated_at
		 FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, lastUsedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_used_at = ?, updated_at = ? WHERE session_id = ?`,
		lastUsedAt.UTC().Format(time.RFC3339), nowRFC3339(), sessionID)
	return err
}

func scanSession(scanner interface{ Scan(...any) error }) (*SessionRecord, error) {
	var (
		id                   int64
		sessionID, accountID string
		status               string
		cookies              []byte
		lastUsedAt           sql.NullString
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&id, &sessionID, &accountID, &status, &cookies, &lastUsedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec := &SessionRecord{
		ID: id, SessionID: sessionID, AccountID: accountID, Status: status, Cookies: cookies,
	}
	rec.LastUsedAt = parseNullTime(lastUsedAt)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

func nullableTimeStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
