package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.InsertTask(ctx, 1, `{"name":"check-product"}`)
	require.NoError(t, err)
	require.Equal(t, TaskPending, rec.Status)
	require.Nil(t, rec.StartedAt)

	require.NoError(t, s.UpdateTaskStatus(ctx, 1, TaskRunning, ""))
	rec, found, err := s.GetTask(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, TaskRunning, rec.Status)
	require.NotNil(t, rec.StartedAt)

	require.NoError(t, s.UpdateTaskStatus(ctx, 1, TaskCompleted, ""))
	rec, _, err = s.GetTask(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)

	_, found, err = s.GetTask(ctx, 999)
	require.NoError(t, err)
	require.False(t, found)
}

func TestListTasksByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _ = s.InsertTask(ctx, 1, "")
	_, _ = s.InsertTask(ctx, 2, "")
	require.NoError(t, s.UpdateTaskStatus(ctx, 2, TaskFailed, "boom"))

	pending, err := s.ListTasks(ctx, TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	failed, err := s.ListTasks(ctx, TaskFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "boom", failed[0].ErrorMessage)
}

func TestOrderLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.InsertOrder(ctx, &OrderRecord{
		OrderID: "ord-1", ProductID: "prod-1", AccountID: "acct-1",
		Status: "pending", Price: 19.99, Quantity: 2,
	})
	require.NoError(t, err)

	rec, found, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "pending", rec.Status)

	require.NoError(t, s.UpdateOrderStatus(ctx, "ord-1", "succeeded"))
	rec, _, _ = s.GetOrder(ctx, "ord-1")
	require.Equal(t, "succeeded", rec.Status)

	orders, err := s.ListOrdersByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	require.NoError(t, s.DeleteOrder(ctx, "ord-1"))
	_, found, _ = s.GetOrder(ctx, "ord-1")
	require.False(t, found)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.InsertSession(ctx, &SessionRecord{
		SessionID: "sess-1", AccountID: "acct-1", Status: "valid", Cookies: []byte("sealed-bytes"),
	})
	require.NoError(t, err)

	rec, found, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("sealed-bytes"), rec.Cookies)

	sessions, err := s.ListSessionsByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))
	_, found, _ = s.GetSession(ctx, "sess-1")
	require.False(t, found)
}

func TestListAllSessionsAndTouch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSession(ctx, &SessionRecord{SessionID: "sess-a", AccountID: "acct-1", Status: "valid"}))
	require.NoError(t, s.InsertSession(ctx, &SessionRecord{SessionID: "sess-b", AccountID: "acct-2", Status: "valid"}))

	all, err := s.ListAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	when := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchSession(ctx, "sess-a", when))

	rec, found, err := s.GetSession(ctx, "sess-a")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, rec.LastUsedAt)
	require.Equal(t, when, rec.LastUsedAt.UTC())
}
