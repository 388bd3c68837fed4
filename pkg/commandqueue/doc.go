// Package commandqueue serializes work per lane.
//
// Invariants:
//   - Tasks in the same lane execute in FIFO order, one at a time unless the
//     lane's concurrency was raised.
//   - Tasks in different lanes may execute concurrently.
//   - Idle lanes are dropped, so per-session lanes do not accumulate.
//
// Usage:
//
//	queue := commandqueue.New()
//	defer queue.Close()
//	result, err := queue.Enqueue(ctx, commandqueue.SessionLane("u1:1"), func(ctx context.Context) (interface{}, error) {
//		return "ok", nil
//	}, nil)
package commandqueue
