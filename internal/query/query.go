package query

import (
	"context"
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// Result is what a view reads from a query.
type Result[T any] struct {
	Key       Key
	IsLoading bool
	Data      T
	HasData   bool
	Err       error
}

// ResultMsg carries a finished fetch back into the Bubble Tea loop.
type ResultMsg[T any] struct {
	Key  Key
	Data T
	Err  error
}

// Query binds a fetch function to a Client. Evaluate it with the current
// key on every state change; feed ResultMsg values back through Update.
// A Query is not safe for concurrent use: it lives on the UI loop.
type Query[T any] struct {
	client *Client
	ctx    context.Context
	fn     func(context.Context) (T, error)
	result Result[T]
}

// New returns a query that fetches with fn under ctx.
func New[T any](ctx context.Context, client *Client, fn func(context.Context) (T, error)) *Query[T] {
	return &Query[T]{client: client, ctx: ctx, fn: fn}
}

// Result returns the current state.
func (q *Query[T]) Result() Result[T] { return q.result }

// Evaluate switches the query to key. An unchanged key does nothing; a
// cached key settles immediately; otherwise the query goes into loading
// and the returned command performs the fetch.
func (q *Query[T]) Evaluate(key Key) tea.Cmd {
	if q.result.Key != nil && q.result.Key.Equal(key) {
		return nil
	}
	key = slices.Clone(key)
	q.result = Result[T]{Key: key}

	if v, ok := q.client.Peek(key); ok {
		if data, ok := v.(T); ok {
			q.result.Data, q.result.HasData = data, true
			return nil
		}
	}

	q.result.IsLoading = true
	client, ctx, fn := q.client, q.ctx, q.fn
	return func() tea.Msg {
		v, err := client.Fetch(ctx, key, func(ctx context.Context) (any, error) { return fn(ctx) })
		if err != nil {
			return ResultMsg[T]{Key: key, Err: err}
		}
		data, ok := v.(T)
		if !ok {
			return ResultMsg[T]{Key: key, Err: fmt.Errorf("query %v: cached %T", []string(key), v)}
		}
		return ResultMsg[T]{Key: key, Data: data}
	}
}

// Refetch drops the cached value of the current key and fetches it again.
func (q *Query[T]) Refetch() tea.Cmd {
	key := q.result.Key
	if key == nil {
		return nil
	}
	q.client.Remove(key)
	q.result.Key = nil
	return q.Evaluate(key)
}

// Update applies msg if it is a result for the current key. Results for a
// superseded key are dropped. It reports whether msg was a ResultMsg[T].
func (q *Query[T]) Update(msg tea.Msg) bool {
	m, ok := msg.(ResultMsg[T])
	if !ok {
		return false
	}
	if !m.Key.Equal(q.result.Key) {
		return true
	}
	q.result.IsLoading = false
	if m.Err != nil {
		q.result.Err = m.Err
		return true
	}
	q.result.Err = nil
	q.result.Data, q.result.HasData = m.Data, true
	return true
}
