package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Makepad-fr/tada/internal/model"
)

// Mutation payloads are wrapped in a "data" envelope.
type envelope[T any] struct {
	Data T `json:"data"`
}

type createTodo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	User        []int  `json:"user"`
}

type updateTodo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Me fetches the authenticated user together with their todos, in the
// order the server returns them.
func (c *Client) Me(ctx context.Context) (*model.Me, error) {
	raw, err := c.do(ctx, http.MethodGet, "/users/me", url.Values{"populate": {"todos"}}, nil)
	if err != nil {
		return nil, err
	}
	if err := checkShape(meSchema, raw); err != nil {
		return nil, err
	}
	var me model.Me
	if err := json.Unmarshal(raw, &me); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if me.Todos == nil {
		me.Todos = []model.Todo{}
	}
	return &me, nil
}

// Todos is Me without the user part.
func (c *Client) Todos(ctx context.Context) ([]model.Todo, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	return me.Todos, nil
}

// CreateTodo creates a todo owned by userID.
func (c *Client) CreateTodo(ctx context.Context, d model.Draft, userID int) error {
	in := envelope[createTodo]{Data: createTodo{Title: d.Title, Description: d.Description, User: []int{userID}}}
	_, err := c.do(ctx, http.MethodPost, "/todos", nil, in)
	return err
}

// UpdateTodo replaces title and description of t.ID.
func (c *Client) UpdateTodo(ctx context.Context, t model.Todo) error {
	in := envelope[updateTodo]{Data: updateTodo{Title: t.Title, Description: t.Description}}
	_, err := c.do(ctx, http.MethodPut, "/todos/"+strconv.Itoa(t.ID), nil, in)
	return err
}

// DeleteTodo removes the todo with the given id.
func (c *Client) DeleteTodo(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, "/todos/"+strconv.Itoa(id), nil, nil)
	return err
}
