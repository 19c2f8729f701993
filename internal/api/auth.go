package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Makepad-fr/tada/internal/model"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, identifier, password string) (*model.Session, error) {
	return c.authenticate(ctx, "/auth/local", loginRequest{Identifier: identifier, Password: password})
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, username, email, password string) (*model.Session, error) {
	return c.authenticate(ctx, "/auth/local/register", registerRequest{Username: username, Email: email, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, in any) (*model.Session, error) {
	raw, err := c.do(ctx, http.MethodPost, path, nil, in)
	if err != nil {
		return nil, err
	}
	if err := checkShape(authSchema, raw); err != nil {
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &s, nil
}
