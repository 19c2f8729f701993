package model

import "strings"

// Todo is a to-do entry as stored by the remote API.
// The server assigns IDs; a zero ID means "no selection".
type Todo struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Draft is the add-form input, kept locally until submitted.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// User is the authenticated account as returned by the API.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Me is the payload of GET /users/me?populate=todos.
type Me struct {
	User
	Todos []Todo `json:"todos"`
}

// Session is the credential every API call is made with.
type Session struct {
	JWT  string `json:"jwt"`
	User User   `json:"user"`
}

// Valid reports whether the session carries a token and a user.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.JWT) != "" && s.User.ID != 0
}
