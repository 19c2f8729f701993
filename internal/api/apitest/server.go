// Package apitest runs an in-memory stand-in for the content API, for tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Makepad-fr/tada/internal/model"
)

const (
	// Token is the only bearer credential the server accepts.
	Token = "test-jwt"
	// Password is the password of the seeded user.
	Password = "secret123"
)

// Request is a recorded call.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	RequestID     string
	Body          []byte
}

type stored struct {
	model.Todo
	owner int
}

// Server is a fake API mounted under /api.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	user     model.User
	todos    []stored
	nextID   int
	status   map[string]int // "METHOD /route" -> forced status
	meBody   string
	requests []Request
}

// New starts a server with one user (id 1, "alice") and no todos.
// It is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		user:   model.User{ID: 1, Username: "alice", Email: "alice@example.com"},
		nextID: 1,
		status: map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/local", s.login)
		r.Post("/auth/local/register", s.register)
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/users/me", s.me)
			r.Post("/todos", s.createTodo)
			r.Put("/todos/{id}", s.updateTodo)
			r.Delete("/todos/{id}", s.deleteTodo)
		})
	})

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// BaseURL is the API root, e.g. http://127.0.0.1:1234/api.
func (s *Server) BaseURL() string { return s.srv.URL + "/api" }

// User returns the seeded user.
func (s *Server) User() model.User { return s.user }

// Seed appends todos owned by the seeded user; IDs are kept when non-zero.
func (s *Server) Seed(todos ...model.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range todos {
		if t.ID == 0 {
			t.ID = s.nextID
		}
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		s.todos = append(s.todos, stored{Todo: t, owner: s.user.ID})
	}
}

// Todos returns the server-side collection.
func (s *Server) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		out = append(out, t.Todo)
	}
	return out
}

// SetStatus forces route (e.g. "DELETE /todos") to answer with code
// without touching state. A zero code clears the override.
func (s *Server) SetStatus(route string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.status, route)
		return
	}
	s.status[route] = code
}

// SetMeBody makes GET /users/me return raw instead of the real payload.
func (s *Server) SetMeBody(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meBody = raw
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls matched method and path prefix.
func (s *Server) Count(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          strings.TrimPrefix(r.URL.Path, "/api"),
			RawQuery:      r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "UnauthorizedError", "Missing or invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// forced answers with an overridden status, if any.
func (s *Server) forced(w http.ResponseWriter, route string) bool {
	s.mu.Lock()
	code, ok := s.status[route]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if code >= 400 {
		writeError(w, code, http.StatusText(code), http.StatusText(code))
		return true
	}
	writeJSON(w, code, map[string]any{"data": nil})
	return true
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, "POST /auth/local") {
		return
	}
	var in struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid body")
		return
	}
	if in.Identifier != s.user.Email || in.Password != Password {
		writeError(w, http.StatusBadRequest, "ValidationError", "Invalid identifier or password")
		return
	}
	writeJSON(w, http.StatusOK, model.Session{JWT: Token, User: s.user})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, "POST /auth/local/register") {
		return
	}
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid body")
		return
	}
	if in.Email == s.user.Email {
		writeError(w, http.StatusBadRequest, "ApplicationError", "Email or Username are already taken")
		return
	}
	u := model.User{ID: s.user.ID + 1, Username: in.Username, Email: in.Email}
	writeJSON(w, http.StatusOK, model.Session{JWT: Token, User: u})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, "GET /users/me") {
		return
	}
	s.mu.Lock()
	raw := s.meBody
	s.mu.Unlock()
	if raw != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(raw))
		return
	}

	todos := []model.Todo{}
	if r.URL.Query().Get("populate") == "todos" {
		s.mu.Lock()
		for _, t := range s.todos {
			if t.owner == s.user.ID {
				todos = append(todos, t.Todo)
			}
		}
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, model.Me{User: s.user, Todos: todos})
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, "POST /todos") {
		return
	}
	var in struct {
		Data struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			User        []int  `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid body")
		return
	}
	owner := s.user.ID
	if len(in.Data.User) > 0 {
		owner = in.Data.User[0]
	}
	s.mu.Lock()
	t := model.Todo{ID: s.nextID, Title: in.Data.Title, Description: in.Data.Description}
	s.nextID++
	s.todos = append(s.todos, stored{Todo: t, owner: owner})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": t})
}

func (s *Server) updateTodo(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, "PUT /todos") {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid id")
		return
	}
	var in struct {
		Data struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.todos {
		if s.todos[i].ID == id {
			s.todos[i].Title = in.Data.Title
			s.todos[i].Description = in.Data.Description
			writeJSON(w, http.StatusOK, map[string]any{"data": s.todos[i].Todo})
			return
		}
	}
	writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, "DELETE /todos") {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.todos {
		if s.todos[i].ID == id {
			t := s.todos[i].Todo
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"data": t})
			return
		}
	}
	writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, name, msg string) {
	writeJSON(w, code, map[string]any{
		"data":  nil,
		"error": map[string]any{"status": code, "name": name, "message": msg},
	})
}
