package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"

	"github.com/distributedlearning/go-task-client/task"
)

var noContext = context.Background()

// newTestClient returns a client pointed at the test server,
// mounted under the /api prefix.
func newTestClient(srv *httptest.Server) *HTTPClient {
	return New(Config{
		Host:     srv.URL,
		APIPath:  "/api",
		Username: "frank",
		Password: "supersecret",
	})
}

// tokenHandler serves the token endpoint for tests.
func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		in := new(TokenRequest)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(in))
		assert.Equal(t, "frank", in.Username)
		assert.Equal(t, "supersecret", in.Password)

		json.NewEncoder(w).Encode(&TokenResponse{
			AccessToken:  "access.token.value",
			RefreshToken: "refresh.token.value",
		})
	}
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)
	assert.Equal(t, "access.token.value", session.token)
	assert.Equal(t, "refresh.token.value", session.refresh)
}

func TestAuthenticate_NoToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestClient(srv).Authenticate(noContext)
	assert.EqualError(t, err, "token endpoint returned no access token")
}

func TestAuthenticate_Err(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestClient(srv).Authenticate(noContext)
	assert.ErrorContains(t, err, "invalid credentials")
}

// The bearer token from the last successful authentication must
// be attached to every request the session sends.
func TestSession_BearerToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/api/task/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access.token.value", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(&task.Status{ID: 5, Complete: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	status, err := session.GetTask(noContext, 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, status.ID)
	assert.True(t, status.Complete)
}

// Requests must target host + api path + relative path.
func TestSession_URLJoin(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(&task.Status{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	_, err = session.GetTask(noContext, 5)
	assert.NoError(t, err)
	assert.Equal(t, "/api/task/5", gotPath)
}

func TestSession_CreateTask(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/api/task", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		in := new(task.Task)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(in))
		assert.Equal(t, "summary statistics", in.Name)
		assert.Equal(t, "master", in.Input.Role)
		assert.Equal(t, 7, in.Input.CollaborationID)

		json.NewEncoder(w).Encode(&task.Status{ID: 42})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	created, err := session.CreateTask(noContext, &task.Task{
		Name:            "summary statistics",
		Image:           "registry.example.com/summary",
		CollaborationID: 7,
		Input: task.Input{
			Role:            "master",
			Host:            srv.URL,
			APIPath:         "/api",
			CollaborationID: 7,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, created.ID)
}

func TestSession_GetTaskResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/api/task/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "results", r.URL.Query().Get("include"))
		json.NewEncoder(w).Encode(&task.Status{
			ID:       5,
			Complete: true,
			Results: []task.ResultEnvelope{
				{Result: `{"sum":10}`},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	status, err := session.GetTaskResults(noContext, 5)
	assert.NoError(t, err)
	assert.Len(t, status.Results, 1)
	assert.Equal(t, `{"sum":10}`, status.Results[0].Result)
}

func TestSession_ErrNoBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/api/task/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	_, err = session.GetTask(noContext, 5)
	assert.EqualError(t, err, "Internal Server Error")
}

func TestSession_NoContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/api/task/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	status, err := session.GetTask(noContext, 5)
	assert.NoError(t, err)
	assert.Equal(t, &task.Status{}, status)
}

// The client offers gzip and must transparently decode a
// compressed response body.
func TestSession_Gzip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/user", tokenHandler(t))
	mux.HandleFunc("/api/task/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		gz := gzip.NewWriter(w)
		json.NewEncoder(gz).Encode(&task.Status{ID: 5, Complete: true})
		gz.Close()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newTestClient(srv).Authenticate(noContext)
	assert.NoError(t, err)

	status, err := session.GetTask(noContext, 5)
	assert.NoError(t, err)
	assert.True(t, status.Complete)
}
