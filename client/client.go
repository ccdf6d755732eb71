package client

import (
	"context"

	"github.com/distributedlearning/go-task-client/task"
)

type (
	// TokenRequest is the credential payload sent to the
	// token endpoint.
	TokenRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// TokenResponse is returned by the token endpoint on
	// successful authentication.
	TokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
)

// Client is an interface which defines methods for interacting
// with the task execution server.
type Client interface {
	// CreateTask submits a task for execution and returns the
	// server representation, including the assigned identifier.
	CreateTask(ctx context.Context, t *task.Task) (*task.Status, error)

	// GetTask fetches the current status of a task.
	GetTask(ctx context.Context, id int) (*task.Status, error)

	// GetTaskResults fetches the status of a task with its
	// results included.
	GetTaskResults(ctx context.Context, id int) (*task.Status, error)
}
