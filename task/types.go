package task

// Task is a unit of remote computation submitted to the
// task execution server.
type Task struct {
	// Name is a human readable label for the task.
	Name string `json:"name"`

	// Image is the container image that executes the task.
	Image string `json:"image"`

	// CollaborationID identifies the collaboration the
	// task is submitted to.
	CollaborationID int `json:"collaboration_id"`

	// Input provides the execution input handed to the
	// master container.
	Input Input `json:"input"`

	// Database selects a server side database. The server
	// requires the key even when no database is used.
	Database string `json:"database"`

	// Description is an optional free form description.
	Description string `json:"description"`
}

// Input provides the execution input for a task. The master
// container uses it to reach back to the server that
// scheduled it.
type Input struct {
	Role            string `json:"role"`
	Host            string `json:"host"`
	APIPath         string `json:"api_path"`
	CollaborationID int    `json:"collaboration_id"`
}

// Status reports the server side state of a task.
type Status struct {
	// ID provides the unique task identifier assigned
	// by the server.
	ID int `json:"id"`

	// Complete reports whether all task results are
	// available.
	Complete bool `json:"complete"`

	// Results holds the task results. The server populates
	// it only when results are explicitly requested.
	Results []ResultEnvelope `json:"results"`
}

// ResultEnvelope wraps a single task result. The Result field
// holds a JSON document encoded as a string; it is decoded
// separately from the surrounding response.
type ResultEnvelope struct {
	Result string `json:"result"`
}
