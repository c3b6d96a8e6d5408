package types

import "time"

// Task represents a unit of work owned by a user and optionally
// assigned to one of that user's projects.
type Task struct {
	// ID is the unique identifier of the task.
	ID string `json:"id" db:"id"`

	// Title is a short summary of the work.
	Title string `json:"title" db:"title"`

	// Description is optional free text.
	Description *string `json:"description" db:"description"`

	// Priority is one of low, medium or high.
	Priority Priority `json:"priority" db:"priority"`

	// Status is one of pending, in_progress or completed.
	// Any status may follow any other.
	Status Status `json:"status" db:"status"`

	// DueDate is the optional deadline of the task.
	DueDate *time.Time `json:"dueDate" db:"due_date"`

	// ProjectID references the containing project; nil for unassigned tasks.
	ProjectID *string `json:"projectId" db:"project_id"`

	// UserID references the owning user.
	UserID string `json:"userId" db:"user_id"`

	// CreatedAt is the timestamp when the task was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is refreshed on every mutation of the task.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Status is the progress state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// TaskResponse is the allow-listed task shape returned to clients.
type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	ProjectID   *string    `json:"projectId"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Response reshapes the persisted task into its public form.
func (t Task) Response() TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		DueDate:     t.DueDate,
		ProjectID:   t.ProjectID,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TaskCreate carries the fields accepted when creating a task.
type TaskCreate struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	DueDate     *string `json:"dueDate"`
	ProjectID   *string `json:"projectId"`
	UserID      string  `json:"userId"`
}

// TaskPatch carries a partial task update as sent by clients.
type TaskPatch struct {
	ID          string           `json:"id"`
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Priority    Optional[string] `json:"priority"`
	Status      Optional[string] `json:"status"`
	DueDate     Optional[string] `json:"dueDate"`
	ProjectID   Optional[string] `json:"projectId"`
}

// TaskChanges is the validated column set applied by a repository.
// UpdatedAt is always written.
type TaskChanges struct {
	Title       Optional[string]
	Description Optional[string]
	Priority    Optional[Priority]
	Status      Optional[Status]
	DueDate     Optional[time.Time]
	ProjectID   Optional[string]
	UpdatedAt   time.Time
}

// TaskFilter selects the tasks returned by a list operation.
type TaskFilter struct {
	UserID    string
	ProjectID *string
}
