package types

import "time"

// Project is a named grouping of tasks owned by exactly one user.
type Project struct {
	// ID is the unique identifier of the project.
	ID string `json:"id" db:"id"`

	// Name is the human-readable project name.
	Name string `json:"name" db:"name"`

	// Description is optional free text; nil means no description.
	Description *string `json:"description" db:"description"`

	// UserID references the owning user.
	UserID string `json:"userId" db:"user_id"`

	// CreatedAt is the timestamp when the project was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ProjectResponse is the allow-listed project shape returned to clients.
type ProjectResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	UserID      string  `json:"userId"`
}

// Response reshapes the persisted project into its public form.
func (p Project) Response() ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		UserID:      p.UserID,
	}
}

// ProjectCreate carries the fields accepted when creating a project.
type ProjectCreate struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	UserID      string  `json:"userId"`
}

// ProjectPatch carries a partial project update as sent by clients.
type ProjectPatch struct {
	ID          string           `json:"id"`
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
}

// ProjectChanges is the validated column set applied by a repository.
// Unset fields are left untouched.
type ProjectChanges struct {
	Name        Optional[string]
	Description Optional[string]
}

// Empty reports whether no column would be written.
func (c ProjectChanges) Empty() bool {
	return !c.Name.Set && !c.Description.Set
}
