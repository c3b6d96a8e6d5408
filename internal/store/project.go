package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tasktrack/apiserver/types"
)

const projectColumns = `id, name, description, user_id, created_at`

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository returns a Postgres-backed ProjectRepository.
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]types.Project, error) {
	if !validID(userID) {
		return []types.Project{}, nil
	}

	const query = `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return projects, nil
}

func (r *ProjectRepository) Get(ctx context.Context, userID, id string) (types.Project, error) {
	if !validID(id) || !validID(userID) {
		return types.Project{}, ErrNotFound
	}

	const query = `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE id = $1 AND user_id = $2`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	project.ID = uuid.NewString()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO projects (id, name, description, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		project.ID,
		project.Name,
		project.Description,
		project.UserID,
		project.CreatedAt,
	); err != nil {
		return types.Project{}, err
	}

	return project, nil
}

// Update writes only the columns present in changes and returns the resulting row.
func (r *ProjectRepository) Update(ctx context.Context, userID, id string, changes types.ProjectChanges) (types.Project, error) {
	if !validID(id) || !validID(userID) {
		return types.Project{}, ErrNotFound
	}
	if changes.Empty() {
		return r.Get(ctx, userID, id)
	}

	var set assignments
	if changes.Name.Set {
		set.set("name", changes.Name.Value)
	}
	if changes.Description.Set {
		set.set("description", changes.Description.Ptr())
	}

	query := fmt.Sprintf(`
		UPDATE projects
		SET %s
		WHERE id = %s AND user_id = %s
		RETURNING %s`, set.String(), set.arg(id), set.arg(userID), projectColumns)

	project, err := scanProject(r.db.QueryRowContext(ctx, query, set.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

// Delete removes the project; its tasks are removed by the foreign key cascade.
func (r *ProjectRepository) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) || !validID(userID) {
		return ErrNotFound
	}

	const query = `DELETE FROM projects WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (types.Project, error) {
	var project types.Project
	var description sql.NullString
	if err := row.Scan(
		&project.ID,
		&project.Name,
		&description,
		&project.UserID,
		&project.CreatedAt,
	); err != nil {
		return types.Project{}, err
	}
	project.Description = nullString(description)
	return project, nil
}
