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

const taskColumns = `id, title, description, priority, status, due_date, project_id, user_id, created_at, updated_at`

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository returns a Postgres-backed TaskRepository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns the user's tasks, narrowed to one project when filter.ProjectID is set.
func (r *TaskRepository) List(ctx context.Context, filter types.TaskFilter) ([]types.Task, error) {
	if !validID(filter.UserID) {
		return []types.Task{}, nil
	}

	var where assignments
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = ` + where.arg(filter.UserID)
	if filter.ProjectID != nil {
		if !validID(*filter.ProjectID) {
			return []types.Task{}, nil
		}
		query += ` AND project_id = ` + where.arg(*filter.ProjectID)
	}
	query += `
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	task.ID = uuid.NewString()
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	const query = `
		INSERT INTO tasks (id, title, description, priority, status, due_date, project_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Priority),
		string(task.Status),
		task.DueDate,
		task.ProjectID,
		task.UserID,
		task.CreatedAt,
		task.UpdatedAt,
	); err != nil {
		return types.Task{}, err
	}

	return task, nil
}

// Update writes the supplied columns plus updated_at and returns the resulting row.
// The stored updated_at is never earlier than one microsecond past its previous value.
func (r *TaskRepository) Update(ctx context.Context, userID, id string, changes types.TaskChanges) (types.Task, error) {
	if !validID(id) || !validID(userID) {
		return types.Task{}, ErrNotFound
	}

	var set assignments
	if changes.Title.Set {
		set.set("title", changes.Title.Value)
	}
	if changes.Description.Set {
		set.set("description", changes.Description.Ptr())
	}
	if changes.Priority.Set {
		set.set("priority", string(changes.Priority.Value))
	}
	if changes.Status.Set {
		set.set("status", string(changes.Status.Value))
	}
	if changes.DueDate.Set {
		set.set("due_date", changes.DueDate.Ptr())
	}
	if changes.ProjectID.Set {
		set.set("project_id", changes.ProjectID.Ptr())
	}
	// updated_at must strictly advance even when the clock does not.
	set.cols = append(set.cols, fmt.Sprintf("updated_at = GREATEST(%s, updated_at + interval '1 microsecond')", set.arg(changes.UpdatedAt)))

	query := fmt.Sprintf(`
		UPDATE tasks
		SET %s
		WHERE id = %s AND user_id = %s
		RETURNING %s`, set.String(), set.arg(id), set.arg(userID), taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, set.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) || !validID(userID) {
		return ErrNotFound
	}

	const query = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
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

func scanTask(row rowScanner) (types.Task, error) {
	var (
		task        types.Task
		description sql.NullString
		priority    string
		status      string
		dueDate     sql.NullTime
		projectID   sql.NullString
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&priority,
		&status,
		&dueDate,
		&projectID,
		&task.UserID,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return types.Task{}, err
	}
	task.Description = nullString(description)
	task.Priority = types.Priority(priority)
	task.Status = types.Status(status)
	task.DueDate = nullTime(dueDate)
	task.ProjectID = nullString(projectID)
	return task, nil
}
