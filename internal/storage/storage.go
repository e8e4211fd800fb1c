package storage

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskdeck/internal/task"
)

// timeLayout keeps stored timestamps lexically ordered.
const timeLayout = time.RFC3339

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
	user_id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS user_details (
	UUID TEXT PRIMARY KEY REFERENCES credentials(user_id),
	email TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	created_by TEXT NOT NULL,
	title TEXT NOT NULL,
	deadline TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(created_by);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTaskColumns()
}

func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"priority":   "ALTER TABLE tasks ADD COLUMN priority TEXT NOT NULL DEFAULT 'medium';",
		"created_at": "ALTER TABLE tasks ADD COLUMN created_at TEXT NOT NULL DEFAULT '';",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

// TasksByOwner returns the owner's rows, latest deadline first. Ties keep
// insertion order.
func (s *Store) TasksByOwner(ctx context.Context, owner string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_by, title, deadline, priority, created_at FROM tasks WHERE created_by = ? ORDER BY deadline DESC, rowid ASC;`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) InsertTask(ctx context.Context, owner string, p task.Payload) (task.Task, error) {
	t := task.Task{
		ID:        uuid.NewString(),
		CreatedBy: owner,
		Title:     p.Title,
		Deadline:  p.Deadline.UTC().Truncate(time.Second),
		Priority:  p.Priority,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (id, created_by, title, deadline, priority, created_at) VALUES (?, ?, ?, ?, ?, ?);`,
		t.ID, t.CreatedBy, t.Title, t.Deadline.Format(timeLayout), string(t.Priority), t.CreatedAt.Format(timeLayout))
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// UpdateTask applies patch to the owner's row id.
func (s *Store) UpdateTask(ctx context.Context, owner, id string, patch task.Patch) (task.Task, error) {
	sets := []string{}
	args := []any{}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, patch.Deadline.UTC().Format(timeLayout))
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if len(sets) > 0 {
		args = append(args, id, owner)
		res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND created_by = ?;`, args...)
		if err != nil {
			return task.Task{}, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return task.Task{}, &task.NotFoundError{Kind: "task", ID: id}
		}
	}
	return s.taskByID(ctx, owner, id)
}

func (s *Store) DeleteTask(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND created_by = ?;`, id, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &task.NotFoundError{Kind: "task", ID: id}
	}
	return nil
}

func (s *Store) taskByID(ctx context.Context, owner, id string) (task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_by, title, deadline, priority, created_at FROM tasks WHERE id = ? AND created_by = ?;`, id, owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, &task.NotFoundError{Kind: "task", ID: id}
	}
	return t, err
}

func (s *Store) Profile(ctx context.Context, userID string) (task.Profile, error) {
	var p task.Profile
	err := s.db.QueryRowContext(ctx, `SELECT UUID, email, first_name, last_name FROM user_details WHERE UUID = ?;`, userID).
		Scan(&p.UUID, &p.Email, &p.FirstName, &p.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Profile{}, &task.NotFoundError{Kind: "profile", ID: userID}
	}
	if err != nil {
		return task.Profile{}, err
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(r scanner) (task.Task, error) {
	var t task.Task
	var deadlineStr, priority, createdStr string
	if err := r.Scan(&t.ID, &t.CreatedBy, &t.Title, &deadlineStr, &priority, &createdStr); err != nil {
		return task.Task{}, err
	}
	t.Priority = task.Priority(priority)
	if parsed, err := time.Parse(timeLayout, deadlineStr); err == nil {
		t.Deadline = parsed
	}
	if created, err := time.Parse(timeLayout, createdStr); err == nil {
		t.CreatedAt = created
	}
	return t, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
