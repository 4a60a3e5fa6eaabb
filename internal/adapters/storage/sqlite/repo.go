package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// connPragmas apply to every pooled connection.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository is the sqlite-backed lead store.
type Repository struct {
	db *sqlx.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlx.Open(driverName, path+"?"+connPragmas+"&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database. It pins the pool to one connection so every query sees the same data.
func OpenInMemory() (*Repository, error) {
	db, err := sqlx.Open(driverName, ":memory:?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newRepository(db)
}

func newRepository(db *sqlx.DB) (*Repository, error) {
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			source_type TEXT NOT NULL,
			primary_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			priority INTEGER NOT NULL DEFAULT 2,
			owner_id TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lead_tasks (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			title TEXT NOT NULL,
			due_at TEXT,
			status TEXT NOT NULL DEFAULT 'OPEN',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(lead_id) REFERENCES leads(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			actor_id TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			occurred_at TEXT NOT NULL,
			FOREIGN KEY(lead_id) REFERENCES leads(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'agent'
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			stages_json TEXT NOT NULL,
			sla_json TEXT NOT NULL DEFAULT '{}',
			rules_json TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_owner ON leads(owner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_lead_tasks_lead ON lead_tasks(lead_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_lead_occurred ON activities(lead_id, occurred_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	// stage_changed_at arrived after the first schema.
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE leads ADD COLUMN stage_changed_at TEXT`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate leads.stage_changed_at: %w", err)
	}
	return r.normalizeTimestamps(ctx)
}

// timestampColumns lists every stored timestamp as table, key column, value column.
var timestampColumns = [][3]string{
	{"leads", "id", "created_at"},
	{"leads", "id", "updated_at"},
	{"leads", "id", "stage_changed_at"},
	{"lead_tasks", "id", "due_at"},
	{"lead_tasks", "id", "created_at"},
	{"lead_tasks", "id", "updated_at"},
	{"activities", "id", "occurred_at"},
	{"pipeline_settings", "id", "updated_at"},
}

// normalizeTimestamps rewrites variable-width values from older databases into the fixed-width layout.
func (r *Repository) normalizeTimestamps(ctx context.Context) error {
	width := len("2006-01-02T15:04:05.000000000Z")
	for _, col := range timestampColumns {
		table, key, name := col[0], col[1], col[2]
		var rows []struct {
			Key   string `db:"k"`
			Value string `db:"v"`
		}
		query := fmt.Sprintf(`SELECT %s AS k, %s AS v FROM %s WHERE %s IS NOT NULL AND %s <> '' AND length(%s) <> ?`, key, name, table, name, name, name)
		if err := r.db.SelectContext(ctx, &rows, query, width); err != nil {
			return fmt.Errorf("scan %s.%s timestamps: %w", table, name, err)
		}
		for _, row := range rows {
			parsed, err := time.Parse(time.RFC3339Nano, row.Value)
			if err != nil {
				continue
			}
			stmt := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, table, name, key)
			if _, err := r.db.ExecContext(ctx, stmt, ts(parsed), row.Key); err != nil {
				return fmt.Errorf("normalize %s.%s: %w", table, name, err)
			}
		}
	}
	return nil
}

// CreateLead inserts a lead.
func (r *Repository) CreateLead(ctx context.Context, l domain.Lead) error {
	row, err := leadRowFromDomain(l)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO leads(id, source_type, primary_name, phone, email, stage, status, priority, owner_id, tags_json, created_at, updated_at, stage_changed_at)
		VALUES (:id, :source_type, :primary_name, :phone, :email, :stage, :status, :priority, :owner_id, :tags_json, :created_at, :updated_at, :stage_changed_at)
	`, row)
	return err
}

// GetLead returns one lead.
func (r *Repository) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	var row leadRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM leads WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lead{}, app.ErrNotFound
		}
		return domain.Lead{}, err
	}
	return row.toDomain()
}

// ListLeads lists leads newest-updated first.
func (r *Repository) ListLeads(ctx context.Context, filter app.LeadFilter) ([]domain.Lead, error) {
	query := `SELECT * FROM leads`
	where := make([]string, 0, 2)
	args := make([]any, 0, 5)
	if q := strings.ToLower(strings.TrimSpace(filter.Search)); q != "" {
		like := "%" + escapeLike(q) + "%"
		where = append(where, `(lower(primary_name) LIKE ? ESCAPE '\' OR lower(phone) LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if owner := strings.TrimSpace(filter.OwnerID); owner != "" {
		where = append(where, `owner_id = ?`)
		args = append(args, owner)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []leadRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Lead, 0, len(rows))
	for _, row := range rows {
		lead, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, nil
}

// ApplyLeadChange writes a lead update with its tasks and activities in one transaction.
func (r *Repository) ApplyLeadChange(ctx context.Context, change app.LeadChange) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if change.Lead != nil {
		var row leadRow
		row, err = leadRowFromDomain(*change.Lead)
		if err != nil {
			return err
		}
		var res sql.Result
		res, err = tx.NamedExecContext(ctx, `
			UPDATE leads
			SET source_type = :source_type, primary_name = :primary_name, phone = :phone, email = :email, stage = :stage,
				status = :status, priority = :priority, owner_id = :owner_id, tags_json = :tags_json,
				updated_at = :updated_at, stage_changed_at = :stage_changed_at
			WHERE id = :id
		`, row)
		if err != nil {
			return err
		}
		if err = translateNoRows(res); err != nil {
			return err
		}
	}
	for _, t := range change.NewTasks {
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO lead_tasks(id, lead_id, title, due_at, status, created_at, updated_at)
			VALUES (:id, :lead_id, :title, :due_at, :status, :created_at, :updated_at)
		`, taskRowFromDomain(t)); err != nil {
			return err
		}
	}
	for _, t := range change.TaskUpdates {
		var res sql.Result
		res, err = tx.NamedExecContext(ctx, `
			UPDATE lead_tasks SET title = :title, due_at = :due_at, status = :status, updated_at = :updated_at
			WHERE id = :id
		`, taskRowFromDomain(t))
		if err != nil {
			return err
		}
		if err = translateNoRows(res); err != nil {
			return err
		}
	}
	for _, a := range change.Activities {
		var row activityRow
		row, err = activityRowFromDomain(a)
		if err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO activities(id, lead_id, type, title, body, actor_id, metadata_json, occurred_at)
			VALUES (:id, :lead_id, :type, :title, :body, :actor_id, :metadata_json, :occurred_at)
		`, row); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// GetTask returns one task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var row taskRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM lead_tasks WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	return row.toDomain(), nil
}

// ListTasks lists tasks for a lead, or all tasks for an empty id.
func (r *Repository) ListTasks(ctx context.Context, leadID string) ([]domain.Task, error) {
	query := `SELECT * FROM lead_tasks`
	args := []any{}
	if leadID != "" {
		query += ` WHERE lead_id = ?`
		args = append(args, leadID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ListActivities lists activities oldest first, for one lead or for all leads.
func (r *Repository) ListActivities(ctx context.Context, leadID string) ([]domain.Activity, error) {
	query := `SELECT * FROM activities`
	args := []any{}
	if leadID != "" {
		query += ` WHERE lead_id = ?`
		args = append(args, leadID)
	}
	query += ` ORDER BY occurred_at ASC, id ASC`
	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		act, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, nil
}

// UpsertAgent inserts or replaces an agent.
func (r *Repository) UpsertAgent(ctx context.Context, a domain.Agent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO agents(id, name, email, role) VALUES (:id, :name, :email, :role)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, role = excluded.role
	`, agentRow(a))
	return err
}

// ListAgents lists agents by id.
func (r *Repository) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var rows []agentRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM agents ORDER BY id ASC`); err != nil {
		return nil, err
	}
	out := make([]domain.Agent, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Agent(row))
	}
	return out, nil
}

// GetSettings returns the stored pipeline settings.
func (r *Repository) GetSettings(ctx context.Context) (domain.Settings, error) {
	var row settingsRow
	if err := r.db.GetContext(ctx, &row, `SELECT stages_json, sla_json, rules_json FROM pipeline_settings WHERE id = 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Settings{}, app.ErrNotFound
		}
		return domain.Settings{}, err
	}
	return row.toDomain()
}

// SaveSettings replaces the stored pipeline settings.
func (r *Repository) SaveSettings(ctx context.Context, s domain.Settings) error {
	row, err := settingsRowFromDomain(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipeline_settings(id, stages_json, sla_json, rules_json, updated_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET stages_json = excluded.stages_json, sla_json = excluded.sla_json,
			rules_json = excluded.rules_json, updated_at = excluded.updated_at
	`, row.StagesJSON, row.SLAJSON, row.RulesJSON, ts(time.Now()))
	return err
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isDuplicateColumnErr reports whether the expected condition is satisfied.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

// marshalJSON keeps nil slices and maps as their empty JSON forms.
func marshalJSON(v any, empty string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return empty, nil
	}
	return string(raw), nil
}
