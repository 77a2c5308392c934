package incident

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// Schema version is tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS incidents (
    id                TEXT PRIMARY KEY,
    title             TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    severity          TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'OPEN',
    affected_services TEXT NOT NULL DEFAULT '[]',
    symptoms          TEXT NOT NULL DEFAULT '[]',
    suggested_actions TEXT NOT NULL DEFAULT '[]',
    alert             TEXT NOT NULL DEFAULT '{}',
    report            TEXT NOT NULL DEFAULT '',
    postmortem        TEXT NOT NULL DEFAULT '',
    lessons_learned   TEXT NOT NULL DEFAULT '[]',
    created_at        DATETIME NOT NULL,
    updated_at        DATETIME NOT NULL,
    resolved_at       DATETIME
);
CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at DESC);

CREATE TABLE IF NOT EXISTS timeline_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    incident_id  TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
    occurred_at  DATETIME NOT NULL,
    source       TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timeline_incident ON timeline_events(incident_id, occurred_at ASC);

CREATE TABLE IF NOT EXISTS action_items (
    id               TEXT PRIMARY KEY,
    incident_id      TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
    description      TEXT NOT NULL,
    priority         TEXT NOT NULL DEFAULT 'MEDIUM',
    category         TEXT NOT NULL DEFAULT 'other',
    estimated_effort TEXT NOT NULL DEFAULT '',
    ticket_id        TEXT NOT NULL DEFAULT '',
    ticket_url       TEXT NOT NULL DEFAULT '',
    created_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_items_incident ON action_items(incident_id);

CREATE TABLE IF NOT EXISTS incident_sequences (
    date_key TEXT PRIMARY KEY,
    seq      INTEGER NOT NULL DEFAULT 0
);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path
// and runs all pending schema migrations. Pass ":memory:" for an
// in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqliteStore) SaveIncident(ctx context.Context, inc *models.Incident) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	services := marshalJSON(inc.AffectedServices)
	symptoms := marshalJSON(inc.Symptoms)
	actions := marshalJSON(inc.SuggestedActions)
	lessons := marshalJSON(inc.LessonsLearned)
	alert := marshalJSON(inc.Alert)

	var resolvedAt any
	if inc.ResolvedAt != nil {
		resolvedAt = inc.ResolvedAt.UTC()
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO incidents(id, title, description, severity, status, affected_services, symptoms,
            suggested_actions, alert, report, postmortem, lessons_learned, created_at, updated_at, resolved_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            title             = excluded.title,
            description       = excluded.description,
            severity          = excluded.severity,
            status            = excluded.status,
            affected_services = excluded.affected_services,
            symptoms          = excluded.symptoms,
            suggested_actions = excluded.suggested_actions,
            report            = excluded.report,
            postmortem        = excluded.postmortem,
            lessons_learned   = excluded.lessons_learned,
            updated_at        = excluded.updated_at,
            resolved_at       = excluded.resolved_at
    `,
		inc.ID, inc.Title, inc.Description, string(inc.Severity), string(inc.Status),
		services, symptoms, actions, alert, inc.Report, inc.Postmortem, lessons,
		inc.CreatedAt.UTC(), inc.UpdatedAt.UTC(), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert incident: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM timeline_events WHERE incident_id=?`, inc.ID); err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}
	for _, ev := range inc.Timeline {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO timeline_events(incident_id, occurred_at, source, description)
            VALUES(?,?,?,?)
        `, inc.ID, ev.OccurredAt.UTC(), ev.Source, ev.Description)
		if err != nil {
			return fmt.Errorf("insert timeline event: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_items WHERE incident_id=?`, inc.ID); err != nil {
		return fmt.Errorf("delete action items: %w", err)
	}
	for _, item := range inc.ActionItems {
		var ticketID, ticketURL string
		if item.Ticket != nil {
			ticketID, ticketURL = item.Ticket.ID, item.Ticket.URL
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO action_items(id, incident_id, description, priority, category, estimated_effort, ticket_id, ticket_url, created_at)
            VALUES(?,?,?,?,?,?,?,?,?)
        `, item.ID, inc.ID, item.Description, string(item.Priority), string(item.Category),
			item.EstimatedEffort, ticketID, ticketURL, item.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert action item: %w", err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, title, description, severity, status, affected_services, symptoms,
            suggested_actions, alert, report, postmortem, lessons_learned, created_at, updated_at, resolved_at
        FROM incidents WHERE id=?`, id)

	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{IncidentID: id}
	}
	if err != nil {
		return nil, err
	}

	tRows, err := s.db.QueryContext(ctx,
		`SELECT occurred_at, source, description FROM timeline_events WHERE incident_id=? ORDER BY occurred_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer tRows.Close()
	for tRows.Next() {
		var ev models.TimelineEvent
		var ts string
		if err := tRows.Scan(&ts, &ev.Source, &ev.Description); err != nil {
			return nil, err
		}
		ev.OccurredAt, _ = parseTime(ts)
		inc.Timeline = append(inc.Timeline, ev)
	}
	if err := tRows.Err(); err != nil {
		return nil, err
	}

	aRows, err := s.db.QueryContext(ctx, `
        SELECT id, description, priority, category, estimated_effort, ticket_id, ticket_url, created_at
        FROM action_items WHERE incident_id=? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query action items: %w", err)
	}
	defer aRows.Close()
	for aRows.Next() {
		var item models.ActionItem
		var prio, cat, ticketID, ticketURL, ts string
		if err := aRows.Scan(&item.ID, &item.Description, &prio, &cat, &item.EstimatedEffort, &ticketID, &ticketURL, &ts); err != nil {
			return nil, err
		}
		item.IncidentID = id
		item.Priority = models.Priority(prio)
		item.Category = models.Category(cat)
		if ticketID != "" {
			item.Ticket = &models.TicketRef{ID: ticketID, URL: ticketURL}
		}
		item.CreatedAt, _ = parseTime(ts)
		inc.ActionItems = append(inc.ActionItems, item)
	}
	if err := aRows.Err(); err != nil {
		return nil, err
	}

	return inc, nil
}

func (s *sqliteStore) ListIncidents(ctx context.Context, limit, offset int) ([]*models.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, title, description, severity, status, affected_services, symptoms,
            suggested_actions, alert, report, postmortem, lessons_learned, created_at, updated_at, resolved_at
        FROM incidents ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inc)
	}
	return result, rows.Err()
}

// NextSequence increments and returns the per-day counter inside a
// transaction so concurrent callers never receive the same number.
func (s *sqliteStore) NextSequence(ctx context.Context, dateKey string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO incident_sequences(date_key, seq) VALUES(?, 1)
        ON CONFLICT(date_key) DO UPDATE SET seq = seq + 1
    `, dateKey)
	if err != nil {
		return 0, fmt.Errorf("bump sequence: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM incident_sequences WHERE date_key=?`, dateKey).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	return seq, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	inc := &models.Incident{}
	var sev, status, services, symptoms, actions, alert, lessons, createdAt, updatedAt string
	var resolvedAt sql.NullString

	err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &sev, &status, &services, &symptoms,
		&actions, &alert, &inc.Report, &inc.Postmortem, &lessons, &createdAt, &updatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	inc.Severity = models.Severity(sev)
	inc.Status = models.Status(status)
	unmarshalJSON(services, &inc.AffectedServices)
	unmarshalJSON(symptoms, &inc.Symptoms)
	unmarshalJSON(actions, &inc.SuggestedActions)
	unmarshalJSON(lessons, &inc.LessonsLearned)
	unmarshalJSON(alert, &inc.Alert)
	inc.CreatedAt, _ = parseTime(createdAt)
	inc.UpdatedAt, _ = parseTime(updatedAt)
	if resolvedAt.Valid && resolvedAt.String != "" {
		if t, err := parseTime(resolvedAt.String); err == nil {
			inc.ResolvedAt = &t
		}
	}
	return inc, nil
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func unmarshalJSON[T any](s string, dst *T) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), dst)
}

// parseTime handles multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
