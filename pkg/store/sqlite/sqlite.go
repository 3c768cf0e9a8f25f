// Package sqlite provides a SQLite-backed store driver.
//
// Records are persisted as JSON documents in a versioned table keyed by
// (id, version); the audit trail is a separate append-only table written in
// the same transaction as every insert or transition. Sensitive content is
// encrypted at rest when a crypto codec is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/crypto"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/memory"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT    NOT NULL,
	version     INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	encrypted   INTEGER NOT NULL DEFAULT 0,
	payload     BLOB    NOT NULL,
	is_current  INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (id, version)
);
CREATE INDEX IF NOT EXISTS idx_memories_current
	ON memories(kind, status) WHERE is_current = 1;

CREATE TABLE IF NOT EXISTS audit_log (
	entry_id    TEXT PRIMARY KEY,
	memory_id   TEXT NOT NULL,
	from_status TEXT NOT NULL DEFAULT '',
	to_status   TEXT NOT NULL,
	actor       TEXT NOT NULL,
	ts          TIMESTAMP NOT NULL,
	reason      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_memory ON audit_log(memory_id, entry_id);

CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
`

// Config holds configuration for the SQLite store driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Codec, when set, encrypts the content of records marked
	// NeedsEncryption before they touch disk.
	Codec *crypto.Codec
}

// Driver implements store.Driver on SQLite.
type Driver struct {
	db     *sql.DB
	codec  *crypto.Codec
	logger *zap.Logger
}

// NewDriver opens (or creates) the database and ensures the schema.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store initialized",
		zap.String("db_path", c.DBPath),
		zap.Bool("encryption", c.Codec != nil),
	)

	return &Driver{db: db, codec: c.Codec, logger: logger}, nil
}

func (d *Driver) encode(m *memory.Memory) ([]byte, error) {
	rec := m
	if m.NeedsEncryption && d.codec != nil {
		rec = m.Clone()
		sealed, err := d.codec.Encrypt(m.Content)
		if err != nil {
			return nil, fmt.Errorf("encrypting content: %w", err)
		}
		rec.Content = sealed
	}
	return json.Marshal(rec)
}

func (d *Driver) decode(payload []byte, encrypted bool) (*memory.Memory, error) {
	var m memory.Memory
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling memory: %w", err)
	}
	if encrypted && d.codec != nil {
		plain, err := d.codec.Decrypt(m.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypting content: %w", err)
		}
		m.Content = plain
	}
	return &m, nil
}

func (d *Driver) insertVersion(ctx context.Context, tx *sql.Tx, m *memory.Memory) error {
	payload, err := d.encode(m)
	if err != nil {
		return err
	}

	encrypted := 0
	if m.NeedsEncryption && d.codec != nil {
		encrypted = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, version, kind, status, updated_at, encrypted, payload, is_current)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`, m.ID, m.Version, string(m.Kind), string(m.Status), m.UpdatedAt, encrypted, payload)
	if err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}
	return nil
}

func (d *Driver) appendAudit(ctx context.Context, tx *sql.Tx, e memory.AuditEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (entry_id, memory_id, from_status, to_status, actor, ts, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.EntryID, e.MemoryID, string(e.FromStatus), string(e.ToStatus), e.Actor, e.Timestamp, e.Reason)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// currentTx loads the current version of a record inside a transaction.
func (d *Driver) currentTx(ctx context.Context, tx *sql.Tx, id string) (*memory.Memory, error) {
	var payload []byte
	var encrypted int
	err := tx.QueryRowContext(ctx, `
		SELECT payload, encrypted FROM memories WHERE id = ? AND is_current = 1
	`, id).Scan(&payload, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading current version: %w", err)
	}
	return d.decode(payload, encrypted == 1)
}

// Put stores a new record together with its creation audit entry in one
// transaction: if the audit append fails the insert rolls back with it.
func (d *Driver) Put(ctx context.Context, m *memory.Memory) (string, error) {
	if err := store.ValidateNew(m); err != nil {
		return "", err
	}

	if m.ID == "" {
		m.ID = memory.NewID()
	}
	now := time.Now().UTC()
	m.Version = 1
	m.CreatedAt = now
	m.UpdatedAt = now

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM memories WHERE id = ?`, m.ID,
	).Scan(&exists); err != nil {
		return "", fmt.Errorf("checking id: %w", err)
	}
	if exists > 0 {
		return "", store.ErrExists
	}

	if err := d.insertVersion(ctx, tx, m); err != nil {
		return "", err
	}

	actor := memory.SystemActor
	if m.GeneratedBy.Human != "" {
		actor = m.GeneratedBy.Human
	}
	if err := d.appendAudit(ctx, tx, memory.NewAuditEntry(m.ID, "", m.Status, actor, "created", now)); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}

	return m.ID, nil
}

// Get returns the current version of a record.
func (d *Driver) Get(ctx context.Context, id string) (*memory.Memory, error) {
	var payload []byte
	var encrypted int
	err := d.db.QueryRowContext(ctx, `
		SELECT payload, encrypted FROM memories WHERE id = ? AND is_current = 1
	`, id).Scan(&payload, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}
	return d.decode(payload, encrypted == 1)
}

// ListByKindStatus returns current versions matching kind and status,
// most recently updated first.
func (d *Driver) ListByKindStatus(ctx context.Context, kind memory.Kind, status memory.Status) ([]*memory.Memory, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT payload, encrypted FROM memories
		WHERE kind = ? AND status = ? AND is_current = 1
		ORDER BY updated_at DESC
	`, string(kind), string(status))
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		var payload []byte
		var encrypted int
		if err := rows.Scan(&payload, &encrypted); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		m, err := d.decode(payload, encrypted == 1)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Transition applies a lifecycle edge, retiring the current version and
// appending the new version plus its audit entry atomically.
func (d *Driver) Transition(ctx context.Context, id string, to memory.Status, actor, reason string, fromVersion int) (*memory.Memory, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := d.currentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	noop, err := store.CheckTransition(cur, to, actor, fromVersion)
	if err != nil {
		return nil, err
	}
	if noop {
		return cur, nil
	}

	now := time.Now().UTC()
	next := cur.Clone()
	next.Version = cur.Version + 1
	next.Status = to
	next.UpdatedAt = now
	if actor != "" && actor != memory.SystemActor {
		next.GeneratedBy = memory.Actor{Human: actor}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE memories SET is_current = 0 WHERE id = ? AND is_current = 1`, id,
	); err != nil {
		return nil, fmt.Errorf("retiring current version: %w", err)
	}

	if err := d.insertVersion(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := d.appendAudit(ctx, tx, memory.NewAuditEntry(id, cur.Status, to, actor, reason, now)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return next, nil
}

func (d *Driver) updateCurrent(ctx context.Context, id string, fromVersion int, mutate func(*memory.Memory) error) (*memory.Memory, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := d.currentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckUpdate(cur, fromVersion); err != nil {
		return nil, err
	}

	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE memories SET is_current = 0 WHERE id = ? AND is_current = 1`, id,
	); err != nil {
		return nil, fmt.Errorf("retiring current version: %w", err)
	}
	if err := d.insertVersion(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return next, nil
}

// SetLinks replaces a persona memory's contradicts/supports sets.
func (d *Driver) SetLinks(ctx context.Context, id string, contradicts, supports []string, fromVersion int) (*memory.Memory, error) {
	for _, ref := range append(append([]string(nil), contradicts...), supports...) {
		if ref == id {
			return nil, store.ErrSelfCitation
		}
	}
	return d.updateCurrent(ctx, id, fromVersion, func(m *memory.Memory) error {
		if m.Jane == nil {
			return store.InvalidTransitionError{ID: id, From: m.Status, To: m.Status}
		}
		m.Jane.Contradicts = append([]string(nil), contradicts...)
		m.Jane.Supports = append([]string(nil), supports...)
		return nil
	})
}

// AttachSession appends a session reference to a client memory.
func (d *Driver) AttachSession(ctx context.Context, id, sessionID string, fromVersion int) (*memory.Memory, error) {
	return d.updateCurrent(ctx, id, fromVersion, func(m *memory.Memory) error {
		if m.Client == nil {
			return store.InvalidTransitionError{ID: id, From: m.Status, To: m.Status}
		}
		for _, existing := range m.Client.Sessions {
			if existing == sessionID {
				return nil
			}
		}
		m.Client.Sessions = append(m.Client.Sessions, sessionID)
		return nil
	})
}

// History returns every retained version, oldest first.
func (d *Driver) History(ctx context.Context, id string) ([]*memory.Memory, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT payload, encrypted FROM memories WHERE id = ? ORDER BY version ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []*memory.Memory
	for rows.Next() {
		var payload []byte
		var encrypted int
		if err := rows.Scan(&payload, &encrypted); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		m, err := d.decode(payload, encrypted == 1)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, store.NotFoundError{ID: id}
	}
	return out, nil
}

// Audit returns the append-only trail for a record, oldest first. Ulid entry
// ids sort in creation order.
func (d *Driver) Audit(ctx context.Context, id string) ([]memory.AuditEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT entry_id, memory_id, from_status, to_status, actor, ts, reason
		FROM audit_log WHERE memory_id = ? ORDER BY entry_id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var out []memory.AuditEntry
	for rows.Next() {
		var e memory.AuditEntry
		var from, to string
		if err := rows.Scan(&e.EntryID, &e.MemoryID, &from, &to, &e.Actor, &e.Timestamp, &e.Reason); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.FromStatus = memory.Status(from)
		e.ToStatus = memory.Status(to)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, store.NotFoundError{ID: id}
	}
	return out, nil
}

// PutSession stores or replaces a session record.
func (d *Driver) PutSession(ctx context.Context, s *memory.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO sessions (id, payload) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, s.ID, payload)
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// GetSession returns a session by id.
func (d *Driver) GetSession(ctx context.Context, id string) (*memory.Session, error) {
	var payload []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE id = ?`, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	var s memory.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &s, nil
}

// AppendSessionMemories merges summary output and memory references into an
// existing session.
func (d *Driver) AppendSessionMemories(ctx context.Context, sessionID string, summary map[string]any, memoryIDs ...string) (*memory.Session, error) {
	s, err := d.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if summary != nil {
		if s.Summary == nil {
			s.Summary = make(map[string]any, len(summary))
		}
		for k, v := range summary {
			s.Summary[k] = v
		}
	}

	have := make(map[string]bool, len(s.MemoryIDs))
	for _, id := range s.MemoryIDs {
		have[id] = true
	}
	for _, id := range memoryIDs {
		if !have[id] {
			s.MemoryIDs = append(s.MemoryIDs, id)
			have[id] = true
		}
	}

	if err := d.PutSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ store.Driver = (*Driver)(nil)
