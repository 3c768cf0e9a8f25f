// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
//
// Each collection gets its own vec0 virtual table declared with the cosine
// distance metric, plus rows in a shared mapping table carrying the string
// document id, status and updated-at. vec0 tables use integer rowids, so the
// mapping table is also the id translation layer.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/vector"
)

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding vector length. Required.
	Dimensions uint
}

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// NewDriver creates a new sqlite-vec backed index.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_collections (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid         INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id INTEGER NOT NULL,
			doc_id        TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT '',
			updated_at    TIMESTAMP,
			UNIQUE (collection_id, doc_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating mapping tables: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{db: db, dimensions: c.Dimensions, logger: logger}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// collectionID resolves (creating on first use) a collection's integer id and
// ensures its vec0 table exists.
func (d *Driver) collectionID(ctx context.Context, collection string, create bool) (int64, bool, error) {
	var id int64
	err := d.db.QueryRowContext(ctx,
		`SELECT id FROM vec_collections WHERE name = ?`, collection,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("resolving collection: %w", err)
	}
	if !create {
		return 0, false, nil
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO vec_collections (name) VALUES (?)`, collection,
	)
	if err != nil {
		return 0, false, fmt.Errorf("creating collection: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading collection id: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=cosine)`,
		vecTable(id), d.dimensions,
	)
	if _, err := d.db.ExecContext(ctx, createVec); err != nil {
		return 0, false, fmt.Errorf("creating vec0 table: %w", err)
	}

	return id, true, nil
}

func vecTable(collectionID int64) string {
	return fmt.Sprintf("vec_embeddings_%d", collectionID)
}

// Add inserts or replaces documents with their embeddings.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	collID, _, err := d.collectionID(ctx, collection, true)
	if err != nil {
		return err
	}
	table := vecTable(collID)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		embBlob := serializeFloat32(doc.Embedding)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_documents WHERE collection_id = ? AND doc_id = ?`,
			collID, doc.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_documents SET status = ?, updated_at = ? WHERE rowid = ?`,
				doc.Status, doc.UpdatedAt, existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE; replace via DELETE + INSERT.
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, table),
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_documents(collection_id, doc_id, status, updated_at) VALUES (?, ?, ?, ?)`,
				collID, doc.ID, doc.Status, doc.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}
			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, table),
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query runs a KNN search in the collection's vec0 table. With the cosine
// metric, distance = 1 - similarity, so scores land in [-1, 1].
func (d *Driver) Query(ctx context.Context, collection string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	collID, ok, err := d.collectionID(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.doc_id, d.status, d.updated_at, ve.distance
		FROM %s ve
		INNER JOIN vec_documents d ON d.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, vecTable(collID)), serializeFloat32(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var docID, status string
		var updatedAt time.Time
		var distance float64
		if err := rows.Scan(&docID, &status, &updatedAt, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:        docID,
				Status:    status,
				UpdatedAt: updatedAt,
			},
			Score: float32(1.0 - distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	// vec0 orders by distance only; apply the recency tie-break.
	vector.SortResults(results)
	return results, nil
}

// Get retrieves documents by id; unknown ids are omitted.
func (d *Driver) Get(ctx context.Context, collection string, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	collID, ok, err := d.collectionID(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := []any{collID}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT rowid, doc_id, status, updated_at FROM vec_documents
		WHERE collection_id = ? AND doc_id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	type docRow struct {
		doc   vector.Document
		rowID int64
	}
	var docRows []docRow
	for rows.Next() {
		var dr docRow
		if err := rows.Scan(&dr.rowID, &dr.doc.ID, &dr.doc.Status, &dr.doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docRows = append(docRows, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	rows.Close()

	// Fetch embeddings after closing the cursor; SQLite serializes on a
	// single connection.
	table := vecTable(collID)
	docs := make([]vector.Document, 0, len(docRows))
	for _, dr := range docRows {
		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT embedding FROM %s WHERE rowid = ?`, table), dr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			dr.doc.Embedding, _ = deserializeFloat32(embBlob)
		}
		docs = append(docs, dr.doc)
	}
	return docs, nil
}

// Delete removes documents by id.
func (d *Driver) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	collID, ok, err := d.collectionID(ctx, collection, false)
	if err != nil || !ok {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := []any{collID}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	inClause := strings.Join(placeholders, ",")

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT rowid FROM vec_documents WHERE collection_id = ? AND doc_id IN (%s)`, inClause,
	), args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	table := vecTable(collID)
	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM vec_documents WHERE collection_id = ? AND doc_id IN (%s)`, inClause,
	), args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted documents from sqlite-vec",
		zap.String("collection", collection),
		zap.Int("count", len(ids)),
	)
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
