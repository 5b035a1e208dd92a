/*
sqlite.go - SQLite-backed Store (spec.md §4.8 C8, §6 collections/indexes)

Grounded on store/sqlite/sqlite.go's technique of storing a JSON blob
(there: config_json/metadata_json) alongside indexed columns extracted
from it. This file generalizes that into one physical table per
logical collection: a handful of columns named in spec.md §6's index
list are extracted at write time for indexed lookups, and the full
document is also kept as a JSON blob so arbitrary fields survive
round-trip without a migration for every new field.

Where/Match predicates on a field that isn't one of the extracted
columns fall back to SQLite's json_extract() over the blob column —
still pushed down to SQL, never loaded into Go and filtered in a loop
(spec.md §4.7 "forbidden" load-then-filter patterns).
*/
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cocrecords/coc-engine/coc"
)

// columnSpec extracts an indexed physical column from a document, per
// the index list in spec.md §6.
type columnSpec struct {
	name    string
	sqlType string
	extract func(Doc) any
}

var schemas = map[string][]columnSpec{
	"overtimeLogs": {
		{"employee_id", "TEXT", field("employeeId")},
		{"month_name", "TEXT", field("monthName")},
		{"year", "INTEGER", field("year")},
		{"status", "TEXT", field("status")},
		{"date_worked", "TEXT", dateField("dateWorked")},
	},
	"creditBatches": {
		{"employee_id", "TEXT", field("employeeId")},
		{"status", "TEXT", field("status")},
		{"earned_month", "TEXT", field("earnedMonth")},
		{"earned_year", "INTEGER", field("earnedYear")},
	},
	"certificates": {
		{"employee_id", "TEXT", field("employeeId")},
		{"year", "INTEGER", field("year")},
		{"month_name", "TEXT", field("monthName")},
	},
	"holidays": {
		{"year", "INTEGER", field("year")},
		{"date", "TEXT", dateField("date")},
	},
	"ledger": {
		{"employee_id", "TEXT", field("employeeId")},
		{"batch_id", "TEXT", field("batchId")},
	},
	"employees": {
		{"status", "TEXT", field("status")},
	},
}

func field(name string) func(Doc) any {
	return func(d Doc) any { return d[name] }
}

func dateField(name string) func(Doc) any {
	return func(d Doc) any {
		v, ok := d[name]
		if !ok {
			return nil
		}
		if date, ok := v.(coc.Date); ok {
			return date.ISO()
		}
		return v
	}
}

// logicalToColumn documents the field-name mapping this adapter owns
// (spec.md §4.8 "the adapter is the one place this mapping lives").
var logicalToColumn = map[string]map[string]string{
	"overtimeLogs": {
		"employeeId": "employee_id", "monthName": "month_name", "year": "year",
		"status": "status", "dateWorked": "date_worked",
	},
	"creditBatches": {
		"employeeId": "employee_id", "status": "status",
		"earnedMonth": "earned_month", "earnedYear": "earned_year",
	},
	"certificates": {"employeeId": "employee_id", "year": "year", "monthName": "month_name"},
	"holidays":     {"year": "year", "date": "date"},
	"ledger":       {"employeeId": "employee_id", "batchId": "batch_id"},
	"employees":    {"status": "status"},
}

// SQLite is the production Store, backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (and migrates) a SQLite-backed Store at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

var knownCollections = []string{
	"employees", "overtimeLogs", "certificates", "creditBatches",
	"ledger", "holidays", "configuration", "libraries", "locks",
}

func (s *SQLite) migrate() error {
	for _, coll := range knownCollections {
		if err := s.ensureTable(coll); err != nil {
			return err
		}
	}
	return nil
}

func tableName(collection string) string { return "doc_" + collection }

func (s *SQLite) ensureTable(collection string) error {
	cols := schemas[collection]
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc TEXT NOT NULL", tableName(collection))
	for _, c := range cols {
		fmt.Fprintf(&b, ", %s %s", c.name, c.sqlType)
	}
	b.WriteString(")")
	if _, err := s.db.Exec(b.String()); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	for _, c := range cols {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", collection, c.name, tableName(collection), c.name)
		if _, err := s.db.Exec(idx); err != nil {
			return coc.NewError(coc.KindStoreUnavailable, err.Error())
		}
	}
	return nil
}

func encodeDoc(fields Doc) (string, error) {
	b, err := json.Marshal(map[string]any(fields))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeDoc(raw string) (Doc, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	// coc.Date is written as its ISO calendar-date string; turn such
	// strings back into coc.Date so readers get the type they stored.
	for k, v := range m {
		if s, ok := v.(string); ok && k != "id" && len(s) == len("2006-01-02") {
			if d, err := coc.ParseDate(s); err == nil {
				m[k] = d
			}
		}
	}
	return Doc(m), nil
}

func (s *SQLite) insertValues(collection, id string, fields Doc) ([]string, []any) {
	names := []string{"id", "doc"}
	// The blob carries the id too, so read paths return it under "id"
	// as the Memory store does.
	stored := make(Doc, len(fields)+1)
	for k, v := range fields {
		stored[k] = v
	}
	stored["id"] = id
	docJSON, _ := encodeDoc(stored)
	values := []any{id, docJSON}
	for _, c := range schemas[collection] {
		names = append(names, c.name)
		values = append(values, c.extract(fields))
	}
	return names, values
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Doc, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", tableName(collection)), id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return decodeDoc(raw)
}

func (s *SQLite) GetMany(ctx context.Context, collection string, max int) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT doc FROM %s ORDER BY id LIMIT ?", tableName(collection)), max)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	defer rows.Close()
	return scanDocs(rows)
}

func scanDocs(rows *sql.Rows) ([]Doc, error) {
	var out []Doc
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, coc.NewError(coc.KindInternal, err.Error())
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// columnOrJSONPath resolves a logical field to a SQL expression: the
// extracted column if one exists, else a json_extract() over the blob.
func columnOrJSONPath(collection, fieldName string) string {
	if col, ok := logicalToColumn[collection][fieldName]; ok {
		return col
	}
	return fmt.Sprintf("json_extract(doc, '$.%s')", fieldName)
}

func sqlOp(op Op) (string, error) {
	switch op {
	case OpEqual:
		return "=", nil
	case OpNotEqual:
		return "!=", nil
	case OpLess:
		return "<", nil
	case OpLessEqual:
		return "<=", nil
	case OpGreater:
		return ">", nil
	case OpGreaterEqual:
		return ">=", nil
	}
	return "", coc.NewError(coc.KindInternal, fmt.Sprintf("unsupported operator %q", op))
}

func normalizeValue(v any) any {
	if d, ok := v.(coc.Date); ok {
		return d.ISO()
	}
	return v
}

func (s *SQLite) Where(ctx context.Context, collection, fieldName string, op Op, value any) ([]Doc, error) {
	expr := columnOrJSONPath(collection, fieldName)
	opStr, err := sqlOp(op)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT doc FROM %s WHERE %s %s ? ORDER BY id", tableName(collection), expr, opStr)
	rows, err := s.db.QueryContext(ctx, query, normalizeValue(value))
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	defer rows.Close()
	return scanDocs(rows)
}

func (s *SQLite) Match(ctx context.Context, collection string, criteria Doc) ([]Doc, error) {
	var clauses []string
	var args []any
	for fieldName, value := range criteria {
		clauses = append(clauses, fmt.Sprintf("%s = ?", columnOrJSONPath(collection, fieldName)))
		args = append(args, normalizeValue(value))
	}
	query := fmt.Sprintf("SELECT doc FROM %s", tableName(collection))
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	defer rows.Close()
	return scanDocs(rows)
}

func (s *SQLite) Create(ctx context.Context, collection, id string, fields Doc) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return coc.NewError(coc.KindAlreadyExists, fmt.Sprintf("%s/%s already exists", collection, id))
	}
	names, values := s.insertValues(collection, id, fields)
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableName(collection), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, patch Doc) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return coc.NewError(coc.KindNotFound, fmt.Sprintf("%s/%s not found", collection, id))
	}
	merged := make(Doc, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return s.replace(ctx, collection, id, merged)
}

func (s *SQLite) Upsert(ctx context.Context, collection, id string, fields Doc) error {
	return s.replace(ctx, collection, id, fields)
}

func (s *SQLite) replace(ctx context.Context, collection, id string, fields Doc) error {
	names, values := s.insertValues(collection, id, fields)
	assignments := make([]string, len(names))
	for i, n := range names {
		assignments[i] = fmt.Sprintf("%s = ?", n)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		tableName(collection),
		strings.Join(names, ", "),
		strings.Join(placeholdersFor(len(names)), ", "),
		strings.Join(assignments, ", "))
	args := append(append([]any{}, values...), values...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

func placeholdersFor(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "?"
	}
	return out
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(collection)), id); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLite) DeleteMany(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Join(placeholdersFor(len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", tableName(collection), placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

func (s *SQLite) MaxID(ctx context.Context, collection, idField string) (int64, error) {
	expr := columnOrJSONPath(collection, idField)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COALESCE(MAX(CAST(%s AS INTEGER)), 0) FROM %s", expr, tableName(collection)))
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return max + 1, nil
}

// BatchWrite applies every op inside one SQL transaction: either all
// writes commit or none do (spec.md §4.8, required by §4.5).
func (s *SQLite) BatchWrite(ctx context.Context, ops []WriteOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	txStore := &sqliteTx{tx: tx}
	for _, op := range ops {
		var opErr error
		switch op.Kind {
		case WriteCreate:
			opErr = txStore.create(ctx, op.Collection, op.ID, op.Fields)
		case WriteUpdate:
			opErr = txStore.update(ctx, op.Collection, op.ID, op.Fields)
		case WriteUpsert:
			opErr = txStore.replace(ctx, op.Collection, op.ID, op.Fields)
		case WriteDelete:
			_, opErr = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(op.Collection)), op.ID)
		default:
			opErr = coc.NewError(coc.KindInternal, fmt.Sprintf("unknown write kind %q", op.Kind))
		}
		if opErr != nil {
			_ = tx.Rollback()
			return opErr
		}
	}
	if err := tx.Commit(); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

// sqliteTx mirrors the non-transactional helpers above but runs against
// an in-flight *sql.Tx, exactly as store/sqlite/sqlite.go splits its
// connection-vs-transaction execution paths.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) get(ctx context.Context, collection, id string) (Doc, error) {
	row := t.tx.QueryRowContext(ctx, fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", tableName(collection)), id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return decodeDoc(raw)
}

func (t *sqliteTx) create(ctx context.Context, collection, id string, fields Doc) error {
	existing, err := t.get(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return coc.NewError(coc.KindAlreadyExists, fmt.Sprintf("%s/%s already exists", collection, id))
	}
	names, values := (&SQLite{}).insertValues(collection, id, fields)
	placeholders := placeholdersFor(len(names))
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tableName(collection), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, err := t.tx.ExecContext(ctx, query, values...); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

func (t *sqliteTx) update(ctx context.Context, collection, id string, patch Doc) error {
	existing, err := t.get(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return coc.NewError(coc.KindNotFound, fmt.Sprintf("%s/%s not found", collection, id))
	}
	merged := make(Doc, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return t.replace(ctx, collection, id, merged)
}

func (t *sqliteTx) replace(ctx context.Context, collection, id string, fields Doc) error {
	names, values := (&SQLite{}).insertValues(collection, id, fields)
	assignments := make([]string, len(names))
	for i, n := range names {
		assignments[i] = fmt.Sprintf("%s = ?", n)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		tableName(collection),
		strings.Join(names, ", "),
		strings.Join(placeholdersFor(len(names)), ", "),
		strings.Join(assignments, ", "))
	args := append(append([]any{}, values...), values...)
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}
