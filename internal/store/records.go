package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one row of a mock backend resource.
type Record struct {
	Resource string
	ID       string
	Label    string
	Status   int
	Data     map[string]any
	Created  time.Time
	Updated  time.Time
}

// MarshalJSON flattens Data next to the fixed fields, the way the REST
// backend returns rows.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Data)+4)
	maps.Copy(out, r.Data)
	out["id"] = r.ID
	out["status"] = r.Status
	out["createdAt"] = r.Created
	out["updatedAt"] = r.Updated
	return json.Marshal(out)
}

// ListOptions selects a page of records.
type ListOptions struct {
	Resource string
	Limit    int // 0 = no limit
	Offset   int
	Search   string            // case-insensitive substring on label
	Where    map[string]string // exact match on data fields; "status" matches the column
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// labelOf picks the display label out of a payload.
func labelOf(data map[string]any) string {
	for _, k := range []string{"name", "label", "title", "description"} {
		if v, ok := data[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// InsertRecord stores data under a fresh uuid and returns the new record.
// A numeric "status" in data sets the status column; otherwise it starts active (1).
func (s *Store) InsertRecord(resource string, data map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data = maps.Clone(data)
	if data == nil {
		data = map[string]any{}
	}
	status := 1
	if v, ok := data["status"].(float64); ok {
		status = int(v)
	}
	delete(data, "status")
	delete(data, "id")

	now := time.Now().UTC()
	rec := Record{
		Resource: resource,
		ID:       uuid.NewString(),
		Label:    labelOf(data),
		Status:   status,
		Data:     data,
		Created:  now,
		Updated:  now,
	}

	blob, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("encode record: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO records (resource, id, label, status, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Resource, rec.ID, rec.Label, rec.Status, string(blob), rec.Created, rec.Updated)
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

// GetRecord returns one record or ErrNotFound.
func (s *Store) GetRecord(resource, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRecordLocked(resource, id)
}

func (s *Store) getRecordLocked(resource, id string) (Record, error) {
	row := s.db.QueryRow(`
		SELECT resource, id, label, status, data, created_at, updated_at
		FROM records WHERE resource = ? AND id = ?
	`, resource, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// UpdateRecord merges patch into the stored data. A "status" key in the
// patch updates the status column.
func (s *Store) UpdateRecord(resource, id string, patch map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getRecordLocked(resource, id)
	if err != nil {
		return Record{}, err
	}

	for k, v := range patch {
		switch k {
		case "id":
		case "status":
			if n, ok := v.(float64); ok {
				rec.Status = int(n)
			}
		default:
			rec.Data[k] = v
		}
	}
	rec.Label = labelOf(rec.Data)
	rec.Updated = time.Now().UTC()

	blob, err := json.Marshal(rec.Data)
	if err != nil {
		return Record{}, fmt.Errorf("encode record: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE records SET label = ?, status = ?, data = ?, updated_at = ?
		WHERE resource = ? AND id = ?
	`, rec.Label, rec.Status, string(blob), rec.Updated, resource, id)
	if err != nil {
		return Record{}, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

// SetStatus changes only the status column.
func (s *Store) SetStatus(resource, id string, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE records SET status = ?, updated_at = ? WHERE resource = ? AND id = ?
	`, status, time.Now().UTC(), resource, id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecords returns a page of records plus the total matching count.
// Ordered by insertion so skip/limit pages are stable.
func (s *Store) ListRecords(opts ListOptions) ([]Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"resource = ?"}
	args := []any{opts.Resource}

	if opts.Search != "" {
		where = append(where, "label LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(opts.Search)+"%")
	}

	keys := make([]string, 0, len(opts.Where))
	for k := range opts.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := opts.Where[k]
		switch {
		case k == "status":
			where = append(where, "status = ?")
			args = append(args, v)
		case fieldName.MatchString(k):
			where = append(where, "CAST(json_extract(data, '$."+k+"') AS TEXT) = ?")
			args = append(args, v)
		default:
			return nil, 0, fmt.Errorf("list records: bad filter field %q", k)
		}
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	query := `SELECT resource, id, label, status, data, created_at, updated_at
		FROM records WHERE ` + cond + ` ORDER BY rowid`
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountRecords returns how many rows a resource holds.
func (s *Store) CountRecords(resource string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE resource = ?", resource).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var blob string
	if err := sc.Scan(&rec.Resource, &rec.ID, &rec.Label, &rec.Status, &blob, &rec.Created, &rec.Updated); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(blob), &rec.Data); err != nil {
		return Record{}, fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
