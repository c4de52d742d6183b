package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/mgmu/greenlog/internal/plants"
	_ "modernc.org/sqlite"
)

// SQLite keeps the plant collections in a local database file. Writes go
// through this process only, so subscribers are woken up in process after
// every successful write.
type SQLite struct {
	sql  *sql.DB
	user string

	mu   sync.Mutex
	subs map[chan struct{}]string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path, user string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS account (
  uid        TEXT PRIMARY KEY,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS plant (
  id         INTEGER PRIMARY KEY,
  user_id    TEXT NOT NULL REFERENCES account(uid) ON DELETE CASCADE,
  name       TEXT NOT NULL,
  species    TEXT NOT NULL DEFAULT '',
  date_added TEXT NOT NULL,
  image      TEXT NOT NULL DEFAULT '',
  logs       TEXT NOT NULL DEFAULT '[]',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_plant_user ON plant(user_id, id);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{sql: db, user: user, subs: make(map[chan struct{}]string)}, nil
}

func (d *SQLite) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func (d *SQLite) Authenticate(ctx context.Context) (Identity, error) {
	if d.user == "" {
		return Identity{}, &Error{"authenticate", Unauthenticated, ErrNoUser}
	}
	_, err := d.sql.ExecContext(ctx, "INSERT OR IGNORE INTO account(uid) VALUES(?)", d.user)
	if err != nil {
		return Identity{}, &Error{"authenticate", Unavailable, err}
	}
	return Identity{Uid: d.user}, nil
}

// Subscribe sends the current collection of uid, then a fresh snapshot after
// every write to it made through d.
func (d *SQLite) Subscribe(ctx context.Context, uid string) (<-chan Event, error) {
	wake := make(chan struct{}, 1)
	d.mu.Lock()
	d.subs[wake] = uid
	d.mu.Unlock()

	events := make(chan Event, 1)
	go func() {
		defer close(events)
		defer func() {
			d.mu.Lock()
			delete(d.subs, wake)
			d.mu.Unlock()
		}()
		for {
			list, err := d.snapshot(ctx, uid)
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, events, Event{Err: &Error{"subscribe", Unavailable, err}})
				}
				return
			}
			if !send(ctx, events, Event{Plants: list}) {
				return
			}
			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// changed wakes up the subscribers of uid. A subscriber that has not yet
// consumed a previous wake up is not signalled twice.
func (d *SQLite) changed(uid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for wake, u := range d.subs {
		if u != uid {
			continue
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (d *SQLite) snapshot(ctx context.Context, uid string) ([]plants.Plant, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name, species, date_added, image, logs FROM plant WHERE user_id = ? ORDER BY id", uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []plants.Plant{}
	for rows.Next() {
		var (
			id                  int64
			p                   plants.Plant
			date, image, rawLog string
		)
		if err := rows.Scan(&id, &p.Name, &p.Species, &date, &image, &rawLog); err != nil {
			return nil, err
		}
		p.Id = strconv.FormatInt(id, 10)
		p.DateAdded = plants.Date(date)
		p.Image = plants.ImageRef(image)
		if p.Logs, err = decodeLogs([]byte(rawLog)); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (d *SQLite) Insert(ctx context.Context, uid string, p plants.Plant) (string, error) {
	logs, err := json.Marshal(nonNilLogs(p.Logs))
	if err != nil {
		return "", &Error{"insert", Rejected, err}
	}
	res, err := d.sql.ExecContext(ctx, `INSERT INTO plant(user_id, name, species, date_added, image, logs) VALUES(?,?,?,?,?,?)`, uid, p.Name, p.Species, string(p.DateAdded), string(p.Image), string(logs))
	if err != nil {
		return "", sqliteFail("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", &Error{"insert", Unavailable, err}
	}
	d.changed(uid)
	return strconv.FormatInt(id, 10), nil
}

func (d *SQLite) Mutate(ctx context.Context, uid, id string, patch Patch) error {
	sets, args, err := patchColumns(patch, func(int) string { return "?" })
	if err != nil {
		return &Error{"mutate", Rejected, err}
	}
	if len(sets) == 0 {
		return nil
	}
	query := "UPDATE plant SET " + strings.Join(sets, ", ") + " WHERE user_id = ? AND id = ?"
	res, err := d.sql.ExecContext(ctx, query, append(args, uid, id)...)
	if err != nil {
		return sqliteFail("mutate", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &Error{"mutate", NotFound, ErrNotFound}
	}
	d.changed(uid)
	return nil
}

// Remove deletes the plant of given identifier, NotFound if uid has none.
func (d *SQLite) Remove(ctx context.Context, uid, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM plant WHERE user_id = ? AND id = ?", uid, id)
	if err != nil {
		return sqliteFail("remove", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &Error{"remove", NotFound, ErrNotFound}
	}
	d.changed(uid)
	return nil
}

// sqliteFail reports constraint violations as rejections, typically a write
// for a uid missing from the account table.
func sqliteFail(op string, err error) error {
	if strings.Contains(err.Error(), "constraint failed") {
		return &Error{op, Rejected, err}
	}
	return &Error{op, Unavailable, err}
}
