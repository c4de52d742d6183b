package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mgmu/greenlog/internal/plants"
	"github.com/tidwall/gjson"
)

const (
	pgSchema      = "greenlog_schema"
	notifyChannel = "plant_changes"
)

var pgSchemaDDL = `
CREATE SCHEMA IF NOT EXISTS greenlog_schema;
CREATE TABLE IF NOT EXISTS greenlog_schema.account (
  uid        TEXT PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS greenlog_schema.plant (
  id         BIGSERIAL PRIMARY KEY,
  user_id    TEXT NOT NULL REFERENCES greenlog_schema.account(uid) ON DELETE CASCADE,
  name       TEXT NOT NULL,
  species    TEXT NOT NULL DEFAULT '',
  date_added TEXT NOT NULL,
  image      TEXT NOT NULL DEFAULT '',
  logs       JSONB NOT NULL DEFAULT '[]'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS plant_user_idx ON greenlog_schema.plant(user_id, created_at);
CREATE OR REPLACE FUNCTION greenlog_schema.notify_plant_change() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('plant_changes', json_build_object(
    'user_id', CASE TG_OP WHEN 'DELETE' THEN OLD.user_id ELSE NEW.user_id END,
    'op', TG_OP)::text);
  RETURN NULL;
END;
$$ LANGUAGE plpgsql;
CREATE OR REPLACE TRIGGER plant_change
AFTER INSERT OR UPDATE OR DELETE ON greenlog_schema.plant
FOR EACH ROW EXECUTE FUNCTION greenlog_schema.notify_plant_change();
`

// Postgres stores each plant as a row of the greenlog_schema.plant table and
// pushes snapshots to subscribers on every NOTIFY of the plant_changes
// channel.
type Postgres struct {
	pool *pgxpool.Pool
	url  string
	user string
}

// NewPostgres returns a gateway for the database at url. The gateway
// authenticates as user; an empty user never authenticates.
func NewPostgres(url, user string) *Postgres {
	return &Postgres{url: url, user: user}
}

// Connect creates the connection pool, ensures the schema exists and makes it
// the search path of every connection.
func (db *Postgres) Connect(ctx context.Context) error {
	if db.url == "" {
		return errors.New("gateway: database URL not set")
	}
	config, err := pgxpool.ParseConfig(db.url)
	if err != nil {
		return err
	}
	config.ConnConfig.RuntimeParams["search_path"] = pgSchema
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, pgSchemaDDL); err != nil {
		pool.Close()
		return err
	}
	db.pool = pool
	return nil
}

// Close closes all connections of the pool. Always returns a nil error.
func (db *Postgres) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// Authenticate registers the configured user in the account table if needed
// and returns its identity.
func (db *Postgres) Authenticate(ctx context.Context) (Identity, error) {
	if db.user == "" {
		return Identity{}, &Error{"authenticate", Unauthenticated, ErrNoUser}
	}
	_, err := db.pool.Exec(
		ctx,
		"INSERT INTO account (uid) VALUES ($1) ON CONFLICT (uid) DO NOTHING;",
		db.user,
	)
	if err != nil {
		return Identity{}, pgFail("authenticate", err)
	}
	return Identity{Uid: db.user}, nil
}

// Subscribe sends the current collection of uid, then a fresh snapshot every
// time the collection changes. The channel is closed when ctx is done or
// after an error event.
func (db *Postgres) Subscribe(ctx context.Context, uid string) (<-chan Event, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, pgFail("subscribe", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel+";"); err != nil {
		conn.Release()
		return nil, pgFail("subscribe", err)
	}

	events := make(chan Event, 1)
	go func() {
		defer close(events)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *;")
			conn.Release()
		}()
		for {
			list, err := db.snapshot(ctx, uid)
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, events, Event{Err: pgFail("subscribe", err)})
				}
				return
			}
			if !send(ctx, events, Event{Plants: list}) {
				return
			}
			if err := waitForUser(ctx, conn.Conn(), uid); err != nil {
				if ctx.Err() == nil {
					send(ctx, events, Event{Err: pgFail("subscribe", err)})
				}
				return
			}
		}
	}()
	return events, nil
}

// waitForUser blocks until a notification concerning uid arrives.
func waitForUser(ctx context.Context, conn *pgx.Conn, uid string) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if notifiedUser(n.Payload) == uid {
			return nil
		}
	}
}

// notifiedUser extracts the user identifier from a plant_changes payload.
func notifiedUser(payload string) string {
	return gjson.Get(payload, "user_id").String()
}

func (db *Postgres) snapshot(ctx context.Context, uid string) ([]plants.Plant, error) {
	rows, _ := db.pool.Query(
		ctx,
		`
SELECT id::text, name, species, date_added, image, logs
FROM plant
WHERE user_id=$1
ORDER BY created_at, id;`,
		uid,
	)
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (plants.Plant, error) {
		var p plants.Plant
		var date, image string
		var logs []byte
		err := row.Scan(&p.Id, &p.Name, &p.Species, &date, &image, &logs)
		if err != nil {
			return p, err
		}
		p.DateAdded = plants.Date(date)
		p.Image = plants.ImageRef(image)
		p.Logs, err = decodeLogs(logs)
		return p, err
	})
}

// Insert adds p to the collection of uid and returns the identifier assigned
// by the database.
func (db *Postgres) Insert(ctx context.Context, uid string, p plants.Plant) (string, error) {
	logs, err := json.Marshal(nonNilLogs(p.Logs))
	if err != nil {
		return "", &Error{"insert", Rejected, err}
	}
	row := db.pool.QueryRow(
		ctx,
		`
INSERT INTO plant (user_id, name, species, date_added, image, logs)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text;`,
		uid,
		p.Name,
		p.Species,
		string(p.DateAdded),
		string(p.Image),
		string(logs),
	)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", pgFail("insert", err)
	}
	return id, nil
}

// Mutate overwrites the fields set in patch on the plant of given identifier.
func (db *Postgres) Mutate(ctx context.Context, uid, id string, patch Patch) error {
	sets, args, err := patchColumns(patch, func(i int) string { return "$" + strconv.Itoa(i) })
	if err != nil {
		return &Error{"mutate", Rejected, err}
	}
	if len(sets) == 0 {
		return nil
	}
	pid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return &Error{"mutate", NotFound, ErrNotFound}
	}
	n := len(args)
	query := "UPDATE plant SET " + strings.Join(sets, ", ") +
		" WHERE user_id=$" + strconv.Itoa(n+1) + " AND id=$" + strconv.Itoa(n+2) + ";"
	tag, err := db.pool.Exec(ctx, query, append(args, uid, pid)...)
	if err != nil {
		return pgFail("mutate", err)
	}
	if tag.RowsAffected() == 0 {
		return &Error{"mutate", NotFound, ErrNotFound}
	}
	return nil
}

// Remove deletes the plant of given identifier. A plant the store does not
// hold, such as one created locally during an outage, gives a NotFound error.
func (db *Postgres) Remove(ctx context.Context, uid, id string) error {
	pid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return &Error{"remove", NotFound, ErrNotFound}
	}
	tag, err := db.pool.Exec(ctx, "DELETE FROM plant WHERE user_id=$1 AND id=$2;", uid, pid)
	if err != nil {
		return pgFail("remove", err)
	}
	if tag.RowsAffected() == 0 {
		return &Error{"remove", NotFound, ErrNotFound}
	}
	return nil
}

// pgFail classifies err: errors reported by the server are rejections,
// anything else means the server could not be reached.
func pgFail(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{op, Rejected, err}
	}
	return &Error{op, Unavailable, err}
}

// patchColumns returns the SET clauses and arguments of patch, using
// placeholder to number the parameters.
func patchColumns(patch Patch, placeholder func(int) string) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+"="+placeholder(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Species != nil {
		add("species", *patch.Species)
	}
	if patch.Image != nil {
		add("image", string(*patch.Image))
	}
	if patch.Logs != nil {
		logs, err := json.Marshal(nonNilLogs(*patch.Logs))
		if err != nil {
			return nil, nil, err
		}
		add("logs", string(logs))
	}
	return sets, args, nil
}

func decodeLogs(raw []byte) ([]plants.LogEntry, error) {
	logs := []plants.LogEntry{}
	if len(raw) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, err
	}
	return nonNilLogs(logs), nil
}
