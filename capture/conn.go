package capture

import (
	"context"
	"fmt"

	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/yugabyte/pgx/v5/pgconn"
)

// Config configures one replication session.
type Config struct {
	// DatabaseURL is a libpq connection string or URL.
	DatabaseURL string
	SlotName    string
	PubName     string
	// FeedbackInterval bounds how long the session goes without
	// sending a standby status update while otherwise idle.
	FeedbackInterval int
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return pgerr.NewConfigError("DATABASE_URL", "must not be empty")
	}
	if c.SlotName == "" {
		return pgerr.NewConfigError("SLOT_NAME", "must not be empty")
	}
	if c.PubName == "" {
		return pgerr.NewConfigError("PUB_NAME", "must not be empty")
	}
	return nil
}

// connectPlain opens a normal (non-replication) connection, used for
// preflight queries and primary-key lookups.
func connectPlain(ctx context.Context, databaseURL string) (*pgconn.PgConn, error) {
	conn, err := pgconn.Connect(ctx, databaseURL)
	if err != nil {
		return nil, pgerr.NewConnectionError("connect", err)
	}
	return conn, nil
}

// connectReplication opens a connection in logical-replication mode
// (the "replication=database" runtime parameter), the mode
// START_REPLICATION and IDENTIFY_SYSTEM require.
func connectReplication(ctx context.Context, databaseURL string) (*pgconn.PgConn, error) {
	cfg, err := pgconn.ParseConfig(databaseURL)
	if err != nil {
		return nil, pgerr.NewConnectionError("parse connection string", err)
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["replication"] = "database"

	conn, err := pgconn.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, pgerr.NewConnectionError("connect (replication mode)", err)
	}
	return conn, nil
}

// identifySystem issues IDENTIFY_SYSTEM and returns the server's
// system id, timeline, current WAL position and database name.
// Session.Run logs the position and seeds received_lsn from it; it is
// not the START_REPLICATION position.
func identifySystem(ctx context.Context, conn *pgconn.PgConn) (systemID, timeline string, xlogpos string, dbName string, err error) {
	results, readErr := conn.Exec(ctx, "IDENTIFY_SYSTEM").ReadAll()
	if readErr != nil {
		return "", "", "", "", pgerr.NewConnectionError("IDENTIFY_SYSTEM", readErr)
	}
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return "", "", "", "", pgerr.NewConnectionError("IDENTIFY_SYSTEM", fmt.Errorf("empty result"))
	}
	row := results[0].Rows[0]
	get := func(i int) string {
		if i < len(row) {
			return string(row[i])
		}
		return ""
	}
	return get(0), get(1), get(2), get(3), nil
}
