package capture

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/yugabyte/pgx/v5/pgconn"
)

// runPreflight performs the checks spec.md requires before streaming
// may start: wal_level=logical, the replication slot exists (created
// if absent), and the publication exists (never auto-created — an
// absent publication is an operator configuration error). Slot
// existence is checked over plainConn (pg_replication_slots is a
// regular catalog view) but actual creation must go over replConn:
// CREATE_REPLICATION_SLOT is a replication-protocol command a plain
// connection cannot issue.
func runPreflight(ctx context.Context, plainConn, replConn *pgconn.PgConn, cfg Config) error {
	if err := checkWALLevel(ctx, plainConn); err != nil {
		return err
	}
	if err := ensureReplicationSlot(ctx, plainConn, replConn, cfg.SlotName); err != nil {
		return err
	}
	if err := checkPublicationExists(ctx, plainConn, cfg.PubName); err != nil {
		return err
	}
	return nil
}

func checkWALLevel(ctx context.Context, conn *pgconn.PgConn) error {
	results, err := conn.Exec(ctx, "SHOW wal_level").ReadAll()
	if err != nil || len(results) == 0 || len(results[0].Rows) == 0 {
		return pgerr.NewPreflightError("wal_level", "could not read wal_level setting")
	}
	level := string(results[0].Rows[0][0])
	if level != "logical" {
		return pgerr.NewPreflightError("wal_level", fmt.Sprintf("must be 'logical', got %q", level))
	}
	return nil
}

func slotExists(ctx context.Context, conn *pgconn.PgConn, slotName string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM pg_replication_slots WHERE slot_name = %s", pq.QuoteLiteral(slotName))
	results, err := conn.Exec(ctx, query).ReadAll()
	if err != nil {
		return false, pgerr.NewPreflightError("slot", err.Error())
	}
	return len(results) > 0 && len(results[0].Rows) > 0, nil
}

// ensureReplicationSlot creates the logical replication slot with the
// pgoutput plugin if it does not already exist. spec.md's preflight
// contract is auto-create-if-absent, diverging from a manual-only
// policy. Existence is checked over the plain connection; creation
// must happen over the replication-mode connection, the only one
// CREATE_REPLICATION_SLOT is valid on.
func ensureReplicationSlot(ctx context.Context, plainConn, replConn *pgconn.PgConn, slotName string) error {
	exists, err := slotExists(ctx, plainConn, slotName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	query := fmt.Sprintf("CREATE_REPLICATION_SLOT %s LOGICAL pgoutput", pq.QuoteIdentifier(slotName))
	if _, err := replConn.Exec(ctx, query).ReadAll(); err != nil {
		return pgerr.NewPreflightError("slot", fmt.Sprintf("could not create slot %q: %v", slotName, err))
	}
	return nil
}

func checkPublicationExists(ctx context.Context, conn *pgconn.PgConn, pubName string) error {
	query := fmt.Sprintf("SELECT 1 FROM pg_publication WHERE pubname = %s", pq.QuoteLiteral(pubName))
	results, err := conn.Exec(ctx, query).ReadAll()
	if err != nil {
		return pgerr.NewPreflightError("publication", err.Error())
	}
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return pgerr.NewPreflightError("publication", fmt.Sprintf("publication %q does not exist; create it with CREATE PUBLICATION before starting", pubName))
	}
	return nil
}

// startReplicationSQL builds the START_REPLICATION command per
// spec.md's exact contract: logical, proto_version 2, streaming on,
// and the target publication. The output plugin is not named here; it
// is the one the slot was created with (pgoutput).
func startReplicationSQL(slotName string, startLSN pgproto.LSN, pubName string) string {
	return fmt.Sprintf(
		"START_REPLICATION SLOT %s LOGICAL %s (proto_version '2', publication_names %s, streaming 'on')",
		pq.QuoteIdentifier(slotName), startLSN.String(), pq.QuoteLiteral(pubName),
	)
}
