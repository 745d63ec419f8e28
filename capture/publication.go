package capture

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/yugabyte/pgx/v5/pgconn"
)

// CreatePublication creates a FOR ALL TABLES publication with the
// given name. It is not called during preflight (spec.md treats a
// missing publication as an operator error, not something to paper
// over silently) but is exposed for setup tooling and tests.
func CreatePublication(ctx context.Context, conn *pgconn.PgConn, name string) error {
	query := fmt.Sprintf("CREATE PUBLICATION %s FOR ALL TABLES", pq.QuoteIdentifier(name))
	if _, err := conn.Exec(ctx, query).ReadAll(); err != nil {
		return pgerr.NewConnectionError(fmt.Sprintf("create publication %q", name), err)
	}
	return nil
}

// DropPublication drops a publication by name, ignoring "does not
// exist" so setup scripts can call it idempotently.
func DropPublication(ctx context.Context, conn *pgconn.PgConn, name string) error {
	query := fmt.Sprintf("DROP PUBLICATION IF EXISTS %s", pq.QuoteIdentifier(name))
	if _, err := conn.Exec(ctx, query).ReadAll(); err != nil {
		return pgerr.NewConnectionError(fmt.Sprintf("drop publication %q", name), err)
	}
	return nil
}
