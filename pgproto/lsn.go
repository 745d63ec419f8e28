package pgproto

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// LSN is a PostgreSQL Log Sequence Number: an opaque 64-bit position
// in the write-ahead log, conventionally displayed as two hex halves
// separated by a slash ("16/B374D848").
type LSN uint64

func (lsn LSN) String() string {
	return fmt.Sprintf("%X/%X", uint32(lsn>>32), uint32(lsn))
}

// ParseLSN parses the "hi/lo" hex representation PostgreSQL uses in
// SQL output and replication protocol strings.
func ParseLSN(s string) (LSN, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("pgproto: malformed LSN %q", s)
	}
	hi, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("pgproto: malformed LSN %q: %w", s, err)
	}
	lo, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("pgproto: malformed LSN %q: %w", s, err)
	}
	return LSN(hi<<32 | lo), nil
}

// Max returns the larger of two LSNs, the update rule every advancing
// LSN field in the session (received/flushed/applied) follows.
func Max(a, b LSN) LSN {
	if a > b {
		return a
	}
	return b
}

// Scan implements sql.Scanner so an LSN can be read directly out of a
// driver row (text or uint64 representation).
func (lsn *LSN) Scan(src any) error {
	if lsn == nil {
		return nil
	}
	switch v := src.(type) {
	case string:
		parsed, err := ParseLSN(v)
		if err != nil {
			return err
		}
		*lsn = parsed
		return nil
	case []byte:
		parsed, err := ParseLSN(string(v))
		if err != nil {
			return err
		}
		*lsn = parsed
		return nil
	case uint64:
		*lsn = LSN(v)
		return nil
	default:
		return fmt.Errorf("pgproto: cannot scan %T into LSN", src)
	}
}

// Value implements driver.Valuer.
func (lsn LSN) Value() (driver.Value, error) {
	return lsn.String(), nil
}
