package capture

import "time"

// pgEpochOffset is the number of seconds between the Unix epoch
// (1970-01-01) and the PostgreSQL epoch (2000-01-01), the reference
// point pgoutput commit timestamps and feedback frame send times are
// expressed against.
const pgEpochOffset = 946_684_800

var pgEpoch = time.Unix(pgEpochOffset, 0).UTC()

// pgTimestamp converts a pgoutput commit-time field (microseconds
// since the PostgreSQL epoch) into a time.Time.
func pgTimestamp(micros int64) time.Time {
	return pgEpoch.Add(time.Duration(micros) * time.Microsecond)
}

// toPGTimestamp converts a time.Time into the microseconds-since-PG-
// epoch representation used in outgoing feedback frames.
func toPGTimestamp(t time.Time) int64 {
	return int64(t.Sub(pgEpoch) / time.Microsecond)
}
