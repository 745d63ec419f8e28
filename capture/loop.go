package capture

import (
	"context"
	"errors"
	"time"

	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/yugabyte/pgx/v5/pgconn"
	"github.com/yugabyte/pgx/v5/pgproto3"
)

const (
	byteXLogData          = 'w'
	byteKeepalive         = 'k'
	defaultFeedbackPeriod = 1 * time.Second
)

// xlogData is the decoded header of a 'w' CopyData payload.
type xlogData struct {
	WALStart   pgproto.LSN
	WALEnd     pgproto.LSN
	ServerTime int64
	Payload    []byte
}

func parseXLogData(data []byte) (*xlogData, error) {
	r := pgproto.NewReader(data)
	start, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	end, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	serverTime, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	return &xlogData{WALStart: pgproto.LSN(start), WALEnd: pgproto.LSN(end), ServerTime: serverTime, Payload: r.Rest()}, nil
}

// keepalive is the decoded body of a 'k' CopyData payload.
type keepalive struct {
	WALEnd         pgproto.LSN
	ServerTime     int64
	ReplyRequested bool
}

func parseKeepalive(data []byte) (*keepalive, error) {
	r := pgproto.NewReader(data)
	end, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	serverTime, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	reply, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return &keepalive{WALEnd: pgproto.LSN(end), ServerTime: serverTime, ReplyRequested: reply == 1}, nil
}

// feedbackFrame builds the standby status update ('r') frame: tag +
// three LSNs (received, flushed, applied) + client send time + a
// reply-requested flag, 34 bytes total. Since this session keeps no
// local WAL of its own, flushed is defined as equal to applied.
func feedbackFrame(received, applied pgproto.LSN, now time.Time) []byte {
	w := pgproto.NewWriter()
	w.WriteByte('r')
	w.WriteUint64(uint64(received))
	w.WriteUint64(uint64(applied))
	w.WriteUint64(uint64(applied))
	w.WriteInt64(toPGTimestamp(now))
	w.WriteByte(0)
	return w.Bytes()
}

func sendFeedback(conn *pgconn.PgConn, received, applied pgproto.LSN) error {
	frame := feedbackFrame(received, applied, time.Now())
	conn.Frontend().Send(&pgproto3.CopyData{Data: frame})
	if err := conn.Frontend().Flush(); err != nil {
		return pgerr.NewConnectionError("send feedback", err)
	}
	return nil
}

// receiveCopyMessage reads the next message from the replication
// connection, applying deadline so the caller's feedback ticker keeps
// firing even when the server is silent.
func receiveCopyMessage(ctx context.Context, conn *pgconn.PgConn, feedbackDeadline time.Time) (pgproto3.BackendMessage, error) {
	ctx, cancel := context.WithDeadline(ctx, feedbackDeadline)
	defer cancel()
	msg, err := conn.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
