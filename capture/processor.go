package capture

import (
	"context"
	"fmt"

	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/pgproto"
	"github.com/yugabyte/pgx/v5/pgconn"
)

// Processor turns parsed pgoutput messages into canonical Events,
// maintaining the relation cache and per-transaction buffering that
// give Session its Commit-gated delivery semantics.
type Processor struct {
	conn          *pgconn.PgConn // plain connection, for primary-key lookups
	relations     *pgproto.Cache
	txs           *TransactionBuffer
	correlationID string
	logger        Logger

	// currentXid is the transaction whose Begin/StreamStart is open
	// and has not yet been closed by a Commit/StreamStop. pgoutput
	// never interleaves DML from two transactions within one chunk of
	// wire messages, so a single field (rather than a stack) is
	// enough to attribute untagged Insert/Update/Delete/Truncate
	// messages to the right buffered transaction.
	currentXid uint32

	// streaming is true between a StreamStart and its matching
	// StreamStop; the caller reads this before parsing the next wire
	// message so pgproto.Parse knows whether to consume the leading
	// subtransaction xid pgoutput prepends to I/U/D/T inside a stream.
	streaming bool
}

// Streaming reports whether the next message is expected to carry the
// leading subtransaction xid pgoutput prepends inside a streamed
// transaction chunk.
func (p *Processor) Streaming() bool {
	return p.streaming
}

func NewProcessor(conn *pgconn.PgConn, correlationID string, logger Logger) *Processor {
	if logger == nil {
		logger = NoopLogger
	}
	return &Processor{
		conn:          conn,
		relations:     pgproto.NewCache(),
		txs:           NewTransactionBuffer(),
		correlationID: correlationID,
		logger:        logger,
	}
}

// Process handles one decoded message, received at wire position lsn.
// It returns a non-nil, non-empty events slice exactly when a
// transaction (or a standalone message outside any transaction) just
// became ready for delivery.
func (p *Processor) Process(ctx context.Context, msg *pgproto.ReplicationMessage, lsn pgproto.LSN) ([]*Event, error) {
	switch {
	case msg.Begin != nil:
		p.currentXid = msg.Begin.Xid
		p.txs.Begin(msg.Begin.Xid)
		p.txs.Append(msg.Begin.Xid, &Event{
			Kind: EventBegin, Xid: msg.Begin.Xid, LSN: lsn,
			Timestamp: pgTimestamp(msg.Begin.CommitTime), CorrelationID: p.correlationID,
		})
		return nil, nil

	case msg.Commit != nil:
		xid := p.currentXid
		p.currentXid = 0
		commitEvent := &Event{
			Kind: EventCommit, Xid: xid, LSN: msg.Commit.TransactionEnd,
			Timestamp: pgTimestamp(msg.Commit.CommitTime), CorrelationID: p.correlationID,
		}
		return p.commit(xid, commitEvent)

	case msg.Relation != nil:
		pk, err := pgproto.LookupPrimaryKey(ctx, p.conn, msg.Relation.Namespace, msg.Relation.Name)
		if err != nil {
			p.logger.Warnf("primary key lookup for %s.%s failed: %v", msg.Relation.Namespace, msg.Relation.Name, err)
			pk = nil
		}
		p.relations.Put(msg.Relation.RelationInfo, pk)
		return nil, nil

	case msg.Insert != nil:
		rel, err := p.relations.Get(msg.Insert.RelationOID)
		if err != nil {
			return nil, err
		}
		ev := &Event{
			Kind: EventInsert, LSN: lsn, Schema: rel.Namespace, Table: rel.Name,
			New: decodeTuple(rel.Columns, &msg.Insert.NewTuple), CorrelationID: p.correlationID,
		}
		p.bufferForCurrentTx(ev)
		return nil, nil

	case msg.Update != nil:
		rel, err := p.relations.Get(msg.Update.RelationOID)
		if err != nil {
			return nil, err
		}
		ev := &Event{
			Kind: EventUpdate, LSN: lsn, Schema: rel.Namespace, Table: rel.Name,
			Old: decodeTuple(rel.Columns, msg.Update.OldTuple),
			New: decodeTuple(rel.Columns, &msg.Update.NewTuple), CorrelationID: p.correlationID,
		}
		p.bufferForCurrentTx(ev)
		return nil, nil

	case msg.Delete != nil:
		rel, err := p.relations.Get(msg.Delete.RelationOID)
		if err != nil {
			return nil, err
		}
		old := decodeTuple(rel.Columns, &msg.Delete.OldTuple)
		if !rel.HasCompleteIdentity(old) {
			p.logger.Warnf("delete on %s.%s missing a primary key value; check REPLICA IDENTITY", rel.Namespace, rel.Name)
		}
		ev := &Event{
			Kind: EventDelete, LSN: lsn, Schema: rel.Namespace, Table: rel.Name,
			Old: old, CorrelationID: p.correlationID,
		}
		p.bufferForCurrentTx(ev)
		return nil, nil

	case msg.Truncate != nil:
		tables := make([]string, 0, len(msg.Truncate.RelationOIDs))
		for _, oid := range msg.Truncate.RelationOIDs {
			rel, err := p.relations.Get(oid)
			if err != nil {
				return nil, err
			}
			tables = append(tables, rel.Namespace+"."+rel.Name)
		}
		ev := &Event{
			Kind: EventTruncate, LSN: lsn, Tables: tables, CorrelationID: p.correlationID,
			TruncateFlags: &TruncateFlags{Cascade: msg.Truncate.Cascade, RestartSeqs: msg.Truncate.RestartSeqs},
		}
		p.bufferForCurrentTx(ev)
		return nil, nil

	case msg.StreamStart != nil:
		p.currentXid = msg.StreamStart.Xid
		p.streaming = true
		p.txs.Begin(msg.StreamStart.Xid)
		return nil, nil

	case msg.StreamStop != nil:
		p.currentXid = 0
		p.streaming = false
		return nil, nil

	case msg.StreamCommit != nil:
		if p.currentXid == msg.StreamCommit.Xid {
			p.currentXid = 0
		}
		commitEvent := &Event{
			Kind: EventCommit, Xid: msg.StreamCommit.Xid, LSN: msg.StreamCommit.TransactionEnd,
			Timestamp: pgTimestamp(msg.StreamCommit.CommitTime), CorrelationID: p.correlationID,
		}
		return p.commit(msg.StreamCommit.Xid, commitEvent)

	case msg.StreamAbort != nil:
		if p.currentXid == msg.StreamAbort.Xid {
			p.currentXid = 0
		}
		p.txs.Abort(msg.StreamAbort.Xid)
		return nil, nil

	case msg.Type != nil, msg.Origin != nil:
		return nil, nil

	case msg.Message != nil:
		ev := &Event{Kind: EventMessage, LSN: lsn, CorrelationID: p.correlationID, New: map[string]any{
			"prefix": msg.Message.Prefix, "payload": msg.Message.Payload,
		}}
		if msg.Message.Transactional {
			p.bufferForCurrentTx(ev)
			return nil, nil
		}
		return []*Event{ev}, nil

	default:
		return nil, fmt.Errorf("pgproto: %w", &pgerr.ProtocolError{Message: "unrecognized decoded message"})
	}
}

// bufferForCurrentTx appends ev to the anonymous transaction (xid 0)
// unless a real Begin already opened one; pgoutput always wraps DML
// in Begin/Commit, but this keeps Process defensive against malformed
// streams instead of panicking.
func (p *Processor) bufferForCurrentTx(ev *Event) {
	ev.Xid = p.currentXid
	p.txs.Append(p.currentXid, ev)
}

func (p *Processor) commit(xid uint32, commitEvent *Event) ([]*Event, error) {
	events, ok := p.txs.Commit(xid, commitEvent)
	if !ok {
		return nil, fmt.Errorf("capture: commit for unopened transaction xid=%d", xid)
	}
	return events, nil
}
