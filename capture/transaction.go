package capture

import (
	"fmt"
	"sync"
)

// pendingTx accumulates the events belonging to one in-flight
// transaction until its Commit (or StreamCommit) arrives. Buffering
// the whole transaction, rather than dispatching row events
// incrementally, is what lets Session gate applied_lsn advancement on
// a successful Commit delivery instead of on each individual message.
type pendingTx struct {
	xid    uint32
	events []*Event
}

// TransactionBuffer tracks every open transaction by xid. Plain
// (non-streamed) transactions and protocol-v2 streamed transactions
// share the same map: a streamed transaction simply receives
// StreamStart/StreamStop pairs before its StreamCommit, appending to
// the same pending slice across chunks.
type TransactionBuffer struct {
	mu  sync.Mutex
	txs map[uint32]*pendingTx
}

func NewTransactionBuffer() *TransactionBuffer {
	return &TransactionBuffer{txs: make(map[uint32]*pendingTx)}
}

// Begin opens (or reopens, for a new streaming chunk of an existing
// xid) a pending transaction.
func (b *TransactionBuffer) Begin(xid uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.txs[xid]; !ok {
		b.txs[xid] = &pendingTx{xid: xid}
	}
}

// Append adds ev to the pending transaction for xid. If no
// transaction is open for xid (a message arrived outside Begin/Commit
// bounds), the event is buffered under an implicit anonymous
// transaction created on first use, so it is still delivered in
// order.
func (b *TransactionBuffer) Append(xid uint32, ev *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.txs[xid]
	if !ok {
		tx = &pendingTx{xid: xid}
		b.txs[xid] = tx
	}
	tx.events = append(tx.events, ev)
}

// Commit closes the transaction for xid and returns its buffered
// events in received order, including the terminal commit event
// itself. The second return value is false if xid had no open
// transaction (a protocol error the caller should surface).
func (b *TransactionBuffer) Commit(xid uint32, commitEvent *Event) ([]*Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.txs[xid]
	if !ok {
		return nil, false
	}
	delete(b.txs, xid)
	events := append(tx.events, commitEvent)
	return events, true
}

// Abort discards a streamed transaction's buffered events without
// emitting them, per StreamAbort semantics.
func (b *TransactionBuffer) Abort(xid uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.txs, xid)
}

// Open returns the xids of the transactions that currently have
// buffered, undelivered events, in no particular order.
func (b *TransactionBuffer) Open() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	open := make([]uint32, 0, len(b.txs))
	for xid := range b.txs {
		open = append(open, xid)
	}
	return open
}

func (b *TransactionBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("TransactionBuffer{open=%d}", len(b.txs))
}
