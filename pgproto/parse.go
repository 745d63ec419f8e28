package pgproto

import (
	"errors"
	"fmt"

	"github.com/strahe/pgreplay-sentinel/pgerr"
)

// ErrUnknownKind is returned by Parse when the message-kind
// discriminator byte isn't one this decoder recognizes. Per the
// forward-compatibility contract, callers should log and skip such
// messages rather than treat them as fatal.
var ErrUnknownKind = errors.New("pgproto: unknown message kind")

// Parse decodes one pgoutput XLogData payload (the bytes following the
// 'w' CopyData discriminator and its 24-byte header) into a
// ReplicationMessage. streaming must be true when this message falls
// between a StreamStart and its matching StreamStop: pgoutput prepends
// a 4-byte subtransaction xid to Insert/Update/Delete/Truncate
// messages emitted inside a streamed transaction chunk that is absent
// otherwise, and the message kind byte alone does not say which
// framing applies. Callers track that state across successive Parse
// calls (see capture.Processor.Streaming).
func Parse(data []byte, streaming bool) (*ReplicationMessage, error) {
	if len(data) == 0 {
		return nil, pgerr.NewProtocolError(0, 0, "empty message")
	}
	kind := data[0]
	r := NewReader(data[1:])

	switch kind {
	case KindBegin:
		msg, err := parseBegin(r)
		return wrap(kind, func(m *ReplicationMessage) { m.Begin = msg }, err)
	case KindCommit:
		msg, err := parseCommit(r)
		return wrap(kind, func(m *ReplicationMessage) { m.Commit = msg }, err)
	case KindOrigin:
		msg, err := parseOrigin(r)
		return wrap(kind, func(m *ReplicationMessage) { m.Origin = msg }, err)
	case KindType:
		msg, err := parseType(r)
		return wrap(kind, func(m *ReplicationMessage) { m.Type = msg }, err)
	case KindRelation:
		msg, err := parseRelation(r)
		return wrap(kind, func(m *ReplicationMessage) { m.Relation = msg }, err)
	case KindInsert:
		msg, err := parseInsert(r, streaming)
		return wrap(kind, func(m *ReplicationMessage) { m.Insert = msg }, err)
	case KindUpdate:
		msg, err := parseUpdate(r, streaming)
		return wrap(kind, func(m *ReplicationMessage) { m.Update = msg }, err)
	case KindDelete:
		msg, err := parseDelete(r, streaming)
		return wrap(kind, func(m *ReplicationMessage) { m.Delete = msg }, err)
	case KindTruncate:
		msg, err := parseTruncate(r, streaming)
		return wrap(kind, func(m *ReplicationMessage) { m.Truncate = msg }, err)
	case KindStreamStart:
		msg, err := parseStreamStart(r)
		return wrap(kind, func(m *ReplicationMessage) { m.StreamStart = msg }, err)
	case KindStreamStop:
		return wrap(kind, func(m *ReplicationMessage) { m.StreamStop = &StreamStopMessage{} }, nil)
	case KindStreamCommit:
		msg, err := parseStreamCommit(r)
		return wrap(kind, func(m *ReplicationMessage) { m.StreamCommit = msg }, err)
	case KindStreamAbort:
		msg, err := parseStreamAbort(r)
		return wrap(kind, func(m *ReplicationMessage) { m.StreamAbort = msg }, err)
	case KindMessage:
		msg, err := parseLogicalMessage(r)
		return wrap(kind, func(m *ReplicationMessage) { m.Message = msg }, err)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func wrap(kind byte, set func(*ReplicationMessage), err error) (*ReplicationMessage, error) {
	if err != nil {
		return nil, err
	}
	m := &ReplicationMessage{Kind: kind}
	set(m)
	return m, nil
}

func protoErr(kind byte, r *Reader, err error) error {
	return pgerr.NewProtocolError(kind, r.Position(), err.Error())
}

func parseBegin(r *Reader) (*BeginMessage, error) {
	lsn, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindBegin, r, err)
	}
	ts, err := r.ReadInt64()
	if err != nil {
		return nil, protoErr(KindBegin, r, err)
	}
	xid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindBegin, r, err)
	}
	return &BeginMessage{FinalLSN: LSN(lsn), CommitTime: ts, Xid: xid}, nil
}

func parseCommit(r *Reader) (*CommitMessage, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindCommit, r, err)
	}
	commitLSN, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindCommit, r, err)
	}
	endLSN, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindCommit, r, err)
	}
	ts, err := r.ReadInt64()
	if err != nil {
		return nil, protoErr(KindCommit, r, err)
	}
	return &CommitMessage{Flags: flags, CommitLSN: LSN(commitLSN), TransactionEnd: LSN(endLSN), CommitTime: ts}, nil
}

func parseOrigin(r *Reader) (*OriginMessage, error) {
	lsn, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindOrigin, r, err)
	}
	name, err := r.ReadCString()
	if err != nil {
		return nil, protoErr(KindOrigin, r, err)
	}
	return &OriginMessage{OriginLSN: LSN(lsn), OriginName: name}, nil
}

func parseType(r *Reader) (*TypeMessage, error) {
	oid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindType, r, err)
	}
	ns, err := r.ReadCString()
	if err != nil {
		return nil, protoErr(KindType, r, err)
	}
	name, err := r.ReadCString()
	if err != nil {
		return nil, protoErr(KindType, r, err)
	}
	return &TypeMessage{OID: oid, Namespace: ns, Name: name}, nil
}

func parseRelation(r *Reader) (*RelationMessage, error) {
	oid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindRelation, r, err)
	}
	ns, err := r.ReadCString()
	if err != nil {
		return nil, protoErr(KindRelation, r, err)
	}
	name, err := r.ReadCString()
	if err != nil {
		return nil, protoErr(KindRelation, r, err)
	}
	identByte, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindRelation, r, err)
	}
	numCols, err := r.ReadInt16()
	if err != nil {
		return nil, protoErr(KindRelation, r, err)
	}
	cols := make([]ColumnInfo, 0, numCols)
	for i := int16(0); i < numCols; i++ {
		flags, err := r.ReadByte()
		if err != nil {
			return nil, protoErr(KindRelation, r, err)
		}
		colName, err := r.ReadCString()
		if err != nil {
			return nil, protoErr(KindRelation, r, err)
		}
		dataType, err := r.ReadUint32()
		if err != nil {
			return nil, protoErr(KindRelation, r, err)
		}
		typeMod, err := r.ReadInt32()
		if err != nil {
			return nil, protoErr(KindRelation, r, err)
		}
		cols = append(cols, ColumnInfo{
			IsKey:    flags&1 == 1,
			Name:     colName,
			DataType: dataType,
			TypeMod:  typeMod,
		})
	}
	return &RelationMessage{RelationInfo{
		OID:             oid,
		Namespace:       ns,
		Name:            name,
		ReplicaIdentity: ReplicaIdentity(identByte),
		Columns:         cols,
	}}, nil
}

func parseTupleData(kind byte, r *Reader) (TupleData, error) {
	numCols, err := r.ReadInt16()
	if err != nil {
		return TupleData{}, protoErr(kind, r, err)
	}
	cols := make([]ColumnData, 0, numCols)
	for i := int16(0); i < numCols; i++ {
		colKind, err := r.ReadByte()
		if err != nil {
			return TupleData{}, protoErr(kind, r, err)
		}
		switch ColumnKind(colKind) {
		case ColumnNull, ColumnUnchangedToast:
			cols = append(cols, ColumnData{Kind: ColumnKind(colKind)})
		case ColumnText, ColumnBinary:
			length, err := r.ReadInt32()
			if err != nil {
				return TupleData{}, protoErr(kind, r, err)
			}
			data, err := r.ReadBytes(int(length))
			if err != nil {
				return TupleData{}, protoErr(kind, r, err)
			}
			cols = append(cols, ColumnData{Kind: ColumnKind(colKind), Data: data})
		default:
			return TupleData{}, pgerr.NewProtocolError(kind, r.Position(), fmt.Sprintf("unknown column kind %q", colKind))
		}
	}
	return TupleData{Columns: cols}, nil
}

// readStreamXid consumes the leading 4-byte subtransaction xid that
// pgoutput prepends to I/U/D/T messages emitted inside a streamed
// transaction chunk. It is a no-op outside streaming.
func readStreamXid(kind byte, r *Reader, streaming bool) (uint32, error) {
	if !streaming {
		return 0, nil
	}
	xid, err := r.ReadUint32()
	if err != nil {
		return 0, protoErr(kind, r, err)
	}
	return xid, nil
}

func parseInsert(r *Reader, streaming bool) (*InsertMessage, error) {
	xid, err := readStreamXid(KindInsert, r, streaming)
	if err != nil {
		return nil, err
	}
	oid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindInsert, r, err)
	}
	tag, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindInsert, r, err)
	}
	if tag != 'N' {
		return nil, pgerr.NewProtocolError(KindInsert, r.Position(), fmt.Sprintf("expected tuple tag 'N', got %q", tag))
	}
	tuple, err := parseTupleData(KindInsert, r)
	if err != nil {
		return nil, err
	}
	return &InsertMessage{RelationOID: oid, NewTuple: tuple, Xid: xid}, nil
}

func parseUpdate(r *Reader, streaming bool) (*UpdateMessage, error) {
	xid, err := readStreamXid(KindUpdate, r, streaming)
	if err != nil {
		return nil, err
	}
	oid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindUpdate, r, err)
	}
	tag, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindUpdate, r, err)
	}

	var old *TupleData
	var oldTag byte
	if tag == 'K' || tag == 'O' {
		t, err := parseTupleData(KindUpdate, r)
		if err != nil {
			return nil, err
		}
		old = &t
		oldTag = tag
		tag, err = r.ReadByte()
		if err != nil {
			return nil, protoErr(KindUpdate, r, err)
		}
	}
	if tag != 'N' {
		return nil, pgerr.NewProtocolError(KindUpdate, r.Position(), fmt.Sprintf("expected tuple tag 'N', got %q", tag))
	}
	newTuple, err := parseTupleData(KindUpdate, r)
	if err != nil {
		return nil, err
	}
	return &UpdateMessage{RelationOID: oid, OldTuple: old, OldTupleTag: oldTag, NewTuple: newTuple, Xid: xid}, nil
}

func parseDelete(r *Reader, streaming bool) (*DeleteMessage, error) {
	xid, err := readStreamXid(KindDelete, r, streaming)
	if err != nil {
		return nil, err
	}
	oid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindDelete, r, err)
	}
	tag, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindDelete, r, err)
	}
	if tag != 'K' && tag != 'O' {
		return nil, pgerr.NewProtocolError(KindDelete, r.Position(), fmt.Sprintf("expected tuple tag 'K' or 'O', got %q", tag))
	}
	tuple, err := parseTupleData(KindDelete, r)
	if err != nil {
		return nil, err
	}
	return &DeleteMessage{RelationOID: oid, OldTuple: tuple, OldTupleTag: tag, Xid: xid}, nil
}

func parseTruncate(r *Reader, streaming bool) (*TruncateMessage, error) {
	xid, err := readStreamXid(KindTruncate, r, streaming)
	if err != nil {
		return nil, err
	}
	numRelations, err := r.ReadInt32()
	if err != nil {
		return nil, protoErr(KindTruncate, r, err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindTruncate, r, err)
	}
	oids := make([]uint32, 0, numRelations)
	for i := int32(0); i < numRelations; i++ {
		oid, err := r.ReadUint32()
		if err != nil {
			return nil, protoErr(KindTruncate, r, err)
		}
		oids = append(oids, oid)
	}
	return &TruncateMessage{
		RelationOIDs: oids,
		Cascade:      flags&1 == 1,
		RestartSeqs:  flags&2 == 2,
		Xid:          xid,
	}, nil
}

func parseStreamStart(r *Reader) (*StreamStartMessage, error) {
	xid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindStreamStart, r, err)
	}
	firstSegment, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindStreamStart, r, err)
	}
	return &StreamStartMessage{Xid: xid, FirstSegment: firstSegment == 1}, nil
}

func parseStreamCommit(r *Reader) (*StreamCommitMessage, error) {
	xid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindStreamCommit, r, err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindStreamCommit, r, err)
	}
	commitLSN, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindStreamCommit, r, err)
	}
	endLSN, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindStreamCommit, r, err)
	}
	ts, err := r.ReadInt64()
	if err != nil {
		return nil, protoErr(KindStreamCommit, r, err)
	}
	return &StreamCommitMessage{Xid: xid, Flags: flags, CommitLSN: LSN(commitLSN), TransactionEnd: LSN(endLSN), CommitTime: ts}, nil
}

func parseStreamAbort(r *Reader) (*StreamAbortMessage, error) {
	xid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindStreamAbort, r, err)
	}
	subXid, err := r.ReadUint32()
	if err != nil {
		return nil, protoErr(KindStreamAbort, r, err)
	}
	return &StreamAbortMessage{Xid: xid, SubXid: subXid}, nil
}

func parseLogicalMessage(r *Reader) (*LogicalMessage, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return nil, protoErr(KindMessage, r, err)
	}
	lsn, err := r.ReadUint64()
	if err != nil {
		return nil, protoErr(KindMessage, r, err)
	}
	prefix, err := r.ReadCString()
	if err != nil {
		return nil, protoErr(KindMessage, r, err)
	}
	length, err := r.ReadInt32()
	if err != nil {
		return nil, protoErr(KindMessage, r, err)
	}
	payload, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, protoErr(KindMessage, r, err)
	}
	return &LogicalMessage{Transactional: flags&1 == 1, LSN: LSN(lsn), Prefix: prefix, Payload: payload}, nil
}
