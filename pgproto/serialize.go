package pgproto

import "fmt"

// Serialize encodes msg back into the wire-format XLogData payload
// Parse would decode it from: the message-kind discriminator byte
// followed by the body. streaming must match the value Parse was
// given for this message, since it controls whether the leading
// subtransaction xid is written back for I/U/D/T.
func Serialize(msg *ReplicationMessage, streaming bool) ([]byte, error) {
	w := NewWriter()
	w.WriteByte(msg.Kind)

	switch msg.Kind {
	case KindBegin:
		serializeBegin(w, msg.Begin)
	case KindCommit:
		serializeCommit(w, msg.Commit)
	case KindOrigin:
		serializeOrigin(w, msg.Origin)
	case KindType:
		serializeType(w, msg.Type)
	case KindRelation:
		serializeRelation(w, msg.Relation)
	case KindInsert:
		serializeInsert(w, msg.Insert, streaming)
	case KindUpdate:
		serializeUpdate(w, msg.Update, streaming)
	case KindDelete:
		serializeDelete(w, msg.Delete, streaming)
	case KindTruncate:
		serializeTruncate(w, msg.Truncate, streaming)
	case KindStreamStart:
		serializeStreamStart(w, msg.StreamStart)
	case KindStreamStop:
		// StreamStop carries no body.
	case KindStreamCommit:
		serializeStreamCommit(w, msg.StreamCommit)
	case KindStreamAbort:
		serializeStreamAbort(w, msg.StreamAbort)
	case KindMessage:
		serializeLogicalMessage(w, msg.Message)
	default:
		return nil, fmt.Errorf("pgproto: cannot serialize message kind %q", msg.Kind)
	}

	return w.Bytes(), nil
}

func serializeBegin(w *Writer, m *BeginMessage) {
	w.WriteUint64(uint64(m.FinalLSN))
	w.WriteInt64(m.CommitTime)
	w.WriteUint32(m.Xid)
}

func serializeCommit(w *Writer, m *CommitMessage) {
	w.WriteByte(m.Flags)
	w.WriteUint64(uint64(m.CommitLSN))
	w.WriteUint64(uint64(m.TransactionEnd))
	w.WriteInt64(m.CommitTime)
}

func serializeOrigin(w *Writer, m *OriginMessage) {
	w.WriteUint64(uint64(m.OriginLSN))
	w.WriteCString(m.OriginName)
}

func serializeType(w *Writer, m *TypeMessage) {
	w.WriteUint32(m.OID)
	w.WriteCString(m.Namespace)
	w.WriteCString(m.Name)
}

func serializeRelation(w *Writer, m *RelationMessage) {
	w.WriteUint32(m.OID)
	w.WriteCString(m.Namespace)
	w.WriteCString(m.Name)
	w.WriteByte(byte(m.ReplicaIdentity))
	w.WriteInt16(int16(len(m.Columns)))
	for _, col := range m.Columns {
		var flags byte
		if col.IsKey {
			flags = 1
		}
		w.WriteByte(flags)
		w.WriteCString(col.Name)
		w.WriteUint32(col.DataType)
		w.WriteInt32(col.TypeMod)
	}
}

func serializeTupleData(w *Writer, t TupleData) {
	w.WriteInt16(int16(len(t.Columns)))
	for _, col := range t.Columns {
		w.WriteByte(byte(col.Kind))
		switch col.Kind {
		case ColumnText, ColumnBinary:
			w.WriteInt32(int32(len(col.Data)))
			w.WriteBytes(col.Data)
		}
	}
}

func serializeInsert(w *Writer, m *InsertMessage, streaming bool) {
	if streaming {
		w.WriteUint32(m.Xid)
	}
	w.WriteUint32(m.RelationOID)
	w.WriteByte('N')
	serializeTupleData(w, m.NewTuple)
}

func serializeUpdate(w *Writer, m *UpdateMessage, streaming bool) {
	if streaming {
		w.WriteUint32(m.Xid)
	}
	w.WriteUint32(m.RelationOID)
	if m.OldTuple != nil {
		w.WriteByte(m.OldTupleTag)
		serializeTupleData(w, *m.OldTuple)
	}
	w.WriteByte('N')
	serializeTupleData(w, m.NewTuple)
}

func serializeDelete(w *Writer, m *DeleteMessage, streaming bool) {
	if streaming {
		w.WriteUint32(m.Xid)
	}
	w.WriteUint32(m.RelationOID)
	w.WriteByte(m.OldTupleTag)
	serializeTupleData(w, m.OldTuple)
}

func serializeTruncate(w *Writer, m *TruncateMessage, streaming bool) {
	if streaming {
		w.WriteUint32(m.Xid)
	}
	w.WriteInt32(int32(len(m.RelationOIDs)))
	var flags byte
	if m.Cascade {
		flags |= 1
	}
	if m.RestartSeqs {
		flags |= 2
	}
	w.WriteByte(flags)
	for _, oid := range m.RelationOIDs {
		w.WriteUint32(oid)
	}
}

func serializeStreamStart(w *Writer, m *StreamStartMessage) {
	w.WriteUint32(m.Xid)
	if m.FirstSegment {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func serializeStreamCommit(w *Writer, m *StreamCommitMessage) {
	w.WriteUint32(m.Xid)
	w.WriteByte(m.Flags)
	w.WriteUint64(uint64(m.CommitLSN))
	w.WriteUint64(uint64(m.TransactionEnd))
	w.WriteInt64(m.CommitTime)
}

func serializeStreamAbort(w *Writer, m *StreamAbortMessage) {
	w.WriteUint32(m.Xid)
	w.WriteUint32(m.SubXid)
}

func serializeLogicalMessage(w *Writer, m *LogicalMessage) {
	var flags byte
	if m.Transactional {
		flags = 1
	}
	w.WriteByte(flags)
	w.WriteUint64(uint64(m.LSN))
	w.WriteCString(m.Prefix)
	w.WriteInt32(int32(len(m.Payload)))
	w.WriteBytes(m.Payload)
}
