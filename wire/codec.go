package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnknownTag is returned by Decode for any tag byte this codec does
// not recognise. Per spec.md §4.1, "unknown tags are dropped silently"
// — callers check for this error and drop rather than propagate it as
// a fatal condition.
var ErrUnknownTag = errors.New("wire: unknown message tag")

// ErrShortDatagram is returned by Decode when a datagram is truncated
// relative to what its tag requires.
var ErrShortDatagram = errors.New("wire: datagram too short for its tag")

var order = binary.BigEndian

// Encode serialises m into a single datagram payload. Encoding is
// deterministic: equal messages always produce identical bytes, and
// Decode(Encode(m)) == m for every well-formed m (spec.md §8's
// round-trip law).
func Encode(m Message) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(m.Tag()))
	binary.Write(buf, order, m.Sender())

	switch msg := m.(type) {
	case Propose:
		binary.Write(buf, order, msg.ClientID)
		binary.Write(buf, order, msg.ClientSeq)
		binary.Write(buf, order, msg.Value)
	case Phase1A:
		binary.Write(buf, order, msg.Slot)
		writeBallot(buf, msg.Ballot)
	case Phase1B:
		binary.Write(buf, order, msg.Slot)
		writeBallot(buf, msg.Promised)
		writeBallot(buf, msg.AcceptedBallot)
		buf.WriteByte(boolByte(msg.HasValue))
		binary.Write(buf, order, msg.Value)
	case Phase2A:
		binary.Write(buf, order, msg.Slot)
		writeBallot(buf, msg.Ballot)
		binary.Write(buf, order, msg.Value)
	case Phase2B:
		binary.Write(buf, order, msg.Slot)
		writeBallot(buf, msg.Ballot)
		buf.WriteByte(boolByte(msg.Ok))
		writeBallot(buf, msg.Promised)
		binary.Write(buf, order, msg.ValueHash)
	case Decision:
		binary.Write(buf, order, msg.Slot)
		binary.Write(buf, order, msg.Value)
	case CatchupReq:
		binary.Write(buf, order, msg.RequesterID)
		binary.Write(buf, order, msg.HighestKnownSlot)
	case CatchupResp:
		binary.Write(buf, order, msg.Slot)
		binary.Write(buf, order, msg.Value)
	default:
		panic(fmt.Sprintf("wire: Encode called with unregistered message type %T", m))
	}
	return buf.Bytes()
}

// Decode parses a single datagram payload into its Message. It returns
// ErrUnknownTag for a tag this codec does not recognise and
// ErrShortDatagram if data is truncated relative to the tag's fixed
// shape; both are the "drop silently" / "decode error" cases of
// spec.md §7's error table.
func Decode(data []byte) (Message, error) {
	r := bytes.NewReader(data)
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrShortDatagram
	}
	var sender uint32
	if err := binary.Read(r, order, &sender); err != nil {
		return nil, ErrShortDatagram
	}

	switch Tag(tagByte) {
	case TagPropose:
		var clientID uint32
		var clientSeq uint64
		var value int64
		if err := readAll(r, &clientID, &clientSeq, &value); err != nil {
			return nil, err
		}
		return Propose{SenderID: sender, ClientID: clientID, ClientSeq: clientSeq, Value: value}, nil

	case TagPhase1A:
		var slot uint64
		ballot, err := readSlotThenBallot(r, &slot)
		if err != nil {
			return nil, err
		}
		return Phase1A{SenderID: sender, Slot: slot, Ballot: ballot}, nil

	case TagPhase1B:
		var slot uint64
		if err := binary.Read(r, order, &slot); err != nil {
			return nil, ErrShortDatagram
		}
		promised, err := readBallot(r)
		if err != nil {
			return nil, err
		}
		accepted, err := readBallot(r)
		if err != nil {
			return nil, err
		}
		hasValueByte, err := r.ReadByte()
		if err != nil {
			return nil, ErrShortDatagram
		}
		var value int64
		if err := binary.Read(r, order, &value); err != nil {
			return nil, ErrShortDatagram
		}
		return Phase1B{
			SenderID:       sender,
			Slot:           slot,
			Promised:       promised,
			AcceptedBallot: accepted,
			HasValue:       hasValueByte != 0,
			Value:          value,
		}, nil

	case TagPhase2A:
		var slot uint64
		if err := binary.Read(r, order, &slot); err != nil {
			return nil, ErrShortDatagram
		}
		ballot, err := readBallot(r)
		if err != nil {
			return nil, err
		}
		var value int64
		if err := binary.Read(r, order, &value); err != nil {
			return nil, ErrShortDatagram
		}
		return Phase2A{SenderID: sender, Slot: slot, Ballot: ballot, Value: value}, nil

	case TagPhase2B:
		var slot uint64
		if err := binary.Read(r, order, &slot); err != nil {
			return nil, ErrShortDatagram
		}
		ballot, err := readBallot(r)
		if err != nil {
			return nil, err
		}
		okByte, err := r.ReadByte()
		if err != nil {
			return nil, ErrShortDatagram
		}
		promised, err := readBallot(r)
		if err != nil {
			return nil, err
		}
		var hash uint64
		if err := binary.Read(r, order, &hash); err != nil {
			return nil, ErrShortDatagram
		}
		return Phase2B{
			SenderID:  sender,
			Slot:      slot,
			Ballot:    ballot,
			Ok:        okByte != 0,
			Promised:  promised,
			ValueHash: hash,
		}, nil

	case TagDecision:
		var slot uint64
		var value int64
		if err := readAll(r, &slot, &value); err != nil {
			return nil, err
		}
		return Decision{SenderID: sender, Slot: slot, Value: value}, nil

	case TagCatchupReq:
		var requesterID uint32
		var highest int64
		if err := readAll(r, &requesterID, &highest); err != nil {
			return nil, err
		}
		return CatchupReq{SenderID: sender, RequesterID: requesterID, HighestKnownSlot: highest}, nil

	case TagCatchupResp:
		var slot uint64
		var value int64
		if err := readAll(r, &slot, &value); err != nil {
			return nil, err
		}
		return CatchupResp{SenderID: sender, Slot: slot, Value: value}, nil

	default:
		return nil, ErrUnknownTag
	}
}

func writeBallot(buf *bytes.Buffer, b Ballot) {
	binary.Write(buf, order, b.Round)
	binary.Write(buf, order, b.ProposerID)
}

func readBallot(r *bytes.Reader) (Ballot, error) {
	var b Ballot
	if err := binary.Read(r, order, &b.Round); err != nil {
		return Ballot{}, ErrShortDatagram
	}
	if err := binary.Read(r, order, &b.ProposerID); err != nil {
		return Ballot{}, ErrShortDatagram
	}
	return b, nil
}

func readSlotThenBallot(r *bytes.Reader, slot *uint64) (Ballot, error) {
	if err := binary.Read(r, order, slot); err != nil {
		return Ballot{}, ErrShortDatagram
	}
	return readBallot(r)
}

func readAll(r *bytes.Reader, fields ...interface{}) error {
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return ErrShortDatagram
		}
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
