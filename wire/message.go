// Package wire implements the datagram codec spec.md §4.1 and §4.6
// require: one tagged envelope per UDP datagram, fixed-width
// big-endian integers, length-prefixed only where a field is
// variable-length, and a byte-identical round trip for equal messages.
//
// The teacher encodes transaction votes with glycerine/go-capnproto
// over a schema the capnpc compiler generates; see DESIGN.md for why
// that is dropped here in favour of encoding/binary directly against
// the fixed fields spec.md §4.1 already enumerates.
package wire

// Tag identifies the kind of message a datagram carries.
type Tag byte

const (
	TagPropose Tag = 1 + iota
	TagPhase1A
	TagPhase1B
	TagPhase2A
	TagPhase2B
	TagDecision
	TagCatchupReq
	TagCatchupResp
)

func (t Tag) String() string {
	switch t {
	case TagPropose:
		return "PROPOSE"
	case TagPhase1A:
		return "PHASE1A"
	case TagPhase1B:
		return "PHASE1B"
	case TagPhase2A:
		return "PHASE2A"
	case TagPhase2B:
		return "PHASE2B"
	case TagDecision:
		return "DECISION"
	case TagCatchupReq:
		return "CATCHUP_REQ"
	case TagCatchupResp:
		return "CATCHUP_RESP"
	default:
		return "UNKNOWN"
	}
}

// Ballot is the totally-ordered proposal epoch of spec.md §3: a
// (round, proposer_id) pair, ordered lexicographically with
// proposer_id as tiebreaker. Round 0 means "no ballot".
type Ballot struct {
	Round      uint64
	ProposerID uint32
}

// Zero reports whether b is the reserved "no ballot" value.
func (b Ballot) Zero() bool { return b.Round == 0 }

// Less reports whether b sorts strictly before o.
func (b Ballot) Less(o Ballot) bool {
	if b.Round != o.Round {
		return b.Round < o.Round
	}
	return b.ProposerID < o.ProposerID
}

// Greater reports whether b sorts strictly after o.
func (b Ballot) Greater(o Ballot) bool { return o.Less(b) }

// Message is implemented by every concrete envelope payload.
type Message interface {
	Tag() Tag
	Sender() uint32
}

// Propose is Client -> Proposers: a client's submitted value. ClientID
// duplicates SenderID (every message already carries its sender) but
// is kept as its own field to match spec.md §4.1's literal field list
// and to make the (client_id, client_seq) dedup key self-contained.
type Propose struct {
	SenderID  uint32
	ClientID  uint32
	ClientSeq uint64
	Value     int64
}

func (m Propose) Tag() Tag { return TagPropose }
func (m Propose) Sender() uint32 { return m.SenderID }

// Phase1A is Proposer -> Acceptors: "prepare" for (Slot, Ballot).
type Phase1A struct {
	SenderID uint32
	Slot     uint64
	Ballot   Ballot
}

func (m Phase1A) Tag() Tag { return TagPhase1A }
func (m Phase1A) Sender() uint32 { return m.SenderID }

// Phase1B is Acceptor -> Proposer: the promise (or higher-ballot
// rebuff) for a Phase1A. Promised is always the acceptor's current
// promised_ballot for Slot; if it exceeds the ballot the proposer sent,
// this acts as the "NACK by higher ballot" spec.md §4.2 describes.
// HasValue/Value/AcceptedBallot report any previously accepted value.
type Phase1B struct {
	SenderID       uint32
	Slot           uint64
	Promised       Ballot
	AcceptedBallot Ballot
	HasValue       bool
	Value          int64
}

func (m Phase1B) Tag() Tag { return TagPhase1B }
func (m Phase1B) Sender() uint32 { return m.SenderID }

// Phase2A is Proposer -> Acceptors: "accept" Value at (Slot, Ballot).
type Phase2A struct {
	SenderID uint32
	Slot     uint64
	Ballot   Ballot
	Value    int64
}

func (m Phase2A) Tag() Tag { return TagPhase2A }
func (m Phase2A) Sender() uint32 { return m.SenderID }

// Phase2B is Acceptor -> Proposer: the vote for a Phase2A. Ok is false
// for the explicit-NACK case spec.md §4.1 allows, in which case
// Promised carries the acceptor's current (higher) promised_ballot.
// ValueHash is an FNV-1a digest of the accepted value, carried only
// for observability — the proposer already knows what it proposed for
// (Slot, Ballot) and does not need the value itself echoed back.
type Phase2B struct {
	SenderID  uint32
	Slot      uint64
	Ballot    Ballot
	Ok        bool
	Promised  Ballot
	ValueHash uint64
}

func (m Phase2B) Tag() Tag { return TagPhase2B }
func (m Phase2B) Sender() uint32 { return m.SenderID }

// Decision is Proposer -> Learners: Value was decided at Slot.
type Decision struct {
	SenderID uint32
	Slot     uint64
	Value    int64
}

func (m Decision) Tag() Tag { return TagDecision }
func (m Decision) Sender() uint32 { return m.SenderID }

// CatchupReq is Learner -> Learners: "send me everything above
// HighestKnownSlot" (-1 if the requester has emitted nothing).
type CatchupReq struct {
	SenderID         uint32
	RequesterID      uint32
	HighestKnownSlot int64
}

func (m CatchupReq) Tag() Tag { return TagCatchupReq }
func (m CatchupReq) Sender() uint32 { return m.SenderID }

// CatchupResp is Learner -> Learners: one decided (Slot, Value) sent
// in response to a CatchupReq.
type CatchupResp struct {
	SenderID uint32
	Slot     uint64
	Value    int64
}

func (m CatchupResp) Tag() Tag { return TagCatchupResp }
func (m CatchupResp) Sender() uint32 { return m.SenderID }
