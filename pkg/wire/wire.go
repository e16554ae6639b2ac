// Package wire implements the line protocol spoken between peers. A message
// is one newline-terminated line of whitespace-separated tokens:
//
//	<origin ip:port> <clock> <TYPE> [type-specific args...]
//
// One request per connection, at most one reply, then the connection closes.
// There is no error/NACK message type: a peer that cannot answer simply sends
// nothing, and callers treat the missing reply like an unreachable peer.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MsgType identifies a protocol message.
type MsgType string

const (
	MsgHello    MsgType = "HELLO"
	MsgBye      MsgType = "BYE"
	MsgGetPeers MsgType = "GET_PEERS"
	MsgPeerList MsgType = "PEER_LIST"
	MsgLS       MsgType = "LS"
	MsgLSList   MsgType = "LS_LIST"
	MsgDL       MsgType = "DL"
	MsgFile     MsgType = "FILE"
)

var knownTypes = map[MsgType]bool{
	MsgHello: true, MsgBye: true, MsgGetPeers: true, MsgPeerList: true,
	MsgLS: true, MsgLSList: true, MsgDL: true, MsgFile: true,
}

var (
	ErrShortMessage = errors.New("wire: message has fewer than 3 fields")
	ErrBadClock     = errors.New("wire: clock field is not an integer")
	ErrUnknownType  = errors.New("wire: unknown message type")
)

// Message is one decoded protocol exchange. Transient: built, sent or
// received, and discarded.
type Message struct {
	Origin string
	Clock  uint64
	Type   MsgType
	Args   []string
}

// Parse decodes a raw line. Trailing whitespace and the newline terminator
// are tolerated. Callers drop messages that fail to parse; no error reply
// exists in the protocol.
func Parse(raw []byte) (Message, error) {
	fields := strings.Fields(string(raw))
	if len(fields) < 3 {
		return Message{}, ErrShortMessage
	}
	clk, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Message{}, ErrBadClock
	}
	typ := MsgType(fields[2])
	if !knownTypes[typ] {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, fields[2])
	}
	return Message{
		Origin: fields[0],
		Clock:  clk,
		Type:   typ,
		Args:   fields[3:],
	}, nil
}

// Encode renders the message as a newline-terminated wire line.
func (m Message) Encode() []byte {
	var b strings.Builder
	b.WriteString(m.Origin)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(m.Clock, 10))
	b.WriteByte(' ')
	b.WriteString(string(m.Type))
	for _, a := range m.Args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func (m Message) String() string {
	return strings.TrimSuffix(string(m.Encode()), "\n")
}
