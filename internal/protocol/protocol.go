// Package protocol implements the line-oriented text protocol spoken between
// alert clients and the server.
//
// Every message is one UTF-8 line terminated by '\n'. The first token names
// the command; the remaining tokens are whitespace separated, except for ERR,
// whose message runs to the end of the line, and DATA, whose payload is a
// single JSON document. Client and server messages are kept as two disjoint
// families because several tokens (PRICE, DATA, LOGIN, REGISTER) are used in
// both directions with different argument shapes.
package protocol

import (
	"math"
	"strconv"
)

// Command tokens sent by clients.
const (
	CmdAdd      = "ADD"
	CmdDel      = "DEL"
	CmdLogin    = "LOGIN"
	CmdRegister = "REGISTER"
	CmdPrice    = "PRICE"
	CmdBuy      = "BUY"
	CmdSell     = "SELL"
	CmdData     = "DATA"
)

// Command tokens sent by the server. PRICE, DATA, LOGIN and REGISTER are
// shared with the client set above.
const (
	CmdTrigger      = "TRIGGER"
	CmdAlertAdded   = "ALERTADDED"
	CmdAlertDeleted = "ALERTDELETED"
	CmdBought       = "BOUGHT"
	CmdSold         = "SOLD"
	CmdErr          = "ERR"
)

// Direction is the side of a threshold that fires an alert.
type Direction string

const (
	Above Direction = "ABOVE"
	Below Direction = "BELOW"
)

// ParseDirection converts a wire token into a Direction.
// Tokens are case-sensitive.
func ParseDirection(token string) (Direction, bool) {
	switch Direction(token) {
	case Above:
		return Above, true
	case Below:
		return Below, true
	}
	return "", false
}

// Valid reports whether d is Above or Below.
func (d Direction) Valid() bool {
	return d == Above || d == Below
}

func (d Direction) String() string { return string(d) }

// FormatFloat renders a price or threshold in the shortest decimal form
// that parses back to the same value ("1", "187.25").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(token string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseInt(token string) (int64, bool) {
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Unrecognized is the decode result for a line that is empty, names an
// unknown command, or carries malformed arguments. It belongs to both the
// client and the server message families so decoders never return nil.
type Unrecognized struct {
	Line   string
	Reason string
}

func (Unrecognized) clientMessage() {}
func (Unrecognized) serverMessage() {}

// Wire returns the offending line unchanged, newline terminated.
func (u Unrecognized) Wire() string { return u.Line + "\n" }
