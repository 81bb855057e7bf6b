package protocol

import (
	"fmt"
	"strings"
)

// ClientMessage is a request sent from a client to the server.
type ClientMessage interface {
	clientMessage()
	Wire() string
}

// AddAlert asks the server to watch Symbol and notify when the price moves
// past Threshold in Direction.
type AddAlert struct {
	Symbol    string
	Direction Direction
	Threshold float64
}

// RemoveAlert deletes the alert identified by Symbol and Direction.
type RemoveAlert struct {
	Symbol    string
	Direction Direction
}

type Login struct {
	Username string
	Password string
}

type Register struct {
	Username string
	Password string
}

type CheckPrice struct {
	Symbol string
}

type BuyStock struct {
	Symbol   string
	Quantity int64
}

type SellStock struct {
	Symbol   string
	Quantity int64
}

// GetAllClientData requests the caller's positions and alerts.
type GetAllClientData struct{}

func (AddAlert) clientMessage()         {}
func (RemoveAlert) clientMessage()      {}
func (Login) clientMessage()            {}
func (Register) clientMessage()         {}
func (CheckPrice) clientMessage()       {}
func (BuyStock) clientMessage()         {}
func (SellStock) clientMessage()        {}
func (GetAllClientData) clientMessage() {}

func (m AddAlert) Wire() string {
	return fmt.Sprintf("%s %s %s %s\n", CmdAdd, m.Symbol, m.Direction, FormatFloat(m.Threshold))
}

func (m RemoveAlert) Wire() string {
	return fmt.Sprintf("%s %s %s\n", CmdDel, m.Symbol, m.Direction)
}

func (m Login) Wire() string {
	return fmt.Sprintf("%s %s %s\n", CmdLogin, m.Username, m.Password)
}

func (m Register) Wire() string {
	return fmt.Sprintf("%s %s %s\n", CmdRegister, m.Username, m.Password)
}

func (m CheckPrice) Wire() string {
	return fmt.Sprintf("%s %s\n", CmdPrice, m.Symbol)
}

func (m BuyStock) Wire() string {
	return fmt.Sprintf("%s %s %d\n", CmdBuy, m.Symbol, m.Quantity)
}

func (m SellStock) Wire() string {
	return fmt.Sprintf("%s %s %d\n", CmdSell, m.Symbol, m.Quantity)
}

func (GetAllClientData) Wire() string {
	return CmdData + "\n"
}

// DecodeClient parses one line received by the server. It never fails: a
// line it cannot make sense of comes back as Unrecognized.
func DecodeClient(line string) ClientMessage {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unrecognized{Line: line, Reason: "empty line"}
	}

	bad := func(reason string) ClientMessage {
		return Unrecognized{Line: line, Reason: reason}
	}
	args := fields[1:]

	switch fields[0] {
	case CmdAdd:
		if len(args) != 3 {
			return bad("usage: ADD <symbol> <ABOVE|BELOW> <threshold>")
		}
		dir, ok := ParseDirection(args[1])
		if !ok {
			return bad("direction must be ABOVE or BELOW")
		}
		threshold, ok := parseFloat(args[2])
		if !ok {
			return bad("threshold must be a number")
		}
		return AddAlert{Symbol: args[0], Direction: dir, Threshold: threshold}

	case CmdDel:
		if len(args) != 2 {
			return bad("usage: DEL <symbol> <ABOVE|BELOW>")
		}
		dir, ok := ParseDirection(args[1])
		if !ok {
			return bad("direction must be ABOVE or BELOW")
		}
		return RemoveAlert{Symbol: args[0], Direction: dir}

	case CmdLogin:
		if len(args) != 2 {
			return bad("usage: LOGIN <username> <password>")
		}
		return Login{Username: args[0], Password: args[1]}

	case CmdRegister:
		if len(args) != 2 {
			return bad("usage: REGISTER <username> <password>")
		}
		return Register{Username: args[0], Password: args[1]}

	case CmdPrice:
		if len(args) != 1 {
			return bad("usage: PRICE <symbol>")
		}
		return CheckPrice{Symbol: args[0]}

	case CmdBuy, CmdSell:
		if len(args) != 2 {
			return bad(fmt.Sprintf("usage: %s <symbol> <quantity>", fields[0]))
		}
		qty, ok := parseInt(args[1])
		if !ok {
			return bad("quantity must be an integer")
		}
		if fields[0] == CmdBuy {
			return BuyStock{Symbol: args[0], Quantity: qty}
		}
		return SellStock{Symbol: args[0], Quantity: qty}

	case CmdData:
		if len(args) != 0 {
			return bad("usage: DATA")
		}
		return GetAllClientData{}
	}

	return bad("unknown command " + fields[0])
}
