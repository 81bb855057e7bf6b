package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServerMessage is a response or notification sent from the server.
type ServerMessage interface {
	serverMessage()
	Wire() string
}

// AlertTriggered notifies a client that CurrentPrice satisfies one of its
// alerts.
type AlertTriggered struct {
	Symbol       string
	Direction    Direction
	Threshold    float64
	CurrentPrice float64
}

type AlertAdded struct {
	Symbol    string
	Direction Direction
	Threshold float64
}

type AlertRemoved struct {
	Symbol    string
	Direction Direction
}

type PriceChecked struct {
	Symbol string
	Price  float64
}

type StockBought struct {
	Symbol   string
	Quantity int64
}

type StockSold struct {
	Symbol   string
	Quantity int64
}

// StockData is one portfolio position in a DATA payload. TotalPrice is the
// cumulative cost basis: positive for net money spent, negative for net
// proceeds.
type StockData struct {
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}

// AlertData is one stored alert in a DATA payload.
type AlertData struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Threshold float64   `json:"threshold"`
}

// AllClientData carries everything the server stores for a user.
type AllClientData struct {
	Stocks []StockData `json:"stocks"`
	Alerts []AlertData `json:"alerts"`
}

type UserLogged struct{}

type UserRegistered struct{}

// Error reports a rejected command. Message runs to the end of the line.
type Error struct {
	Message string
}

func (AlertTriggered) serverMessage() {}
func (AlertAdded) serverMessage()     {}
func (AlertRemoved) serverMessage()   {}
func (PriceChecked) serverMessage()   {}
func (StockBought) serverMessage()    {}
func (StockSold) serverMessage()      {}
func (AllClientData) serverMessage()  {}
func (UserLogged) serverMessage()     {}
func (UserRegistered) serverMessage() {}
func (Error) serverMessage()          {}

func (m AlertTriggered) Wire() string {
	return fmt.Sprintf("%s %s %s %s %s\n", CmdTrigger, m.Symbol, m.Direction,
		FormatFloat(m.Threshold), FormatFloat(m.CurrentPrice))
}

func (m AlertAdded) Wire() string {
	return fmt.Sprintf("%s %s %s %s\n", CmdAlertAdded, m.Symbol, m.Direction, FormatFloat(m.Threshold))
}

func (m AlertRemoved) Wire() string {
	return fmt.Sprintf("%s %s %s\n", CmdAlertDeleted, m.Symbol, m.Direction)
}

func (m PriceChecked) Wire() string {
	return fmt.Sprintf("%s %s %s\n", CmdPrice, m.Symbol, FormatFloat(m.Price))
}

func (m StockBought) Wire() string {
	return fmt.Sprintf("%s %s %d\n", CmdBought, m.Symbol, m.Quantity)
}

func (m StockSold) Wire() string {
	return fmt.Sprintf("%s %s %d\n", CmdSold, m.Symbol, m.Quantity)
}

// Wire encodes the payload as compact JSON. Nil slices are sent as empty
// arrays so clients always see both keys.
func (m AllClientData) Wire() string {
	if m.Stocks == nil {
		m.Stocks = []StockData{}
	}
	if m.Alerts == nil {
		m.Alerts = []AlertData{}
	}
	payload, err := json.Marshal(m)
	if err != nil {
		// Only non-finite floats can fail here and prices never are.
		return Error{Message: "failed to encode client data"}.Wire()
	}
	return CmdData + " " + string(payload) + "\n"
}

func (UserLogged) Wire() string { return CmdLogin + "\n" }

func (UserRegistered) Wire() string { return CmdRegister + "\n" }

func (m Error) Wire() string {
	// A newline inside the message would split it into two protocol lines.
	msg := strings.NewReplacer("\r", " ", "\n", " ").Replace(m.Message)
	if msg == "" {
		return CmdErr + "\n"
	}
	return CmdErr + " " + msg + "\n"
}

// DecodeServer parses one line received by a client. Like DecodeClient it
// never fails; unusable lines come back as Unrecognized.
func DecodeServer(line string) ServerMessage {
	trimmed := strings.TrimSpace(line)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return Unrecognized{Line: line, Reason: "empty line"}
	}

	bad := func(reason string) ServerMessage {
		return Unrecognized{Line: line, Reason: reason}
	}
	args := fields[1:]

	switch fields[0] {
	case CmdTrigger:
		if len(args) != 4 {
			return bad("malformed TRIGGER")
		}
		dir, ok := ParseDirection(args[1])
		if !ok {
			return bad("bad direction")
		}
		threshold, ok1 := parseFloat(args[2])
		current, ok2 := parseFloat(args[3])
		if !ok1 || !ok2 {
			return bad("bad number")
		}
		return AlertTriggered{Symbol: args[0], Direction: dir, Threshold: threshold, CurrentPrice: current}

	case CmdAlertAdded:
		if len(args) != 3 {
			return bad("malformed ALERTADDED")
		}
		dir, ok := ParseDirection(args[1])
		if !ok {
			return bad("bad direction")
		}
		threshold, ok := parseFloat(args[2])
		if !ok {
			return bad("bad number")
		}
		return AlertAdded{Symbol: args[0], Direction: dir, Threshold: threshold}

	case CmdAlertDeleted:
		if len(args) != 2 {
			return bad("malformed ALERTDELETED")
		}
		dir, ok := ParseDirection(args[1])
		if !ok {
			return bad("bad direction")
		}
		return AlertRemoved{Symbol: args[0], Direction: dir}

	case CmdPrice:
		if len(args) != 2 {
			return bad("malformed PRICE")
		}
		price, ok := parseFloat(args[1])
		if !ok {
			return bad("bad number")
		}
		return PriceChecked{Symbol: args[0], Price: price}

	case CmdBought, CmdSold:
		if len(args) != 2 {
			return bad("malformed " + fields[0])
		}
		qty, ok := parseInt(args[1])
		if !ok {
			return bad("bad quantity")
		}
		if fields[0] == CmdBought {
			return StockBought{Symbol: args[0], Quantity: qty}
		}
		return StockSold{Symbol: args[0], Quantity: qty}

	case CmdData:
		payload := strings.TrimSpace(strings.TrimPrefix(trimmed, CmdData))
		if payload == "" {
			return bad("missing DATA payload")
		}
		var data AllClientData
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			return bad("malformed DATA payload: " + err.Error())
		}
		for _, a := range data.Alerts {
			if !a.Direction.Valid() {
				return bad("bad direction in DATA payload")
			}
		}
		return data

	case CmdLogin:
		if len(args) != 0 {
			return bad("malformed LOGIN")
		}
		return UserLogged{}

	case CmdRegister:
		if len(args) != 0 {
			return bad("malformed REGISTER")
		}
		return UserRegistered{}

	case CmdErr:
		return Error{Message: strings.TrimSpace(strings.TrimPrefix(trimmed, CmdErr))}
	}

	return bad("unknown command " + fields[0])
}
