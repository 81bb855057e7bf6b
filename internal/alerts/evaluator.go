// Package alerts decides when a price alert fires.
package alerts

import "stock-alert-server/internal/protocol"

// Alert is a threshold subscription on one symbol.
type Alert struct {
	Symbol    string
	Direction protocol.Direction
	Threshold float64
}

// Trigger is an alert whose predicate holds at Price.
type Trigger struct {
	Alert
	Price float64
}

// PriceLookup returns the current price of a symbol, if known.
type PriceLookup interface {
	Get(symbol string) (float64, bool)
}

// Triggered reports whether price satisfies the alert predicate. Both
// comparisons are strict: a price equal to the threshold never fires.
func Triggered(direction protocol.Direction, threshold, price float64) bool {
	switch direction {
	case protocol.Above:
		return price > threshold
	case protocol.Below:
		return price < threshold
	}
	return false
}

// Evaluate returns the alerts that fire against prices, in input order.
// Alerts on symbols without a known price are skipped.
func Evaluate(prices PriceLookup, list []Alert) []Trigger {
	var fired []Trigger
	for _, a := range list {
		price, ok := prices.Get(a.Symbol)
		if !ok {
			continue
		}
		if Triggered(a.Direction, a.Threshold, price) {
			fired = append(fired, Trigger{Alert: a, Price: price})
		}
	}
	return fired
}

// Message converts a trigger into its wire notification.
func (t Trigger) Message() protocol.AlertTriggered {
	return protocol.AlertTriggered{
		Symbol:       t.Symbol,
		Direction:    t.Direction,
		Threshold:    t.Threshold,
		CurrentPrice: t.Price,
	}
}
