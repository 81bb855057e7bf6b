package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"stock-alert-server/internal/alerts"
	"stock-alert-server/internal/models"
	"stock-alert-server/internal/pricecache"
	"stock-alert-server/internal/protocol"
	"stock-alert-server/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence contract sessions rely on.
type Store interface {
	Register(ctx context.Context, username, password string) (uint, error)
	Login(ctx context.Context, username, password string) (uint, error)
	AddAlert(ctx context.Context, userID uint, symbol string, direction protocol.Direction, threshold float64) error
	RemoveAlert(ctx context.Context, userID uint, symbol string, direction protocol.Direction) error
	ListAlerts(ctx context.Context, userID uint) ([]models.Alert, error)
	Buy(ctx context.Context, userID uint, symbol string, quantity int64, price float64) (*models.Position, error)
	Sell(ctx context.Context, userID uint, symbol string, quantity int64, price float64) (*models.Position, error)
	ListPositions(ctx context.Context, userID uint) ([]models.Position, error)
}

// ensure the real store satisfies the contract
var _ Store = (*store.Store)(nil)

// Session serves one client connection. It starts unauthenticated; a
// successful LOGIN binds it to a user for the rest of the connection.
// Alerts and positions are always read from the store, never cached here.
type Session struct {
	id     string
	conn   net.Conn
	writer *bufio.Writer
	store  Store
	prices *pricecache.Cache
	logger *zap.Logger

	alertInterval time.Duration
	writeTimeout  time.Duration
	maxLineBytes  int

	userID   uint
	loggedIn bool
}

func newSession(conn net.Conn, st Store, prices *pricecache.Cache, opts sessionOptions, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:            id,
		conn:          conn,
		writer:        bufio.NewWriter(conn),
		store:         st,
		prices:        prices,
		alertInterval: opts.alertInterval,
		writeTimeout:  opts.writeTimeout,
		maxLineBytes:  opts.maxLineBytes,
		logger: logger.With(
			zap.String("session_id", id),
			zap.String("remote", conn.RemoteAddr().String()),
		),
	}
}

type sessionOptions struct {
	alertInterval time.Duration
	writeTimeout  time.Duration
	maxLineBytes  int
}

// Run multiplexes inbound lines with the periodic alert check until the
// peer disconnects, a write fails, or ctx is cancelled. A clean disconnect
// returns nil. The connection is closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	done := make(chan struct{})
	defer close(done)

	lines := make(chan inbound)
	readErr := make(chan error, 1)
	go s.readLoop(lines, readErr, done)

	ticker := time.NewTicker(s.alertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in, ok := <-lines:
			if !ok {
				return <-readErr
			}
			replies := s.handleInbound(ctx, in)
			if err := s.send(replies...); err != nil {
				return err
			}

		case <-ticker.C:
			if err := s.send(s.checkAlerts(ctx)...); err != nil {
				return err
			}
		}
	}
}

// inbound is one line read from the client. tooLong marks a line that
// exceeded maxLineBytes and was discarded up to its newline.
type inbound struct {
	line    string
	tooLong bool
}

func (s *Session) handleInbound(ctx context.Context, in inbound) []protocol.ServerMessage {
	if in.tooLong {
		s.logger.Debug("Line too long, discarded", zap.Int("max_line_bytes", s.maxLineBytes))
		return []protocol.ServerMessage{protocol.Error{Message: ErrLineTooLong.Error()}}
	}
	return s.handleLine(ctx, in.line)
}

// readLoop feeds lines to Run. It closes lines on EOF or error, leaving the
// error (nil for EOF) in errc.
func (s *Session) readLoop(lines chan<- inbound, errc chan<- error, done <-chan struct{}) {
	defer close(lines)

	// One extra byte holds the newline of a line of exactly maxLineBytes.
	reader := bufio.NewReaderSize(s.conn, s.maxLineBytes+1)
	for {
		in, err := readLine(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			errc <- err
			return
		}
		select {
		case lines <- in:
		case <-done:
			errc <- nil
			return
		}
	}
}

// readLine returns the next line without its terminator. A line that does
// not fit in the reader's buffer is skipped through its newline and
// reported as tooLong. A final unterminated line is returned before EOF.
func readLine(r *bufio.Reader) (inbound, error) {
	data, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.ReadSlice('\n')
		}
		if err != nil {
			return inbound{}, err
		}
		return inbound{tooLong: true}, nil
	}
	if err != nil && !(errors.Is(err, io.EOF) && len(data) > 0) {
		return inbound{}, err
	}

	line := strings.TrimSuffix(string(data), "\n")
	return inbound{line: strings.TrimSuffix(line, "\r")}, nil
}

func (s *Session) send(msgs ...protocol.ServerMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	for _, m := range msgs {
		if _, err := s.writer.WriteString(m.Wire()); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// handleLine decodes one client line and returns the replies. Every
// rejected command yields exactly one Error.
func (s *Session) handleLine(ctx context.Context, line string) []protocol.ServerMessage {
	msg := protocol.DecodeClient(line)

	replies, err := s.dispatch(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrStorage) {
			s.logger.Error("Storage failure", zap.String("command", commandName(msg)), zap.Error(err))
		} else {
			s.logger.Debug("Command rejected", zap.String("command", commandName(msg)), zap.Error(err))
		}
		return []protocol.ServerMessage{protocol.Error{Message: errorReason(err)}}
	}
	return replies
}

func (s *Session) dispatch(ctx context.Context, msg protocol.ClientMessage) ([]protocol.ServerMessage, error) {
	switch m := msg.(type) {
	case protocol.Unrecognized:
		return nil, fmt.Errorf("%w: %s", ErrMalformed, m.Reason)
	case protocol.Login:
		return s.login(ctx, m)
	case protocol.Register:
		return s.register(ctx, m)
	}

	if !s.loggedIn {
		return nil, ErrNotLoggedIn
	}

	switch m := msg.(type) {
	case protocol.AddAlert:
		return s.addAlert(ctx, m)
	case protocol.RemoveAlert:
		return s.removeAlert(ctx, m)
	case protocol.CheckPrice:
		return s.checkPrice(m)
	case protocol.BuyStock:
		return s.buy(ctx, m)
	case protocol.SellStock:
		return s.sell(ctx, m)
	case protocol.GetAllClientData:
		return s.allData(ctx)
	}
	return nil, fmt.Errorf("%w: unsupported command", ErrMalformed)
}

func (s *Session) login(ctx context.Context, m protocol.Login) ([]protocol.ServerMessage, error) {
	if s.loggedIn {
		return nil, ErrAlreadyLoggedIn
	}
	id, err := s.store.Login(ctx, m.Username, m.Password)
	if err != nil {
		return nil, err
	}

	s.userID, s.loggedIn = id, true
	s.logger = s.logger.With(zap.Uint("user_id", id))
	s.logger.Info("User logged in", zap.String("username", m.Username))
	return reply(protocol.UserLogged{}), nil
}

// register creates an account but leaves the session unauthenticated.
func (s *Session) register(ctx context.Context, m protocol.Register) ([]protocol.ServerMessage, error) {
	if s.loggedIn {
		return nil, ErrAlreadyLoggedIn
	}
	if _, err := s.store.Register(ctx, m.Username, m.Password); err != nil {
		return nil, err
	}
	return reply(protocol.UserRegistered{}), nil
}

func (s *Session) addAlert(ctx context.Context, m protocol.AddAlert) ([]protocol.ServerMessage, error) {
	symbol := normalizeSymbol(m.Symbol)
	price, err := s.price(symbol)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddAlert(ctx, s.userID, symbol, m.Direction, m.Threshold); err != nil {
		return nil, err
	}

	replies := reply(protocol.AlertAdded{Symbol: symbol, Direction: m.Direction, Threshold: m.Threshold})
	if alerts.Triggered(m.Direction, m.Threshold, price) {
		replies = append(replies, protocol.AlertTriggered{
			Symbol:       symbol,
			Direction:    m.Direction,
			Threshold:    m.Threshold,
			CurrentPrice: price,
		})
	}
	return replies, nil
}

func (s *Session) removeAlert(ctx context.Context, m protocol.RemoveAlert) ([]protocol.ServerMessage, error) {
	symbol := normalizeSymbol(m.Symbol)
	if err := s.store.RemoveAlert(ctx, s.userID, symbol, m.Direction); err != nil {
		return nil, err
	}
	return reply(protocol.AlertRemoved{Symbol: symbol, Direction: m.Direction}), nil
}

func (s *Session) checkPrice(m protocol.CheckPrice) ([]protocol.ServerMessage, error) {
	symbol := normalizeSymbol(m.Symbol)
	price, err := s.price(symbol)
	if err != nil {
		return nil, err
	}
	return reply(protocol.PriceChecked{Symbol: symbol, Price: price}), nil
}

func (s *Session) buy(ctx context.Context, m protocol.BuyStock) ([]protocol.ServerMessage, error) {
	if m.Quantity <= 0 {
		return nil, store.ErrInvalidQuantity
	}
	symbol := normalizeSymbol(m.Symbol)
	price, err := s.price(symbol)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Buy(ctx, s.userID, symbol, m.Quantity, price); err != nil {
		return nil, err
	}
	s.logger.Info("Bought", zap.String("symbol", symbol), zap.Int64("quantity", m.Quantity), zap.Float64("price", price))
	return reply(protocol.StockBought{Symbol: symbol, Quantity: m.Quantity}), nil
}

func (s *Session) sell(ctx context.Context, m protocol.SellStock) ([]protocol.ServerMessage, error) {
	if m.Quantity <= 0 {
		return nil, store.ErrInvalidQuantity
	}
	symbol := normalizeSymbol(m.Symbol)
	price, err := s.price(symbol)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Sell(ctx, s.userID, symbol, m.Quantity, price); err != nil {
		return nil, err
	}
	s.logger.Info("Sold", zap.String("symbol", symbol), zap.Int64("quantity", m.Quantity), zap.Float64("price", price))
	return reply(protocol.StockSold{Symbol: symbol, Quantity: m.Quantity}), nil
}

func (s *Session) allData(ctx context.Context) ([]protocol.ServerMessage, error) {
	positions, err := s.store.ListPositions(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.ListAlerts(ctx, s.userID)
	if err != nil {
		return nil, err
	}

	data := protocol.AllClientData{
		Stocks: make([]protocol.StockData, 0, len(positions)),
		Alerts: make([]protocol.AlertData, 0, len(stored)),
	}
	for _, p := range positions {
		data.Stocks = append(data.Stocks, protocol.StockData{Symbol: p.Symbol, Quantity: p.Quantity, TotalPrice: p.CostBasis})
	}
	for _, a := range stored {
		data.Alerts = append(data.Alerts, protocol.AlertData{Symbol: a.Symbol, Direction: a.Direction, Threshold: a.Threshold})
	}
	return reply(data), nil
}

// checkAlerts re-evaluates the user's stored alerts against the current
// cache. Failures are logged; the timer never produces ERR lines.
func (s *Session) checkAlerts(ctx context.Context) []protocol.ServerMessage {
	if !s.loggedIn {
		return nil
	}

	stored, err := s.store.ListAlerts(ctx, s.userID)
	if err != nil {
		s.logger.Error("Failed to load alerts for periodic check", zap.Error(err))
		return nil
	}

	list := make([]alerts.Alert, 0, len(stored))
	for _, a := range stored {
		list = append(list, alerts.Alert{Symbol: a.Symbol, Direction: a.Direction, Threshold: a.Threshold})
	}

	fired := alerts.Evaluate(s.prices.Snapshot(), list)
	out := make([]protocol.ServerMessage, 0, len(fired))
	for _, t := range fired {
		out = append(out, t.Message())
	}
	if len(out) > 0 {
		s.logger.Debug("Alerts triggered", zap.Int("count", len(out)))
	}
	return out
}

func (s *Session) price(symbol string) (float64, error) {
	price, ok := s.prices.Get(symbol)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolUnavailable, symbol)
	}
	return price, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(symbol)
}

func reply(msgs ...protocol.ServerMessage) []protocol.ServerMessage {
	return msgs
}

func commandName(msg protocol.ClientMessage) string {
	if u, ok := msg.(protocol.Unrecognized); ok {
		if fields := strings.Fields(u.Line); len(fields) > 0 {
			return fields[0]
		}
		return ""
	}
	return strings.Fields(msg.Wire())[0]
}
