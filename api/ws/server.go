// Package ws is the session-transport scaffolding around the engine:
// a websocket gateway accepting order-entry requests as JSON and
// streaming execution reports back to every connected session.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fenrir/domain/book"
	"fenrir/engine"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Request is one inbound order-entry message.
type Request struct {
	Type  string `json:"type"` // submit, add, cancel, depth
	ReqID uint64 `json:"req_id,omitempty"`

	// submit / add
	SessionID     string `json:"session_id,omitempty"`
	Account       string `json:"account,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	Side          string `json:"side,omitempty"` // buy or sell
	Price         int64  `json:"price,omitempty"`
	Qty           int64  `json:"qty,omitempty"`
	MinQty        int64  `json:"min_qty,omitempty"`
	PostOnly      bool   `json:"post_only,omitempty"`
	TIF           string `json:"tif,omitempty"` // day or ioc

	// cancel
	OrderID uint64 `json:"order_id,omitempty"`

	// depth
	Levels int `json:"levels,omitempty"`
}

type ack struct {
	Type    string `json:"type"` // ack
	ReqID   uint64 `json:"req_id,omitempty"`
	Status  string `json:"status"`
	OrderID uint64 `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type depthReply struct {
	Type   string           `json:"type"` // depth
	ReqID  uint64           `json:"req_id,omitempty"`
	Status string           `json:"status"`
	Symbol string           `json:"symbol"`
	Bids   []book.LevelView `json:"bids"`
	Asks   []book.LevelView `json:"asks"`
}

type tradeEvent struct {
	Type      string `json:"type"` // trade
	ReportSeq uint64 `json:"report_seq"`
	ExecID    string `json:"exec_id"`
	Symbol    string `json:"symbol"`
	Qty       int64  `json:"qty"`
	Price     int64  `json:"price"`
	TakerID   uint64 `json:"taker_order_id"`
	MakerID   uint64 `json:"maker_order_id"`
}

type doneEvent struct {
	Type     string `json:"type"` // done
	OrderID  uint64 `json:"order_id"`
	Symbol   string `json:"symbol"`
	Reason   string `json:"reason"`
	CumQty   int64  `json:"cum_qty"`
	LeaveQty int64  `json:"leave_qty"`
}

type skipEvent struct {
	Type    string `json:"type"` // skip
	Symbol  string `json:"symbol"`
	TakerID uint64 `json:"taker_order_id"`
	MakerID uint64 `json:"maker_order_id"`
	MinQty  int64  `json:"min_qty"`
}

// Server fans execution reports out to every connected session and
// forwards order-entry requests to the engine. It implements
// book.Events; register it in the engine's reporter fanout.
type Server struct {
	eng *engine.Engine
	log *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewServer(eng *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		eng: eng,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	s.readLoop(c)
}

// Close disconnects every session. New upgrades are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
}

func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(c, ack{Type: "ack", Status: "ERROR", Error: "bad request"})
			continue
		}
		s.dispatch(c, req)
	}
}

func (s *Server) dispatch(c *client, req Request) {
	switch req.Type {
	case "submit", "add":
		o := &book.Order{
			SessionID:     req.SessionID,
			Account:       req.Account,
			ClientOrderID: req.ClientOrderID,
			Symbol:        req.Symbol,
			Side:          sideOf(req.Side),
			Price:         req.Price,
			OrderQty:      req.Qty,
			MinQty:        req.MinQty,
			PostOnly:      req.PostOnly,
			TIF:           tifOf(req.TIF),
		}
		var (
			st  book.StatusCode
			err error
		)
		if req.Type == "submit" {
			st, err = s.eng.Submit(o)
		} else {
			st, err = s.eng.AddResting(o)
		}
		a := ack{Type: "ack", ReqID: req.ReqID, Status: st.String(), OrderID: o.OrderID}
		if err != nil {
			a.Status = "ERROR"
			a.Error = err.Error()
		}
		s.reply(c, a)

	case "cancel":
		st, err := s.eng.Cancel(book.CancelInfo{Symbol: req.Symbol, OrderID: req.OrderID})
		a := ack{Type: "ack", ReqID: req.ReqID, Status: st.String()}
		if err != nil {
			a.Status = "ERROR"
			a.Error = err.Error()
		}
		s.reply(c, a)

	case "depth":
		bids, asks, st, err := s.eng.Depth(req.Symbol, req.Levels)
		if err != nil {
			s.reply(c, ack{Type: "ack", ReqID: req.ReqID, Status: "ERROR", Error: err.Error()})
			return
		}
		s.reply(c, depthReply{
			Type: "depth", ReqID: req.ReqID, Status: st.String(),
			Symbol: req.Symbol, Bids: bids, Asks: asks,
		})

	default:
		s.reply(c, ack{Type: "ack", ReqID: req.ReqID, Status: "ERROR", Error: "unknown type"})
	}
}

// Trade implements book.Events.
func (s *Server) Trade(p book.MatchedPair) {
	s.broadcast(tradeEvent{
		Type: "trade", ReportSeq: p.ReportSeq, ExecID: p.ExecID,
		Symbol: p.Symbol, Qty: p.Qty, Price: p.Price,
		TakerID: p.Taker.OrderID, MakerID: p.Maker.OrderID,
	})
}

// Done implements book.Events.
func (s *Server) Done(o *book.Order, reason book.DoneReason) {
	s.broadcast(doneEvent{
		Type: "done", OrderID: o.OrderID, Symbol: o.Symbol,
		Reason: reason.String(), CumQty: o.CumQty, LeaveQty: o.LeaveQty,
	})
}

// Skip implements book.Events.
func (s *Server) Skip(taker, maker *book.Order) {
	s.broadcast(skipEvent{
		Type: "skip", Symbol: maker.Symbol,
		TakerID: taker.OrderID, MakerID: maker.OrderID, MinQty: maker.MinQty,
	})
}

// broadcast runs on a shard goroutine; a slow session gets dropped
// messages, never a stalled matching pass.
func (s *Server) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("event marshal failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Server) reply(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("reply marshal failed", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.conn.Close()
}

func sideOf(s string) book.Side {
	if s == "sell" {
		return book.Sell
	}
	return book.Buy
}

func tifOf(s string) book.TimeInForce {
	if s == "ioc" {
		return book.IOC
	}
	return book.Day
}
