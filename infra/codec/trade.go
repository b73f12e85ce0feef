// Package codec defines the binary wire format for trade events
// handed to the reporting pipeline. The body is protobuf wire encoding
// written by hand with protowire (no generated types), framed with a
// length + CRC32 header so consumers can detect truncation and
// corruption.
package codec

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"google.golang.org/protobuf/encoding/protowire"

	"fenrir/domain/book"
)

const frameHeaderSize = 8

var ErrCorruptFrame = errors.New("codec: corrupted frame")

// Field numbers of the trade event message. Append-only; never reuse.
const (
	fieldTradeID       = 1
	fieldReportSeq     = 2
	fieldExecID        = 3
	fieldSymbol        = 4
	fieldQty           = 5
	fieldPrice         = 6
	fieldTakerOrderID  = 7
	fieldMakerOrderID  = 8
	fieldTakerLeaveQty = 9
	fieldTakerCumQty   = 10
	fieldMakerLeaveQty = 11
	fieldMakerCumQty   = 12
	fieldTakerAccount  = 13
	fieldMakerAccount  = 14
)

// TradeEvent is the flattened, reference-free form of a MatchedPair.
type TradeEvent struct {
	TradeID   uint64
	ReportSeq uint64
	ExecID    string
	Symbol    string
	Qty       int64
	Price     int64

	TakerOrderID  uint64
	MakerOrderID  uint64
	TakerLeaveQty int64
	TakerCumQty   int64
	MakerLeaveQty int64
	MakerCumQty   int64
	TakerAccount  string
	MakerAccount  string
}

// FromPair flattens p for the wire. The order references are not
// carried; the pipeline must never retain book-owned orders.
func FromPair(p book.MatchedPair) TradeEvent {
	return TradeEvent{
		TradeID:       p.TradeID,
		ReportSeq:     p.ReportSeq,
		ExecID:        p.ExecID,
		Symbol:        p.Symbol,
		Qty:           p.Qty,
		Price:         p.Price,
		TakerOrderID:  p.Taker.OrderID,
		MakerOrderID:  p.Maker.OrderID,
		TakerLeaveQty: p.TakerLeaveQty,
		TakerCumQty:   p.TakerCumQty,
		MakerLeaveQty: p.MakerLeaveQty,
		MakerCumQty:   p.MakerCumQty,
		TakerAccount:  p.Taker.Account,
		MakerAccount:  p.Maker.Account,
	}
}

// EncodeTrade returns the framed wire form of ev.
func EncodeTrade(ev TradeEvent) []byte {
	var b []byte
	b = appendUint(b, fieldTradeID, ev.TradeID)
	b = appendUint(b, fieldReportSeq, ev.ReportSeq)
	b = appendString(b, fieldExecID, ev.ExecID)
	b = appendString(b, fieldSymbol, ev.Symbol)
	b = appendInt(b, fieldQty, ev.Qty)
	b = appendInt(b, fieldPrice, ev.Price)
	b = appendUint(b, fieldTakerOrderID, ev.TakerOrderID)
	b = appendUint(b, fieldMakerOrderID, ev.MakerOrderID)
	b = appendInt(b, fieldTakerLeaveQty, ev.TakerLeaveQty)
	b = appendInt(b, fieldTakerCumQty, ev.TakerCumQty)
	b = appendInt(b, fieldMakerLeaveQty, ev.MakerLeaveQty)
	b = appendInt(b, fieldMakerCumQty, ev.MakerCumQty)
	b = appendString(b, fieldTakerAccount, ev.TakerAccount)
	b = appendString(b, fieldMakerAccount, ev.MakerAccount)

	return frame(b)
}

func frame(body []byte) []byte {
	framed := make([]byte, frameHeaderSize, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(framed[:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(framed[4:8], crc32.ChecksumIEEE(body))
	return append(framed, body...)
}

// DecodeTrade parses a framed trade event.
func DecodeTrade(data []byte) (TradeEvent, error) {
	var ev TradeEvent
	if len(data) < frameHeaderSize {
		return ev, ErrCorruptFrame
	}
	size := binary.LittleEndian.Uint32(data[:4])
	want := binary.LittleEndian.Uint32(data[4:8])
	body := data[frameHeaderSize:]
	if uint32(len(body)) != size || crc32.ChecksumIEEE(body) != want {
		return ev, ErrCorruptFrame
	}

	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return ev, protowire.ParseError(n)
		}
		body = body[n:]

		switch num {
		case fieldExecID, fieldSymbol, fieldTakerAccount, fieldMakerAccount:
			s, n := protowire.ConsumeString(body)
			if n < 0 {
				return ev, protowire.ParseError(n)
			}
			body = body[n:]
			switch num {
			case fieldExecID:
				ev.ExecID = s
			case fieldSymbol:
				ev.Symbol = s
			case fieldTakerAccount:
				ev.TakerAccount = s
			case fieldMakerAccount:
				ev.MakerAccount = s
			}
		case fieldTradeID, fieldReportSeq, fieldQty, fieldPrice,
			fieldTakerOrderID, fieldMakerOrderID,
			fieldTakerLeaveQty, fieldTakerCumQty,
			fieldMakerLeaveQty, fieldMakerCumQty:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return ev, protowire.ParseError(n)
			}
			body = body[n:]
			switch num {
			case fieldTradeID:
				ev.TradeID = v
			case fieldReportSeq:
				ev.ReportSeq = v
			case fieldQty:
				ev.Qty = int64(v)
			case fieldPrice:
				ev.Price = int64(v)
			case fieldTakerOrderID:
				ev.TakerOrderID = v
			case fieldMakerOrderID:
				ev.MakerOrderID = v
			case fieldTakerLeaveQty:
				ev.TakerLeaveQty = int64(v)
			case fieldTakerCumQty:
				ev.TakerCumQty = int64(v)
			case fieldMakerLeaveQty:
				ev.MakerLeaveQty = int64(v)
			case fieldMakerCumQty:
				ev.MakerCumQty = int64(v)
			}
		default:
			// Unknown field from a newer writer.
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return ev, protowire.ParseError(n)
			}
			body = body[n:]
		}
	}
	return ev, nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, uint64(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
