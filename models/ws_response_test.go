package models

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

const pongFrame = `{"time":1545404023,"channel":"spot.pong","event":"","error":null,"result":null}`

const orderBookFrame = `{
	"time": 1606295412,
	"time_ms": 1606295412213,
	"channel": "spot.order_book",
	"event": "update",
	"result": {
		"t": 1606295412213,
		"lastUpdateId": 48791820,
		"s": "BTC_USDT",
		"bids": [
			["19079.55", "0.0195"],
			["19079.07", "0.7341"],
			["19076.23", "0.00011808"],
			["19073.9", "0.105"],
			["19068.83", "0.1009"]
		],
		"asks": [
			["19080.24", "0.1638"],
			["19080.91", "0.1366"],
			["19080.92", "0.01"],
			["19081.29", "0.01"],
			["19083.8", "0.097"]
		]
	}
}`

func level(price, qty string) PriceLevel {
	return PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func assertLevels(t *testing.T, side string, got, want []PriceLevel) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d levels, got %d", side, len(want), len(got))
	}
	for i := range want {
		if !got[i].Price.Equal(want[i].Price) || !got[i].Quantity.Equal(want[i].Quantity) {
			t.Fatalf("%s[%d]: expected %s/%s, got %s/%s", side, i,
				want[i].Price, want[i].Quantity, got[i].Price, got[i].Quantity)
		}
	}
}

func TestDecodePong(t *testing.T) {
	resp, err := DecodeWsResponse([]byte(pongFrame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Time != 1545404023 {
		t.Fatalf("unexpected time: %d", resp.Time)
	}
	if resp.ID != nil {
		t.Fatalf("expected no id, got %d", *resp.ID)
	}
	if _, ok := resp.Payload.(Pong); !ok {
		t.Fatalf("expected Pong payload, got %T", resp.Payload)
	}
}

func TestDecodePongWithID(t *testing.T) {
	resp, err := DecodeWsResponse([]byte(`{"time":1,"id":7,"channel":"spot.pong"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == nil || *resp.ID != 7 {
		t.Fatalf("expected id 7, got %v", resp.ID)
	}
	if resp.Payload.Channel() != ChannelPong {
		t.Fatalf("unexpected channel: %s", resp.Payload.Channel())
	}
}

func TestDecodeOrderBookUpdate(t *testing.T) {
	resp, err := DecodeWsResponse([]byte(orderBookFrame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Time != 1606295412 {
		t.Fatalf("unexpected time: %d", resp.Time)
	}
	msg, ok := resp.Payload.(OrderBookMessage)
	if !ok {
		t.Fatalf("expected OrderBookMessage, got %T", resp.Payload)
	}
	update, ok := msg.Event.(Update[OrderBookSnapshot])
	if !ok {
		t.Fatalf("expected update event, got %T", msg.Event)
	}
	snap, err := update.Result.Unwrap()
	if err != nil {
		t.Fatalf("expected ok result, got %v", err)
	}

	if snap.UpdateTimeMs != 1606295412213 {
		t.Fatalf("unexpected update time: %d", snap.UpdateTimeMs)
	}
	if snap.LastUpdateID != 48791820 {
		t.Fatalf("unexpected last update id: %d", snap.LastUpdateID)
	}
	if snap.CurrencyPair != "BTC_USDT" {
		t.Fatalf("unexpected pair: %s", snap.CurrencyPair)
	}
	assertLevels(t, "bids", snap.Bids, []PriceLevel{
		level("19079.55", "0.0195"),
		level("19079.07", "0.7341"),
		level("19076.23", "0.00011808"),
		level("19073.9", "0.105"),
		level("19068.83", "0.1009"),
	})
	assertLevels(t, "asks", snap.Asks, []PriceLevel{
		level("19080.24", "0.1638"),
		level("19080.91", "0.1366"),
		level("19080.92", "0.01"),
		level("19081.29", "0.01"),
		level("19083.8", "0.097"),
	})
}

func TestDecodeIsIdempotent(t *testing.T) {
	for _, frame := range []string{pongFrame, orderBookFrame} {
		first, err := DecodeWsResponse([]byte(frame))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		second, err := DecodeWsResponse([]byte(frame))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("decoding twice differs: %+v != %+v", first, second)
		}
	}
}

func TestDecodeSubscribeAck(t *testing.T) {
	frame := `{"time":1606292218,"id":12,"channel":"spot.order_book","event":"subscribe","error":null,"result":{"status":"success"}}`
	resp, err := DecodeWsResponse([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg := resp.Payload.(OrderBookMessage)
	ack, ok := msg.Event.(Subscribe[OrderBookSnapshot])
	if !ok {
		t.Fatalf("expected subscribe event, got %T", msg.Event)
	}
	if ack.Result.IsErr {
		t.Fatalf("expected success, got %v", ack.Result.Err)
	}
	if *resp.ID != 12 {
		t.Fatalf("unexpected id: %d", *resp.ID)
	}
}

func TestDecodeErrorResult(t *testing.T) {
	frame := `{"time":1,"id":3,"channel":"spot.order_book","event":"unsubscribe","error":{"code":2,"message":"unknown currency pair GT_USD"},"result":null}`
	resp, err := DecodeWsResponse([]byte(frame))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ack, ok := resp.Payload.(OrderBookMessage).Event.(Unsubscribe[OrderBookSnapshot])
	if !ok {
		t.Fatalf("expected unsubscribe event")
	}
	if !ack.Result.IsErr {
		t.Fatalf("expected error result")
	}
	if ack.Result.Err.Code != WsErrInvalidArgument || ack.Result.Err.Message != "unknown currency pair GT_USD" {
		t.Fatalf("unexpected error: %+v", ack.Result.Err)
	}
	if _, err := ack.Result.Unwrap(); err == nil {
		t.Fatalf("expected Unwrap to return the server error")
	}
}

func TestDecodeResultNeedsExactlyOneSide(t *testing.T) {
	cases := map[string]string{
		"both":           `{"time":1,"channel":"spot.order_book","event":"update","error":{"code":3,"message":"x"},"result":{"t":1,"lastUpdateId":1,"s":"A_B","bids":[],"asks":[]}}`,
		"neither":        `{"time":1,"channel":"spot.order_book","event":"update","error":null,"result":null}`,
		"neither absent": `{"time":1,"channel":"spot.order_book","event":"subscribe"}`,
	}
	for name, frame := range cases {
		_, err := DecodeWsResponse([]byte(frame))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("%s: expected DecodeError, got %v", name, err)
		}
	}
}

func TestDecodeUnknownChannel(t *testing.T) {
	_, err := DecodeWsResponse([]byte(`{"time":1,"channel":"spot.trades","event":"update","result":{}}`))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Kind != ErrUnknownChannel || pe.Channel != "spot.trades" {
		t.Fatalf("unexpected protocol error: %+v", pe)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := DecodeWsResponse([]byte(`{"time":1,"channel":"spot.order_book","event":"","result":{}}`))
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Kind != ErrUnknownEvent {
		t.Fatalf("expected unknown event error, got %v", err)
	}
}

func TestDecodeMissingEnvelopeFields(t *testing.T) {
	for _, frame := range []string{
		`{"channel":"spot.pong"}`,
		`{"time":1}`,
		`{"time":"1","channel":"spot.pong"}`,
		`not json`,
	} {
		_, err := DecodeWsResponse([]byte(frame))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("%s: expected DecodeError, got %v", frame, err)
		}
	}
}

func TestDecodeErrorCarriesPath(t *testing.T) {
	frame := `{"time":1,"channel":"spot.order_book","event":"update","result":{"t":1,"lastUpdateId":1,"s":"BTC_USDT","bids":[["1","2"],["x","1"]],"asks":[]}}`
	_, err := DecodeWsResponse([]byte(frame))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Path != "result.bids[1]" {
		t.Fatalf("unexpected path: %q", de.Path)
	}

	frame = `{"time":1,"channel":"spot.order_book","event":"update","result":{"t":1,"s":"BTC_USDT","bids":[],"asks":[]}}`
	_, err = DecodeWsResponse([]byte(frame))
	if !errors.As(err, &de) || de.Path != "result.lastUpdateId" {
		t.Fatalf("expected missing lastUpdateId, got %v", err)
	}
}

func TestPriceLevelArity(t *testing.T) {
	var l PriceLevel
	if err := l.UnmarshalJSON([]byte(`["1"]`)); err == nil {
		t.Fatalf("expected error for single element level")
	}
	if err := l.UnmarshalJSON([]byte(`["1","2","3"]`)); err == nil {
		t.Fatalf("expected error for three element level")
	}
}
