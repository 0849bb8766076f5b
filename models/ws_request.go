package models

import (
	"fmt"
	"strconv"
	"time"
)

// WsRequest is an outbound frame. ID is echoed back in the acknowledgement.
type WsRequest struct {
	Time    int64     `json:"time"`
	ID      *int64    `json:"id,omitempty"`
	Channel string    `json:"channel"`
	Event   EventKind `json:"event,omitempty"`
	Payload []string  `json:"payload,omitempty"`
}

func NewSubscribe(id int64, at time.Time, channel string, payload ...string) WsRequest {
	return WsRequest{Time: at.Unix(), ID: &id, Channel: channel, Event: EventSubscribe, Payload: payload}
}

func NewUnsubscribe(id int64, at time.Time, channel string, payload ...string) WsRequest {
	return WsRequest{Time: at.Unix(), ID: &id, Channel: channel, Event: EventUnsubscribe, Payload: payload}
}

func NewPing(at time.Time) WsRequest {
	return WsRequest{Time: at.Unix(), Channel: ChannelPing}
}

// OrderBookPayload builds the spot.order_book subscription arguments: pair,
// depth level (5, 10, 20, 50 or 100) and push interval (100ms or 1000ms).
func OrderBookPayload(pair string, level int, interval time.Duration) []string {
	return []string{pair, strconv.Itoa(level), fmt.Sprintf("%dms", interval.Milliseconds())}
}
