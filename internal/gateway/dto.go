package gateway

import "candlesystem/internal/model"

// clientEnvelope is the minimal probe used to read a client frame's
// action before unmarshaling the rest of it, mirroring how a teacher's
// readPump first sniffs a discriminant field off the wire.
type clientEnvelope struct {
	Action string `json:"action"`
}

// subscribeRequest subscribes the connection to one or more symbols.
type subscribeRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// unsubscribeRequest removes one or more symbols from the connection.
type unsubscribeRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// connectedMessage is sent once, immediately after the handshake.
type connectedMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// subscriptionMessage acknowledges a subscribe/unsubscribe request.
type subscriptionMessage struct {
	Type      string   `json:"type"`
	Symbols   []string `json:"symbols"`
	Timestamp int64    `json:"timestamp"`
}

// pongMessage answers a client ping.
type pongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// syncStatistics is the nested statistics block of a sync_complete message.
type syncStatistics struct {
	NewRecords    int    `json:"new_records"`
	TotalRecords  int64  `json:"total_records"`
	LastPrice     string `json:"last_price"`
	LastRecordTS  int64  `json:"last_record"`
}

// syncCompleteMessage is fanned out to every client subscribed to Symbol.
type syncCompleteMessage struct {
	Type       string         `json:"type"`
	Symbol     string         `json:"symbol"`
	Timestamp  int64          `json:"timestamp"`
	Statistics syncStatistics `json:"statistics"`
}

func syncCompleteFromEvent(ev model.SyncCompleteEvent, now int64) syncCompleteMessage {
	return syncCompleteMessage{
		Type:      "sync_complete",
		Symbol:    ev.Symbol,
		Timestamp: now,
		Statistics: syncStatistics{
			NewRecords:   ev.NewRecords,
			TotalRecords: ev.Total,
			LastPrice:    ev.LastPrice,
			LastRecordTS: ev.LastRecordTS.UnixMilli(),
		},
	}
}

// statsData is the nested data block of a stats message.
type statsData struct {
	TotalConnections int            `json:"total_connections"`
	Subscriptions    map[string]int `json:"subscriptions"`
}

// statsMessage answers a "stats" request with the broker's own view of
// connection health.
type statsMessage struct {
	Type      string    `json:"type"`
	Data      statsData `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

// errorMessage reports a malformed or unknown client frame.
type errorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
