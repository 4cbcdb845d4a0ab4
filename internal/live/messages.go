// Package live maintains the client side of the marketplace change feed: a
// websocket connection that delivers authoritative domain-list snapshots,
// with bounded reconnection and heartbeat handling.
package live

import (
	"encoding/json"
	"fmt"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// Message types on the change-feed wire. The server pushes domains_update,
// initial_data, error, and heartbeat; the client sends subscribe,
// get_initial_data, and heartbeat_response.
const (
	MsgDomainsUpdate     = "domains_update"
	MsgInitialData       = "initial_data"
	MsgError             = "error"
	MsgHeartbeat         = "heartbeat"
	MsgHeartbeatResponse = "heartbeat_response"
	MsgGetInitialData    = "get_initial_data"
	MsgSubscribe         = "subscribe"
)

// Envelope is the discriminated union carried on every change-feed frame.
// Exactly which fields are meaningful depends on Type.
type Envelope struct {
	Type      string                  `json:"type"`
	Channel   string                  `json:"channel,omitempty"`
	Domains   []marketplace.APIDomain `json:"domains,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Timestamp string                  `json:"timestamp,omitempty"`
}

// DecodeEnvelope is the single validation point for incoming frames. A frame
// that fails to decode, carries no type, or carries an unknown type is
// rejected here and never reaches the coordinator.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("live: decode frame: %w", err)
	}

	switch env.Type {
	case MsgDomainsUpdate, MsgInitialData, MsgError, MsgHeartbeat, MsgHeartbeatResponse:
		return env, nil
	case "":
		return Envelope{}, fmt.Errorf("live: frame missing type discriminator")
	default:
		return Envelope{}, fmt.Errorf("live: unknown frame type %q", env.Type)
	}
}

// Snapshot converts the envelope's wire records to domain records.
func (e Envelope) Snapshot() []domain.Domain {
	return marketplace.ToDomainList(e.Domains)
}
