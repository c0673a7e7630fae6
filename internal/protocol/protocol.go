// Package protocol translates native DEX event payloads into the canonical
// event set. One adapter per protocol variant; the accounting engine never
// branches on protocol identity.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poolLedger/internal/clmm"
	"poolLedger/internal/model"
)

// ErrUnknownEvent marks an event type the adapter does not map. Callers
// skip these.
var ErrUnknownEvent = errors.New("unknown event type")

// NativeEvent is one decoded protocol event as delivered by the stream.
type NativeEvent struct {
	Protocol  string          `json:"protocol"`
	Type      string          `json:"type"`
	TxHash    string          `json:"tx_hash"`
	Sender    string          `json:"sender"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Adapter maps one protocol's native payloads to canonical events.
type Adapter interface {
	Name() string
	Decode(ev NativeEvent) (model.Event, error)
}

var adapters = map[string]Adapter{}

func register(a Adapter) {
	adapters[a.Name()] = a
}

// ForName returns the adapter for a protocol name.
func ForName(name string) (Adapter, error) {
	a, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("no adapter for protocol %q", name)
	}
	return a, nil
}

// Names lists the registered protocol names.
func Names() []string {
	out := make([]string, 0, len(adapters))
	for name := range adapters {
		out = append(out, name)
	}
	return out
}

// Decode resolves the adapter for the event's protocol and wraps the
// canonical event in its delivery envelope.
func Decode(ev NativeEvent) (model.Envelope, error) {
	adapter, err := ForName(ev.Protocol)
	if err != nil {
		return model.Envelope{}, err
	}
	decoded, err := adapter.Decode(ev)
	if err != nil {
		return model.Envelope{}, err
	}
	return model.Envelope{
		Protocol:  ev.Protocol,
		TxHash:    ev.TxHash,
		Sender:    ev.Sender,
		Timestamp: time.Unix(ev.Timestamp, 0).UTC(),
		Event:     decoded,
	}, nil
}

// BigInt is an unsigned on-chain integer carried as a JSON string (Sui
// serializes u64/u128 that way). A missing field leaves Int nil.
type BigInt struct {
	*big.Int
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", raw)
	}
	b.Int = v
	return nil
}

// I32 mirrors the on-chain signed tick bit-field encoding.
type I32 struct {
	Bits uint32 `json:"bits"`
}

// Tick unwraps the bit pattern into a signed tick index.
func (t I32) Tick() int32 {
	return clmm.UnwrapTick(t.Bits)
}

// feeRateDenominator converts integer fee rates (parts per million) to a
// fraction.
var feeRateDenominator = decimal.NewFromInt(1_000_000)

func feeRate(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return rate.Div(feeRateDenominator)
}

// decodeObjectTransfer maps the object-change shape shared by protocols
// whose positions are NFT objects: ownership moves to the recipient and
// the ledger row keeps its key.
func decodeObjectTransfer(ev NativeEvent) (model.Event, error) {
	var p struct {
		ObjectID  string `json:"object_id"`
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
	}
	if err := unmarshalPayload(ev, &p); err != nil {
		return nil, err
	}
	return model.OwnershipTransferred{
		ObjectID:    p.ObjectID,
		NewObjectID: p.ObjectID,
		FromOwner:   p.Sender,
		ToOwner:     p.Recipient,
	}, nil
}

func unmarshalPayload(ev NativeEvent, out any) error {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		return fmt.Errorf("decode %s %s payload: %w", ev.Protocol, ev.Type, err)
	}
	return nil
}

// ensureHexPrefix normalizes coin types that arrive without the leading
// address prefix.
func ensureHexPrefix(coinType string) string {
	if coinType == "" || strings.HasPrefix(coinType, "0x") {
		return coinType
	}
	return "0x" + coinType
}
