package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names a canonical event variant.
type EventKind string

const (
	EventPoolCreated          EventKind = "pool_created"
	EventSwap                 EventKind = "swap"
	EventLiquidityAdded       EventKind = "liquidity_added"
	EventLiquidityRemoved     EventKind = "liquidity_removed"
	EventFeeChanged           EventKind = "fee_changed"
	EventOwnershipTransferred EventKind = "ownership_transferred"
)

// Event is one canonical decoded pool event. Protocol adapters translate
// native payloads into this set; the engine never sees protocol names.
type Event interface {
	EventKind() EventKind
}

// Envelope carries a canonical event with its delivery metadata.
type Envelope struct {
	Protocol  string
	TxHash    string
	Sender    string
	Timestamp time.Time
	Event     Event
}

// PoolCreated announces a new pool and its token legs.
type PoolCreated struct {
	PoolID      string
	Token0      string
	Token1      string
	FeeRate     decimal.Decimal
	TickSpacing int32
}

func (PoolCreated) EventKind() EventKind { return EventPoolCreated }

// Swap is a canonical trade. AToB means token0 in, token1 out. TokenIn is
// set by adapters whose native events report the input coin type instead
// of a direction flag; the engine resolves it against the pool legs and it
// wins over AToB. TickAfter is nil when the native event exposes neither a
// tick nor a sqrt price.
type Swap struct {
	PoolID         string
	AToB           bool
	TokenIn        string
	AmountIn       *big.Int
	AmountOut      *big.Int
	FeeAmount      *big.Int
	ProtocolFee    *big.Int
	SqrtPriceAfter *big.Int
	TickAfter      *int32
}

func (Swap) EventKind() EventKind { return EventSwap }

// LiquidityChange is the shared shape of add and remove events.
type LiquidityChange struct {
	PoolID         string
	PositionID     string
	Owner          string
	Amount0        *big.Int
	Amount1        *big.Int
	LiquidityDelta *big.Int
	TickLower      int32
	TickUpper      int32
}

// LiquidityAdded mints liquidity into a position.
type LiquidityAdded struct{ LiquidityChange }

func (LiquidityAdded) EventKind() EventKind { return EventLiquidityAdded }

// LiquidityRemoved burns liquidity out of a position.
type LiquidityRemoved struct{ LiquidityChange }

func (LiquidityRemoved) EventKind() EventKind { return EventLiquidityRemoved }

// FeeChanged updates the pool fee rate.
type FeeChanged struct {
	PoolID     string
	NewFeeRate decimal.Decimal
}

func (FeeChanged) EventKind() EventKind { return EventFeeChanged }

// OwnershipTransferred moves a position object between owners. NewObjectID
// is set when the protocol keys positions by (position, owner) and the
// transfer re-keys the row; it equals ObjectID otherwise.
type OwnershipTransferred struct {
	ObjectID    string
	NewObjectID string
	FromOwner   string
	ToOwner     string
}

func (OwnershipTransferred) EventKind() EventKind { return EventOwnershipTransferred }
