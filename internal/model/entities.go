package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies a persisted entity type.
type Kind string

const (
	KindPoolInfo       Kind = "PoolInfo"
	KindPoolTokenState Kind = "PoolTokenState"
	KindUserPosition   Kind = "UserPosition"
	KindUserPool       Kind = "UserPool"
	KindUserState      Kind = "UserState"
)

// Entity is a persisted record addressable by kind and id.
type Entity interface {
	EntityKind() Kind
	EntityID() string
}

// New returns a zero value of the entity for a kind, for store decoding.
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindPoolInfo:
		return &PoolInfo{}, nil
	case KindPoolTokenState:
		return &PoolTokenState{}, nil
	case KindUserPosition:
		return &UserPosition{}, nil
	case KindUserPool:
		return &UserPool{}, nil
	case KindUserState:
		return &UserState{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}
}

// PoolInfo is the bootstrapped pool metadata record. Token addresses and
// decimals are immutable after creation; fee rate and current tick are
// updated by swap and fee-change events.
type PoolInfo struct {
	ID          string          `json:"id"`
	Token0      string          `json:"token_0"`
	Token1      string          `json:"token_1"`
	Symbol0     string          `json:"symbol_0"`
	Symbol1     string          `json:"symbol_1"`
	Decimals0   int32           `json:"decimals_0"`
	Decimals1   int32           `json:"decimals_1"`
	FeeRate     decimal.Decimal `json:"fee_rate"`
	CurrentTick int32           `json:"current_tick"`
	TickSpacing int32           `json:"tick_spacing"`
}

func (p *PoolInfo) EntityKind() Kind { return KindPoolInfo }
func (p *PoolInfo) EntityID() string { return p.ID }

// TokenAddress returns the token address for a leg index (0 or 1).
func (p *PoolInfo) TokenAddress(index int) string {
	if index == 0 {
		return p.Token0
	}
	return p.Token1
}

// TokenDecimals returns the decimal count for a leg index (0 or 1).
func (p *PoolInfo) TokenDecimals(index int) int32 {
	if index == 0 {
		return p.Decimals0
	}
	return p.Decimals1
}

// PoolTokenState is the rolling per (pool, token) accumulator. Volume and
// fee counters reset on every snapshot flush; the balance survives.
type PoolTokenState struct {
	ID              string          `json:"id"`
	Timestamp       int64           `json:"timestamp"`
	PoolAddress     string          `json:"pool_address"`
	TokenIndex      int             `json:"token_index"`
	TokenAddress    string          `json:"token_address"`
	TokenSymbol     string          `json:"token_symbol"`
	TokenAmount     decimal.Decimal `json:"token_amount"`
	TokenAmountUSD  decimal.Decimal `json:"token_amount_usd"`
	VolumeAmount    decimal.Decimal `json:"volume_amount"`
	VolumeUSD       decimal.Decimal `json:"volume_usd"`
	FeeRate         decimal.Decimal `json:"fee_rate"`
	TotalFeesUSD    decimal.Decimal `json:"total_fees_usd"`
	UserFeesUSD     decimal.Decimal `json:"user_fees_usd"`
	ProtocolFeesUSD decimal.Decimal `json:"protocol_fees_usd"`
}

func (s *PoolTokenState) EntityKind() Kind { return KindPoolTokenState }
func (s *PoolTokenState) EntityID() string { return s.ID }

// PoolTokenStateID builds the composite id for a (pool, token) pair.
func PoolTokenStateID(poolID, token string) string {
	return poolID + "_" + token
}

// UserPosition tracks one LP position incrementally. Tick bounds are fixed
// on first reference; amounts and USD value are floored at zero.
type UserPosition struct {
	ID          string          `json:"id"`
	UserAddress string          `json:"user_address"`
	PositionID  string          `json:"position_id"`
	PoolAddress string          `json:"pool_address"`
	Timestamp   int64           `json:"timestamp"`
	Amount0     decimal.Decimal `json:"amount_0"`
	Amount1     decimal.Decimal `json:"amount_1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	LowerTick   int32           `json:"lower_tick"`
	UpperTick   int32           `json:"upper_tick"`
	Liquidity   decimal.Decimal `json:"liquidity"`
}

func (p *UserPosition) EntityKind() Kind { return KindUserPosition }
func (p *UserPosition) EntityID() string { return p.ID }

// UserPool is the per (user, pool) rollup rebuilt each scoring cycle.
// Amounts are raw (un-decimaled) token units; all four counters are zeroed
// after the score snapshot is emitted.
type UserPool struct {
	ID             string          `json:"id"`
	UserAddress    string          `json:"user_address"`
	PoolAddress    string          `json:"pool_address"`
	Amount0        decimal.Decimal `json:"amount_0"`
	Amount1        decimal.Decimal `json:"amount_1"`
	Amount0InRange decimal.Decimal `json:"amount_0_in_range"`
	Amount1InRange decimal.Decimal `json:"amount_1_in_range"`
}

func (p *UserPool) EntityKind() Kind { return KindUserPool }
func (p *UserPool) EntityID() string { return p.ID }

// UserPoolID builds the composite id for a (pool, user) pair.
func UserPoolID(poolID, user string) string {
	return poolID + "_" + user
}

// UserState registers a known user so scoring passes can enumerate them.
type UserState struct {
	ID   string `json:"id"`
	User string `json:"user"`
}

func (u *UserState) EntityKind() Kind { return KindUserState }
func (u *UserState) EntityID() string { return u.ID }
