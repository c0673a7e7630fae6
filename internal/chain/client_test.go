package chain

import "testing"

func TestCoinTypesFromPoolType(t *testing.T) {
	poolType := "0xabc::pool::Pool<0x2::sui::SUI, 0xdef::usdc::USDC>"
	coinA, coinB := CoinTypesFromPoolType(poolType)
	if coinA != "0x2::sui::SUI" {
		t.Fatalf("coinA = %q", coinA)
	}
	if coinB != "0xdef::usdc::USDC" {
		t.Fatalf("coinB = %q", coinB)
	}
}

func TestCoinTypesFromPoolTypeMalformed(t *testing.T) {
	coinA, coinB := CoinTypesFromPoolType("0xabc::pool::Pools")
	if coinA != "" || coinB != "" {
		t.Fatalf("expected empty coin types, got %q / %q", coinA, coinB)
	}
}

func TestStringField(t *testing.T) {
	obj := &Object{Fields: map[string]any{
		"fee_rate":     float64(3000),
		"tick_spacing": float64(60),
		"coin_a":       "123456789",
	}}
	if got := obj.StringField("fee_rate"); got != "3000" {
		t.Fatalf("fee_rate = %q", got)
	}
	if got := obj.StringField("coin_a"); got != "123456789" {
		t.Fatalf("coin_a = %q", got)
	}
	if got := obj.StringField("missing"); got != "" {
		t.Fatalf("missing field = %q", got)
	}
}
