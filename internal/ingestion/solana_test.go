package ingestion

import "testing"

func TestDecodeEnhancedSwapRequiresSwapType(t *testing.T) {
	m := enhancedSwapMessage{
		Type:      "transfer",
		TokenIn:   "So111",
		TokenOut:  "USDC",
		AmountIn:  "100",
		AmountOut: "99",
		RoutePlan: []string{"a", "b"},
	}
	if _, ok := decodeEnhancedSwap("helius", m); ok {
		t.Fatal("non-swap message should be rejected")
	}
}

func TestDecodeEnhancedSwapRequiresMultiHopRoute(t *testing.T) {
	m := enhancedSwapMessage{
		Type:      "swap",
		TokenIn:   "So111",
		TokenOut:  "USDC",
		AmountIn:  "100",
		AmountOut: "99",
		RoutePlan: []string{"a"},
	}
	if _, ok := decodeEnhancedSwap("jito", m); ok {
		t.Fatal("single-hop route should be rejected")
	}
}

func TestDecodeEnhancedSwapAccepted(t *testing.T) {
	m := enhancedSwapMessage{
		Type:      "swap",
		TokenIn:   "So111",
		TokenOut:  "USDC",
		AmountIn:  "100",
		AmountOut: "99",
		RoutePlan: []string{"a", "b"},
	}
	evt, ok := decodeEnhancedSwap("helius", m)
	if !ok {
		t.Fatal("expected swap to decode")
	}
	if evt.TokenIn != "So111" || evt.TokenOut != "USDC" {
		t.Errorf("unexpected tokens: in=%s out=%s", evt.TokenIn, evt.TokenOut)
	}
}
