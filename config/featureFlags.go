package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ExactDistributedReversal makes payment reversal walk back the stored
// per-invoice allocations of a distributed (untargeted) payment.
// When off, only party counters are restored and the invoices keep their shares.
//
// Set via env:
// - EXACT_DISTRIBUTED_REVERSAL=true
func ExactDistributedReversal() bool {
	return envBool("EXACT_DISTRIBUTED_REVERSAL")
}

// IsDebugMode exposes unexpected error detail in HTTP responses.
//
// Set via env:
// - APP_DEBUG=true
func IsDebugMode() bool {
	return envBool("APP_DEBUG")
}

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
