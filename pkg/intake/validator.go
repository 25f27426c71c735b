// pkg/intake/validator.go
package intake

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PayloadValidator guards the normalization boundary: it rejects oversized
// or empty payloads and rate-limits each source independently so one noisy
// producer cannot starve the pipeline.
type PayloadValidator struct {
	rateLimiters map[Source]*rate.Limiter
	maxBytes     int
	perMinute    int
	burst        int
	mu           sync.Mutex
}

// NewPayloadValidator creates a validator. perMinute and burst bound each
// source's event rate; maxBytes bounds the serialized payload size.
func NewPayloadValidator(maxBytes, perMinute, burst int) *PayloadValidator {
	if perMinute <= 0 {
		perMinute = 100
	}
	if burst <= 0 {
		burst = 10
	}
	return &PayloadValidator{
		rateLimiters: make(map[Source]*rate.Limiter),
		maxBytes:     maxBytes,
		perMinute:    perMinute,
		burst:        burst,
	}
}

// Validate checks a raw payload before normalization.
func (pv *PayloadValidator) Validate(source Source, payload map[string]interface{}) error {
	switch source {
	case SourceCICD, SourceRuntime, SourceMonitoring, SourceUserReport, SourceSecurityScan:
	default:
		return fmt.Errorf("unknown source: %s", source)
	}

	if len(payload) == 0 {
		return fmt.Errorf("empty payload from source: %s", source)
	}

	if pv.maxBytes > 0 {
		if size := len(fmt.Sprintf("%v", payload)); size > pv.maxBytes {
			return fmt.Errorf("payload too large (%d bytes, max %d)", size, pv.maxBytes)
		}
	}

	if !pv.allow(source) {
		return fmt.Errorf("rate limit exceeded for source: %s", source)
	}

	return nil
}

func (pv *PayloadValidator) allow(source Source) bool {
	pv.mu.Lock()
	limiter, exists := pv.rateLimiters[source]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(pv.perMinute)), pv.burst)
		pv.rateLimiters[source] = limiter
	}
	pv.mu.Unlock()

	return limiter.Allow()
}
