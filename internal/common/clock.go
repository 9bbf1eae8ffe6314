package common

// clock.go defines NowMicros, the single source of "now" for TTL math
// throughout minis.
//
// © 2025 minis authors. MIT License.

import "time"

// NowMicros returns the current wall-clock time as microseconds since the
// Unix epoch. The engine's TTL fields (expire_at_us) are always expressed in
// this unit; callers that need "now" for expire/ttl/sweep comparisons should
// call this once per operation rather than re-deriving it from time.Now in
// several places, so a single observation is used consistently.
func NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// MillisUntil floors the difference (deadlineUs - nowUs) to whole
// milliseconds, never returning a negative value. Used by TTL to report
// "milliseconds until expiry".
func MillisUntil(deadlineUs, nowUs uint64) int64 {
	if deadlineUs <= nowUs {
		return 0
	}
	return int64((deadlineUs - nowUs) / 1000)
}
