// Package minis implements the embeddable key-value storage engine
// described by spec §1–§9: a sharded Robin-Hood hash table keyed by string,
// a global TTL min-heap, order-statistic sorted sets, a hash-container
// type, a bounded worker pool for large-container destruction, and a
// CRC-protected binary snapshot format.
//
// The wire protocol, TCP server loop, CLI client, and foreign-function
// host glue named in spec §6 are deliberately not implemented here: spec
// §1 scopes them as external collaborators referenced only through the
// interfaces they consume.
//
// © 2025 minis authors. MIT License.
package minis

// ResultKind is the closed set of command outcomes (spec §7). Commands
// never panic or return Go errors for expected conditions; a ResultKind is
// always returned alongside any data.
type ResultKind uint8

const (
	// OK indicates success.
	OK ResultKind = iota
	// NIL indicates the key or field was absent, including just-expired.
	NIL
	// TYPE indicates the operation targeted a key of the wrong container
	// type; no state was changed.
	TYPE
	// ARG indicates a malformed argument (e.g. a non-integer INCR target,
	// or an overflow); no state was changed.
	ARG
	// OOM indicates an allocation would exceed a configured capacity
	// budget; any newly-created Entry is disposed before returning.
	OOM
	// UNKNOWN indicates a persistence or I/O failure.
	UNKNOWN
)

func (r ResultKind) String() string {
	switch r {
	case OK:
		return "OK"
	case NIL:
		return "NIL"
	case TYPE:
		return "TYPE"
	case ARG:
		return "ARG"
	case OOM:
		return "OOM"
	case UNKNOWN:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}
