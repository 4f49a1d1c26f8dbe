package eval

import (
	"encoding/binary"

	"github.com/sekas/sekas/pkg/sekaserr"
)

// PutType is the closed set of typed put semantics, spec §4.2 step 5.
type PutType int

const (
	PutNone PutType = iota
	PutNop
	PutAddI64
)

// applyPutOp computes the stored value for a put given its type, the
// previous value (tombstone/absent both read as "no prior bytes"), and the
// request payload. isNop reports whether commit must write nothing at all.
func applyPutOp(putType PutType, prev PrevState, requestValue []byte) (stored []byte, isNop bool, err error) {
	switch putType {
	case PutNone:
		return requestValue, false, nil
	case PutNop:
		return nil, true, nil
	case PutAddI64:
		var prevI64 int64
		if prev.Exists {
			v, ok := decodeI64(prev.Value)
			if !ok {
				return nil, false, sekaserr.InvalidArgument("AddI64: previous value is not an 8-byte big-endian i64")
			}
			prevI64 = v
		}
		delta, ok := decodeI64(requestValue)
		if !ok {
			return nil, false, sekaserr.InvalidArgument("AddI64: delta is not an 8-byte big-endian i64")
		}
		sum := wrappingAddI64(prevI64, delta)
		return encodeI64(sum), false, nil
	default:
		return nil, false, sekaserr.InvalidArgument("unknown put type %d", putType)
	}
}

func decodeI64(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

func encodeI64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// wrappingAddI64 mirrors Rust's i64::wrapping_add: two's-complement overflow
// silently wraps rather than panicking.
func wrappingAddI64(a, b int64) int64 {
	return int64(uint64(a) + uint64(b))
}
