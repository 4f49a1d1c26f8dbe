package eval

import (
	"encoding/binary"

	"github.com/sekas/sekas/pkg/sekaserr"
)

// Intent is the decoded form of a record stored at TXN_INTENT_VERSION
// (spec §3: "Txn intent. Encoded as {start_version, is_delete, value}").
// IsNop additionally distinguishes a PutType=Nop intent, which records the
// pending write but commits nothing at all (spec §4.2/§8: "Nop never writes
// a value on commit").
type Intent struct {
	StartVersion uint64
	IsDelete     bool
	IsNop        bool
	Value        []byte
}

// encodeIntent serializes an Intent to the bytes stored in the engine at
// TXN_INTENT_VERSION: start_version(8) | flags(1) | value.
func encodeIntent(in Intent) []byte {
	buf := make([]byte, 8+1+len(in.Value))
	binary.BigEndian.PutUint64(buf[0:8], in.StartVersion)
	var flags byte
	if in.IsDelete {
		flags |= 1
	}
	if in.IsNop {
		flags |= 2
	}
	buf[8] = flags
	copy(buf[9:], in.Value)
	return buf
}

// decodeIntent parses bytes previously produced by encodeIntent.
// InvalidData per spec §7: "malformed intent encoding... fatal".
func decodeIntent(raw []byte) (Intent, error) {
	if len(raw) < 9 {
		return Intent{}, sekaserr.InvalidData("intent record too short: %d bytes", len(raw))
	}
	in := Intent{
		StartVersion: binary.BigEndian.Uint64(raw[0:8]),
		IsDelete:     raw[8]&1 != 0,
		IsNop:        raw[8]&2 != 0,
	}
	if len(raw) > 9 {
		in.Value = append([]byte(nil), raw[9:]...)
	}
	return in, nil
}
