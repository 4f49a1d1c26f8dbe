package eval

import "bytes"

// ConditionKind is the closed set of condition checks supported for
// conditional (compare-and-set) writes, spec §4.2.
type ConditionKind int

const (
	ExpectExists ConditionKind = iota
	ExpectNotExists
	ExpectValue
	ExpectVersionLt
	ExpectVersionLe
	ExpectVersionEq
	ExpectStartsWith
)

// Condition pairs a kind with whichever operand it needs.
type Condition struct {
	Kind    ConditionKind
	Value   []byte
	Version uint64
}

// PrevState is the resolved state of a key immediately before an
// evaluation, used both to check conditions and to compute typed puts.
// A tombstone or an absent key both report Exists=false for condition
// purposes (spec §4.2 step 3: "treated as 'not exists' for condition
// semantics").
type PrevState struct {
	Exists  bool
	Value   []byte
	Version uint64
}

// Eval reports whether the condition holds against prev.
func (c Condition) Eval(prev PrevState) bool {
	switch c.Kind {
	case ExpectExists:
		return prev.Exists
	case ExpectNotExists:
		return !prev.Exists
	case ExpectValue:
		return prev.Exists && bytes.Equal(prev.Value, c.Value)
	case ExpectVersionLt:
		return prev.Exists && prev.Version < c.Version
	case ExpectVersionLe:
		return prev.Exists && prev.Version <= c.Version
	case ExpectVersionEq:
		return prev.Exists && prev.Version == c.Version
	case ExpectStartsWith:
		return prev.Exists && bytes.HasPrefix(prev.Value, c.Value)
	default:
		return false
	}
}

// evalConditions returns the index of the first failing condition, or -1 if
// all hold.
func evalConditions(conds []Condition, prev PrevState) int {
	for i, c := range conds {
		if !c.Eval(prev) {
			return i
		}
	}
	return -1
}
