package codec

// Tag keys used by the wire protocol (§4.1). Every type the underlying
// MessagePack format cannot represent directly is wrapped as
// map[string]any{"t": <tag>, "o": <payload>, ["d": <dtype>]}.
const (
	tagKey     = "t"
	payloadKey = "o"
	dtypeKey   = "d"

	tagList    = "l"
	tagSet     = "s"
	tagArray   = "a"
	tagComplex = "c"
	tagDtype   = "d"
	tagSlice   = "i"
	tagScalar  = "n"
)

// List is an explicitly ordered heterogeneous sequence, wire-tagged "l".
// Plain Go slices already round-trip as native MessagePack arrays; List
// exists for callers that want the tag-protocol's list semantics made
// explicit (e.g. re-encoding a value decoded from a "l"-tagged payload).
type List []any

// Set is an unordered collection, wire-tagged "s". Go has no built-in set
// type, so every set value goes through this wrapper both ways.
type Set struct {
	items []any
}

// NewSet builds a Set from items, in no particular order.
func NewSet(items ...any) Set {
	s := Set{items: make([]any, len(items))}
	copy(s.items, items)
	return s
}

// Items returns a copy of the set's elements.
func (s Set) Items() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of elements.
func (s Set) Len() int { return len(s.items) }

// Equal reports whether s and other contain the same elements, ignoring
// order (tests compare sets this way per §4.1). Elements are compared as a
// multiset: a duplicate entry counts, so {1, 1} does not equal {1}.
func (s Set) Equal(other Set) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	counts := map[any]int{}
	for _, v := range s.items {
		counts[normalizeForSet(v)]++
	}
	for _, v := range other.items {
		k := normalizeForSet(v)
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

// normalizeForSet coerces numeric kinds onto a common representation so
// 1 (int) and int64(1) compare equal as set members.
func normalizeForSet(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return v
	}
}

// SliceRange is a Python-style slice (start, stop, step), wire-tagged "i".
// Any component may be nil, meaning an open end (Python's None).
type SliceRange struct {
	Start *int64
	Stop  *int64
	Step  *int64
}

// NDArray is an n-dimensional numeric array, wire-tagged "a". Data holds
// the array contents as nested []any (one level of nesting per dimension);
// Dtype names the element type (e.g. "float64", "int32").
type NDArray struct {
	Dtype string
	Data  any
}

// Dtype is a bare dtype descriptor value, wire-tagged "d".
type Dtype string

// Scalar is a numeric scalar carrying an explicit dtype, wire-tagged "n",
// used for numeric values whose width/signedness must survive the round
// trip (e.g. a numpy int32 as opposed to a plain Go int64).
type Scalar struct {
	Value any // int64, uint64, or float64
	Dtype string
}
