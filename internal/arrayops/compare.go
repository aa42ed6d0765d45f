package arrayops

import (
	"cmp"
	"strings"

	"github.com/roach88/shadow/internal/tree"
)

// kindRank orders values of different kinds: null < bool < number < string
// < map < list.
func kindRank(v tree.Value) int {
	switch tree.Unwrap(v).Kind() {
	case tree.KindNull:
		return 0
	case tree.KindBool:
		return 1
	case tree.KindInt, tree.KindFloat:
		return 2
	case tree.KindString:
		return 3
	case tree.KindMap:
		return 4
	default:
		return 5
	}
}

// Compare is the default Sort ordering. Values of different kinds order by
// kind; numbers compare numerically, strings lexically, booleans false
// first. Containers of the same kind compare equal, so a stable sort keeps
// their relative order.
func Compare(a, b tree.Value) int {
	if r := cmp.Compare(kindRank(a), kindRank(b)); r != 0 {
		return r
	}
	a, b = tree.Unwrap(a), tree.Unwrap(b)

	switch x := a.(type) {
	case tree.Bool:
		y := b.(tree.Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	case tree.String:
		return strings.Compare(string(x), string(b.(tree.String)))
	case tree.Int:
		if y, ok := b.(tree.Int); ok {
			return cmp.Compare(x, y)
		}
		return cmp.Compare(number(a), number(b))
	case tree.Float:
		return cmp.Compare(number(a), number(b))
	}
	return 0
}

func number(v tree.Value) float64 {
	switch n := v.(type) {
	case tree.Int:
		return float64(n)
	case tree.Float:
		return float64(n)
	}
	return 0
}
