package enhance

import (
	"reflect"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/domkit/pkg/dom"
)

var equalOpts = []cmp.Option{
	cmp.Comparer(func(a, b *dom.Element) bool { return a == b }),
	cmp.Comparer(func(a, b *Element) bool { return a == b }),
}

// Equal reports deep structural equality of a and b. Elements compare by
// identity. Values go-cmp cannot inspect fall back to reflect.DeepEqual.
func Equal(a, b any) (eq bool) {
	defer func() {
		if r := recover(); r != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return cmp.Equal(a, b, equalOpts...)
}

// Clone deep-copies maps and slices of any. Other values are returned as is.
func Clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Clone(item)
		}
		return out
	case Updates:
		out := make(Updates, len(x))
		for k, item := range x {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
