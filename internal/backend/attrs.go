package backend

import (
	"fmt"
)

// StringList reads a list-of-strings attribute. The second result is false
// when the key is absent.
func StringList(a Attributes, key string) ([]string, bool, error) {
	v, ok, err := a.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	switch x := v.(type) {
	case []string:
		return append([]string{}, x...), true, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, true, fmt.Errorf("%w: %q element %d is %T", ErrInvalidValue, key, i, e)
			}
			out[i] = s
		}
		return out, true, nil
	}
	return nil, true, fmt.Errorf("%w: %q is %T, want list of strings", ErrInvalidValue, key, v)
}

// CheckValue reports whether v can be stored as an attribute value.
func CheckValue(v any) error {
	switch x := v.(type) {
	case string, bool, int64, float64, []string:
		return nil
	case int:
		return nil
	case []any:
		for _, e := range x {
			if err := CheckValue(e); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %T", ErrInvalidValue, v)
}
