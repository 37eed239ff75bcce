package codec

import (
	"fmt"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

// Target describes an existing column that new rows are written into.
type Target struct {
	DType       dtype.DataType
	Categorical bool
	Categories  []string
}

// Conform adapts col to an existing column so that Encode with
// Coerce set to the target's type produces compatible bytes.
//
// For a categorical target, codes are remapped onto the stored categories
// and string values are categorized; labels not yet stored are appended.
// The returned list is the target's category list after the write.
// For a byte-string target, categorical values are expanded to labels.
func Conform(col frame.Column, t Target) (frame.Column, []string, error) {
	if !t.Categorical {
		if c, ok := col.(frame.Categorical); ok && t.DType.Kind == dtype.KindBytes {
			return frame.String(c.Labels()), nil, nil
		}
		return col, nil, nil
	}

	var labels []string
	var valid []bool
	switch c := col.(type) {
	case frame.Categorical:
		labels = c.Labels()
		valid = make([]bool, len(c.Codes))
		for i, code := range c.Codes {
			valid[i] = code >= 0 && int(code) < len(c.Categories)
		}
	case frame.String:
		labels = c
	default:
		return nil, nil, fmt.Errorf("%w: cannot write %s into a categorical column", ErrUnsupportedType, col.Kind())
	}

	cats := append([]string{}, t.Categories...)
	index := make(map[string]int32, len(cats))
	for i, l := range cats {
		index[l] = int32(i)
	}

	codes := make([]int32, len(labels))
	for i, l := range labels {
		if valid != nil && !valid[i] {
			codes[i] = Unset
			continue
		}
		code, ok := index[l]
		if !ok {
			code = int32(len(cats))
			cats = append(cats, l)
			index[l] = code
		}
		codes[i] = code
	}
	return frame.Categorical{Codes: codes, Categories: cats, Ordered: true}, cats, nil
}
