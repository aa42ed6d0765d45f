package tree

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// ParseCUE evaluates CUE source and converts the resulting concrete value
// into a tree. Definitions and hidden fields are not part of the data and
// are dropped; any non-concrete field is an error.
func ParseCUE(data []byte, filename string) (Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse CUE: %s", errors.Details(err, nil))
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("parse CUE: %s", errors.Details(err, nil))
	}

	var raw any
	if err := v.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode CUE: %w", err)
	}
	return FromAny(raw)
}
