package analysis

import (
	"fmt"

	"github.com/matthewbaird/acdc/internal/form"
)

// FASTModule is the Model key of the top-level FAST input file.
const FASTModule = "FAST"

// ResizeLinTimes sets the length of the LinTimes list to n, truncating or
// padding with nulls. Nothing changes when CalcSteady is true, since steady
// state linearization picks its own times. It reports whether the list was
// resized.
func ResizeLinTimes(in *form.InputSet, n int) bool {
	if steady, _ := in.Value("CalcSteady").AsBool(); steady {
		return false
	}
	if n < 0 {
		n = 0
	}
	cur := in.Value("LinTimes").Items()
	items := make([]form.Value, n)
	copy(items, cur)
	in.Set("LinTimes", form.List(items...))
	return true
}

// UpdateLinTimes applies ResizeLinTimes to the FAST module of d.
func (d *Document) UpdateLinTimes(n int) (bool, error) {
	in, err := d.Inputs(FASTModule)
	if err != nil {
		return false, err
	}
	if !ResizeLinTimes(in, n) {
		return false, nil
	}
	if err := d.SetInputs(FASTModule, in); err != nil {
		return false, fmt.Errorf("analysis: updating LinTimes: %w", err)
	}
	return true, nil
}
