package tally

import (
	"fmt"
	"math"
)

// Truncate2 formats x with exactly two decimals, truncating toward zero
// instead of rounding. Rounding up would let displayed totals exceed the
// values actually reported upstream, so 29.995 renders as "29.99" and
// -0.004 as "-0.00".
func Truncate2(x float64) string {
	v := math.Trunc(math.Abs(x)*100) / 100
	if x < 0 {
		return fmt.Sprintf("-%.2f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
