/*Package pattern produces request streams for common figures: spirals and
Lissajous curves drawn as vectors, raster images drawn as pixel runs, and
paths loaded from CSV or FITS files.

Coordinates are in card bits.  Every figure starts with a jump so the laser
is off while the scanner travels to the first point.
*/
package pattern

import (
	"math"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// Spiral returns an Archimedean spiral of the given number of turns growing
// to amplitude, with period vectors per turn
func Spiral(amplitude float64, turns, period int) []scheduler.Request {
	if turns < 1 || period < 1 {
		return nil
	}
	omega := 2 * math.Pi / float64(period)
	increment := amplitude / float64(turns) / float64(period)
	n := turns * period
	out := make([]scheduler.Request, 0, n)
	span := increment
	for i := 0; i < n; i++ {
		x := int32(span * math.Sin(omega*float64(i)))
		y := int32(span * math.Cos(omega*float64(i)))
		if i == 0 {
			out = append(out, scheduler.JumpTo(x, y))
		} else {
			out = append(out, scheduler.MarkTo(x, y))
		}
		span += increment
	}
	return out
}

// Lissajous returns n vectors of the figure x = A sin(wt), y = A sin(ratio wt)
// with period vectors per cycle of x
func Lissajous(amplitude, ratio float64, period, n int) []scheduler.Request {
	if period < 1 || n < 1 {
		return nil
	}
	omega := 2 * math.Pi / float64(period)
	out := make([]scheduler.Request, 0, n)
	for i := 0; i < n; i++ {
		x := int32(amplitude * math.Sin(omega*float64(i)))
		y := int32(amplitude * math.Sin(ratio*omega*float64(i)))
		if i == 0 {
			out = append(out, scheduler.JumpTo(x, y))
		} else {
			out = append(out, scheduler.MarkTo(x, y))
		}
	}
	return out
}
