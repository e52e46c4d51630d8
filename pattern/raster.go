package pattern

import (
	"image"
	"image/color"
	"math"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
	"github.jpl.nasa.gov/bdube/scanlab/util"
)

// Layout places a raster image in the field and maps gray levels to laser
// intensity
type Layout struct {
	// X, Y is the upper left corner of the image
	X, Y int32

	// DotDistance is the pixel pitch, also the distance between lines
	DotDistance float64

	// Offset is the lead-in before the first pixel of a line, covering the
	// laser on delay at marking speed
	Offset int32

	// Black is the intensity of gray level zero; each gray level adds Gain
	Black, Gain float64
}

// DefaultLayout is a 32 bit pitch image with its corner at (-8192, 3200)
// and a 10 bit analog output
func DefaultLayout() Layout {
	return Layout{
		X:           -8192,
		Y:           3200,
		DotDistance: 32,
		Offset:      25, // 100us laser on delay at 250 bits/ms
		Black:       0,
		Gain:        4}
}

func (l Layout) intensity(g uint8) uint16 {
	return uint16(util.Clamp(l.Black+l.Gain*float64(g), 0, math.MaxUint16))
}

// Raster converts img to a jump per line followed by pixel runs.  Adjacent
// pixels of the same gray level share one run.
func Raster(img image.Image, l Layout) []scheduler.Request {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	var out []scheduler.Request
	for line, y := 0, b.Min.Y; y < b.Max.Y; line, y = line+1, y+1 {
		ly := l.Y - int32(math.Round(float64(line)*l.DotDistance))
		out = append(out, scheduler.JumpTo(l.X-l.Offset, ly))

		gray := func(x int) uint8 {
			return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
		}
		px := gray(b.Min.X)
		var count uint32 = 1
		for x := b.Min.X + 1; x < b.Max.X; x++ {
			g := gray(x)
			if g == px {
				count++
				continue
			}
			out = append(out, scheduler.Pixels(count, l.intensity(px)))
			px, count = g, 1
		}
		out = append(out, scheduler.Pixels(count, l.intensity(px)))
	}
	return out
}

// Stairs returns a width x height test image.  The upper half is a gray
// staircase of the given number of steps rising from black, the lower half
// falls from white.  Pixels past the last full step are white.
func Stairs(width, height, steps int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	if steps < 1 {
		return img
	}
	interval := 256 / steps
	run := width / steps
	for y := 0; y < height; y++ {
		for s := 0; s < steps; s++ {
			level := uint8(s * interval)
			if y >= height/2 {
				level = uint8(255 - s*interval)
			}
			for x := s * run; x < (s+1)*run; x++ {
				img.SetGray(x, y, color.Gray{Y: level})
			}
		}
	}
	return img
}
