package pattern

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/astrogo/fitsio"
)

// ErrNoImage is generated when the primary HDU of a FITS file is not an image
var ErrNoImage = errors.New("pattern: primary HDU is not an image")

// LoadFITS reads the primary image of a FITS file and stretches its range
// to 8 bit gray, minimum to black and maximum to white.  Use Raster to turn
// the result into requests.
func LoadFITS(r io.Reader) (*image.Gray, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("pattern: open FITS: %w", err)
	}
	defer f.Close()
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, ErrNoImage
	}
	src := hdu.Image()
	if src == nil {
		return nil, ErrNoImage
	}
	b := src.Bounds()
	vals := make([]uint16, 0, b.Dx()*b.Dy())
	lo, hi := uint16(0xFFFF), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := color.Gray16Model.Convert(src.At(x, y)).(color.Gray16).Y
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
			vals = append(vals, v)
		}
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if hi > lo {
		span := float64(hi - lo)
		for i, v := range vals {
			out.Pix[i] = uint8(float64(v-lo)/span*255 + 0.5)
		}
	}
	return out, nil
}
