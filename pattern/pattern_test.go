package pattern

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

func TestSpiral(t *testing.T) {
	reqs := Spiral(10000, 5, 512)
	require.Len(t, reqs, 5*512)
	assert.Equal(t, scheduler.Jump, reqs[0].Kind)
	for _, r := range reqs[1:] {
		assert.Equal(t, scheduler.Mark, r.Kind)
	}
	// starts one increment above the origin, ends near the full amplitude
	assert.Equal(t, scheduler.JumpTo(0, 3), reqs[0])
	last := reqs[len(reqs)-1]
	r := math.Hypot(float64(last.X), float64(last.Y))
	assert.InDelta(t, 10000, r, 2)
	assert.Nil(t, Spiral(100, 0, 10))
}

func TestLissajous(t *testing.T) {
	reqs := Lissajous(1000, 2, 100, 200)
	require.Len(t, reqs, 200)
	assert.Equal(t, scheduler.JumpTo(0, 0), reqs[0])
	// a quarter period in, x peaks and y is back at zero
	assert.InDelta(t, 1000, float64(reqs[25].X), 1)
	assert.InDelta(t, 0, float64(reqs[25].Y), 1)
}

func TestRasterMergesRuns(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 2))
	copy(img.Pix, []uint8{
		0, 0, 10, 10, 10,
		255, 255, 255, 255, 255,
	})
	l := Layout{X: 100, Y: 50, DotDistance: 8, Offset: 5, Black: 1, Gain: 2}
	got := Raster(img, l)
	want := []scheduler.Request{
		scheduler.JumpTo(95, 50),
		scheduler.Pixels(2, 1),
		scheduler.Pixels(3, 21),
		scheduler.JumpTo(95, 42),
		scheduler.Pixels(5, 511),
	}
	assert.Equal(t, want, got)
}

func TestRasterClampsIntensity(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Pix[0] = 255
	got := Raster(img, Layout{Gain: 1000})
	assert.Equal(t, uint16(math.MaxUint16), got[1].Intensity)
	assert.Nil(t, Raster(image.NewGray(image.Rect(0, 0, 0, 0)), DefaultLayout()))
}

func TestStairs(t *testing.T) {
	img := Stairs(90, 10, 9)
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(8*28), img.GrayAt(85, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(0, 9).Y)
	// 9 steps per line collapse to 9 runs
	reqs := Raster(img, DefaultLayout())
	assert.Len(t, reqs, 10*(1+9))
}

func TestLoadCSV(t *testing.T) {
	src := `kind,x,y,count,intensity
# lead in
jump, -100, 200
mark,300,-400
pixels,0,0,12,900
`
	reqs, err := LoadCSV(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []scheduler.Request{
		scheduler.JumpTo(-100, 200),
		scheduler.MarkTo(300, -400),
		scheduler.Pixels(12, 900),
	}, reqs)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("arc,1,2\n"))
	assert.Error(t, err)
	_, err = LoadCSV(strings.NewReader("pixels,0,0\n"))
	assert.Error(t, err)
	_, err = LoadCSV(strings.NewReader("mark,1\n"))
	assert.Error(t, err)
	_, err = LoadCSV(strings.NewReader("# nothing\n"))
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestWriteCSVReadsBack(t *testing.T) {
	reqs := append(Spiral(500, 1, 16), scheduler.Pixels(3, 7))
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, reqs))
	back, err := LoadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, reqs, back)
}

func writeFITS(t *testing.T, w, h int, data []int16) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	require.NoError(t, err)
	im := fitsio.NewImage(16, []int{w, h})
	require.NoError(t, im.Write(data))
	require.NoError(t, f.Write(im))
	require.NoError(t, im.Close())
	require.NoError(t, f.Close())
	return &buf
}

func TestLoadFITSStretches(t *testing.T) {
	buf := writeFITS(t, 3, 2, []int16{100, 200, 300, 300, 200, 100})
	img, err := LoadFITS(buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.Gray{Y: 0}, img.GrayAt(0, 0))
	assert.Equal(t, color.Gray{Y: 128}, img.GrayAt(1, 0))
	assert.Equal(t, color.Gray{Y: 255}, img.GrayAt(2, 0))
	assert.Equal(t, color.Gray{Y: 255}, img.GrayAt(0, 1))
}

func TestLoadFITSGarbage(t *testing.T) {
	_, err := LoadFITS(strings.NewReader("SIMPLE?"))
	assert.Error(t, err)
}
