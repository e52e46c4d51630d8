package pattern

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// ErrEmptyPath is generated when a CSV file holds no requests
var ErrEmptyPath = errors.New("pattern: no requests in file")

// LoadCSV reads one request per row:
//
//	kind,x,y[,count,intensity]
//
// kind is jump, mark or pixels.  Pixel rows ignore x and y.  Lines starting
// with # and a header row beginning with "kind" are skipped.
func LoadCSV(r io.Reader) ([]scheduler.Request, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var out []scheduler.Request
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "kind") {
			continue
		}
		req, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("pattern: row %d: %w", row, err)
		}
		out = append(out, req)
	}
	if len(out) == 0 {
		return nil, ErrEmptyPath
	}
	return out, nil
}

func parseRow(rec []string) (scheduler.Request, error) {
	var req scheduler.Request
	if len(rec) < 3 {
		return req, fmt.Errorf("expected at least 3 fields, got %d", len(rec))
	}
	kind, err := scheduler.ParseKind(rec[0])
	if err != nil {
		return req, err
	}
	req.Kind = kind
	if kind == scheduler.PixelRun {
		if len(rec) < 5 {
			return req, errors.New("pixel rows need count and intensity")
		}
		count, err := strconv.ParseUint(strings.TrimSpace(rec[3]), 10, 32)
		if err != nil {
			return req, err
		}
		intensity, err := strconv.ParseUint(strings.TrimSpace(rec[4]), 10, 16)
		if err != nil {
			return req, err
		}
		req.Count, req.Intensity = uint32(count), uint16(intensity)
		return req, nil
	}
	x, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 32)
	if err != nil {
		return req, err
	}
	y, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 32)
	if err != nil {
		return req, err
	}
	req.X, req.Y = int32(x), int32(y)
	return req, nil
}

// WriteCSV writes reqs in the format LoadCSV reads, with a header row
func WriteCSV(w io.Writer, reqs []scheduler.Request) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "x", "y", "count", "intensity"}); err != nil {
		return err
	}
	for _, r := range reqs {
		rec := []string{
			r.Kind.String(),
			strconv.Itoa(int(r.X)),
			strconv.Itoa(int(r.Y)),
			strconv.FormatUint(uint64(r.Count), 10),
			strconv.FormatUint(uint64(r.Intensity), 10)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
