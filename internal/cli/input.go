package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/mat"

	"github.com/TrevorS/cgc"
)

func readMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMatrix(f, path)
}

// parseMatrix reads one matrix row per CSV record. All records must have the
// same number of fields.
func parseMatrix(r io.Reader, name string) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: no rows", name)
	}

	cols := len(records[0])
	data := make([]float64, 0, len(records)*cols)
	for i, rec := range records {
		for j, field := range rec {
			v, err := cast.ToFloat64E(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("read %s: row %d column %d: %w", name, i+1, j+1, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(records), cols, data), nil
}

// readCube stacks one matrix per file into a cube, one band per file.
func readCube(paths []string) (*cgc.Cube, error) {
	var (
		data []float64
		m, n int
	)
	for b, path := range paths {
		band, err := readMatrix(path)
		if err != nil {
			return nil, err
		}
		r, c := band.Dims()
		if b == 0 {
			m, n = r, c
			data = make([]float64, 0, len(paths)*m*n)
		} else if r != m || c != n {
			return nil, fmt.Errorf("read %s: band is %d×%d, want %d×%d", path, r, c, m, n)
		}
		data = append(data, band.RawMatrix().Data...)
	}
	return cgc.NewCube(len(paths), m, n, data), nil
}
