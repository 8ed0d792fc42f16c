package cgc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Cube is a dense bands × rows × cols array stored band-major: each band is a
// contiguous row-major rows × cols matrix.
type Cube struct {
	bands, rows, cols int
	data              []float64
}

// NewCube creates a Cube backed by data, which must have length
// bands*rows*cols. If data is nil a zeroed backing slice is allocated.
// data is not copied.
func NewCube(bands, rows, cols int, data []float64) *Cube {
	if bands < 0 || rows < 0 || cols < 0 {
		panic(fmt.Sprintf("cgc: negative cube dimension %d×%d×%d", bands, rows, cols))
	}
	n := bands * rows * cols
	if data == nil {
		data = make([]float64, n)
	}
	if len(data) != n {
		panic(fmt.Sprintf("cgc: cube data length %d does not match %d×%d×%d", len(data), bands, rows, cols))
	}
	return &Cube{bands: bands, rows: rows, cols: cols, data: data}
}

// Dims returns the number of bands, rows and columns.
func (c *Cube) Dims() (bands, rows, cols int) { return c.bands, c.rows, c.cols }

func (c *Cube) At(b, r, col int) float64 { return c.data[c.offset(b, r, col)] }

func (c *Cube) Set(b, r, col int, v float64) { c.data[c.offset(b, r, col)] = v }

// Band returns band b as a rows × cols matrix sharing the cube's storage.
func (c *Cube) Band(b int) *mat.Dense {
	sz := c.rows * c.cols
	return mat.NewDense(c.rows, c.cols, c.data[b*sz:(b+1)*sz:(b+1)*sz])
}

// RawData returns the backing slice.
func (c *Cube) RawData() []float64 { return c.data }

func (c *Cube) offset(b, r, col int) int {
	if b < 0 || b >= c.bands || r < 0 || r >= c.rows || col < 0 || col >= c.cols {
		panic(fmt.Sprintf("cgc: cube index (%d, %d, %d) out of range %d×%d×%d", b, r, col, c.bands, c.rows, c.cols))
	}
	return (b*c.rows+r)*c.cols + col
}

// contract sums the cube against weights on two axes, leaving axis keep
// (0 = band, 1 = row, 2 = column) free. The weights are given in axis order
// with the kept axis omitted.
func (c *Cube) contract(keep int, w1, w2 []float64) []float64 {
	var out []float64
	switch keep {
	case 0:
		out = make([]float64, c.bands)
	case 1:
		out = make([]float64, c.rows)
	default:
		out = make([]float64, c.cols)
	}
	for b := 0; b < c.bands; b++ {
		for r := 0; r < c.rows; r++ {
			row := c.data[(b*c.rows+r)*c.cols : (b*c.rows+r+1)*c.cols]
			for col, v := range row {
				switch keep {
				case 0:
					out[b] += w1[r] * w2[col] * v
				case 1:
					out[r] += w1[b] * w2[col] * v
				default:
					out[col] += w1[b] * w2[r] * v
				}
			}
		}
	}
	return out
}
