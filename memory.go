package cgc

import (
	"fmt"
	"math"
	"slices"
)

// MemoryUnit is a binary size unit.
type MemoryUnit string

const (
	UnitB  MemoryUnit = "B"
	UnitKB MemoryUnit = "KB"
	UnitMB MemoryUnit = "MB"
	UnitGB MemoryUnit = "GB"
)

var memoryUnits = []MemoryUnit{UnitB, UnitKB, UnitMB, UnitGB}

// MemoryEstimate is the estimated peak memory of a Cocluster run.
type MemoryEstimate struct {
	// Size is the estimate expressed in Unit.
	Size float64
	Unit MemoryUnit

	// Peak is 1 when the row pass allocates the most, 2 when the column
	// pass does.
	Peak int

	// Bytes is the raw estimate.
	Bytes int64
}

// EstimateCoclusteringMemory estimates the peak memory of a single-chunk
// Cocluster run over an nRows × nCols matrix. It counts the data, both
// indicator matrices, and the reconstruction, its logarithm and the distance
// matrix of whichever pass is larger. unit selects the output unit; an empty
// unit picks the largest unit (up to GB) that keeps Size >= 1.
func EstimateCoclusteringMemory(nRows, nCols, kRow, kCol int, unit MemoryUnit) (MemoryEstimate, error) {
	if unit != "" && !slices.Contains(memoryUnits, unit) {
		return MemoryEstimate{}, fmt.Errorf("cgc: unknown memory unit %q", unit)
	}

	z := arrayBytes(nRows, nCols)
	r := arrayBytes(nRows, kRow)
	c := arrayBytes(nCols, kCol)

	// Row pass: C·avgᵗ and its log are nCols × kRow, distances nRows × kRow.
	mem1 := z + r + c + 2*arrayBytes(nCols, kRow) + arrayBytes(nRows, kRow)
	// Column pass: R·avg and its log are nRows × kCol, distances nCols × kCol.
	mem2 := z + r + c + 2*arrayBytes(nRows, kCol) + arrayBytes(nCols, kCol)

	est := MemoryEstimate{Bytes: mem1, Peak: 1}
	if mem2 > mem1 {
		est.Bytes, est.Peak = mem2, 2
	}
	est.Size, est.Unit = humanSize(est.Bytes, unit)
	return est, nil
}

// arrayBytes is the size of a float64 array with the given shape.
func arrayBytes(shape ...int) int64 {
	n := int64(8)
	for _, s := range shape {
		n *= int64(s)
	}
	return n
}

func humanSize(bytes int64, unit MemoryUnit) (float64, MemoryUnit) {
	i := slices.Index(memoryUnits, unit)
	if i < 0 {
		i = 0
		for b := bytes; b >= 1024 && i < len(memoryUnits)-1; b /= 1024 {
			i++
		}
	}
	return float64(bytes) / math.Pow(1024, float64(i)), memoryUnits[i]
}
