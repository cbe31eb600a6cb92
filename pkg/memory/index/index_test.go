package index_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/memory/index"
)

func unit(t *testing.T, v ...float32) []float32 {
	t.Helper()
	out, err := index.Normalize(v)
	gt.NoError(t, err)
	return out
}

func TestAddReturnsOrdinal(t *testing.T) {
	x := index.New(3)

	for i := 0; i < 3; i++ {
		ordinal, err := x.Add(unit(t, 1, float32(i), 0))
		gt.NoError(t, err)
		gt.Equal(t, ordinal, i)
	}
	gt.Equal(t, x.Len(), 3)
}

func TestAddDimensionMismatch(t *testing.T) {
	x := index.New(3)
	_, err := x.Add([]float32{1, 0})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
	gt.Equal(t, x.Len(), 0)
}

func TestSearchOrdering(t *testing.T) {
	x := index.New(2)
	_, _ = x.Add(unit(t, 0, 1))   // 0: orthogonal
	_, _ = x.Add(unit(t, 1, 0))   // 1: exact
	_, _ = x.Add(unit(t, 1, 1))   // 2: 45 degrees
	_, _ = x.Add(unit(t, -1, 0))  // 3: opposite
	_, _ = x.Add(unit(t, 1, 0.1)) // 4: close

	matches, err := x.Search(unit(t, 1, 0), 10)
	gt.NoError(t, err)
	gt.A(t, matches).Length(5)

	var order []int
	for _, m := range matches {
		order = append(order, m.Ordinal)
	}
	gt.Equal(t, order, []int{1, 4, 2, 0, 3})
	gt.True(t, math.Abs(matches[0].Score-1.0) < 1e-6)
	gt.True(t, math.Abs(matches[4].Score+1.0) < 1e-6)
}

func TestSearchTieBreakByOrdinal(t *testing.T) {
	x := index.New(2)
	v := unit(t, 3, 4)
	_, _ = x.Add(unit(t, 0, 1))
	_, _ = x.Add(v)
	_, _ = x.Add(v)
	_, _ = x.Add(v)

	matches, err := x.Search(v, 3)
	gt.NoError(t, err)
	gt.A(t, matches).Length(3)
	gt.Equal(t, matches[0].Ordinal, 1)
	gt.Equal(t, matches[1].Ordinal, 2)
	gt.Equal(t, matches[2].Ordinal, 3)
	gt.Equal(t, matches[0].Score, matches[1].Score)
}

func TestSearchClampsK(t *testing.T) {
	x := index.New(2)
	_, _ = x.Add(unit(t, 1, 0))

	matches, err := x.Search(unit(t, 1, 0), 100)
	gt.NoError(t, err)
	gt.A(t, matches).Length(1)

	matches, err = x.Search(unit(t, 1, 0), -1)
	gt.NoError(t, err)
	gt.A(t, matches).Length(0)

	empty := index.New(2)
	matches, err = empty.Search(unit(t, 1, 0), 5)
	gt.NoError(t, err)
	gt.A(t, matches).Length(0)
}

func TestSearchQueryDimension(t *testing.T) {
	x := index.New(2)
	_, err := x.Search([]float32{1, 0, 0}, 1)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
}

func TestRebuild(t *testing.T) {
	x := index.New(2)
	_, _ = x.Add(unit(t, 1, 0))
	_, _ = x.Add(unit(t, 0, 1))

	gt.NoError(t, x.Rebuild([][]float32{unit(t, 0, 1)}))
	gt.Equal(t, x.Len(), 1)

	// A bad vector leaves the index untouched
	err := x.Rebuild([][]float32{unit(t, 1, 0), {1, 2, 3}})
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
	gt.Equal(t, x.Len(), 1)
	gt.Equal(t, x.Vectors()[0], unit(t, 0, 1))
}

func TestTruncate(t *testing.T) {
	x := index.New(2)
	_, _ = x.Add(unit(t, 1, 0))
	_, _ = x.Add(unit(t, 0, 1))

	x.Truncate(5)
	gt.Equal(t, x.Len(), 2)
	x.Truncate(1)
	gt.Equal(t, x.Len(), 1)
	x.Truncate(-1)
	gt.Equal(t, x.Len(), 0)
}

func TestNormalize(t *testing.T) {
	v, err := index.Normalize([]float32{3, 4})
	gt.NoError(t, err)
	gt.True(t, math.Abs(float64(v[0])-0.6) < 1e-6)
	gt.True(t, math.Abs(float64(v[1])-0.8) < 1e-6)

	_, err = index.Normalize([]float32{0, 0})
	gt.True(t, errors.Is(err, index.ErrZeroVector))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.index")

	x := index.New(3)
	_, _ = x.Add(unit(t, 1, 2, 3))
	_, _ = x.Add(unit(t, -1, 0, 2))
	gt.NoError(t, x.Save(path))

	loaded, err := index.Load(path, 3)
	gt.NoError(t, err)
	gt.Equal(t, loaded.Len(), 2)
	gt.Equal(t, loaded.Vectors(), x.Vectors())
}

func TestLoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.index")
	x := index.New(3)
	_, _ = x.Add(unit(t, 1, 2, 3))
	gt.NoError(t, x.Save(path))

	_, err := index.Load(path, 4)
	gt.True(t, errors.Is(err, index.ErrDimensionMismatch))
}

func TestLoadMissing(t *testing.T) {
	_, err := index.Load(filepath.Join(t.TempDir(), "none.index"), 3)
	gt.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadCorrupt(t *testing.T) {
	x := index.New(2)
	_, _ = x.Add(unit(t, 1, 0))
	_, _ = x.Add(unit(t, 0, 1))

	var buf bytes.Buffer
	_, err := x.WriteTo(&buf)
	gt.NoError(t, err)
	data := buf.Bytes()

	testCases := map[string][]byte{
		"empty":     {},
		"bad magic": append([]byte("XXXX"), data[4:]...),
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte{}, data...), 0x01),
	}

	for name, blob := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := index.Read(bytes.NewReader(blob), 2)
			gt.True(t, errors.Is(err, index.ErrCorruptIndex))
		})
	}
}
