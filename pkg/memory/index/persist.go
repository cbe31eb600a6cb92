package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/utils/atomicfile"
)

// File layout, little endian:
//
//	magic   [4]byte "QMVX"
//	version uint32
//	dim     uint32
//	count   uint64
//	data    count*dim float32, ordinal order
const (
	formatVersion uint32 = 1
	headerSize           = 4 + 4 + 4 + 8
)

var magic = [4]byte{'Q', 'M', 'V', 'X'}

// WriteTo serializes the full vector table
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)

	header := make([]byte, headerSize)
	copy(header[0:4], magic[:])
	binary.LittleEndian.PutUint32(header[4:8], formatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(x.dim))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(x.vectors)))
	if _, err := bw.Write(header); err != nil {
		return 0, goerr.Wrap(err, "failed to write index header")
	}

	written := int64(headerSize)
	buf := make([]byte, 4)
	for _, vec := range x.vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := bw.Write(buf); err != nil {
				return written, goerr.Wrap(err, "failed to write index data")
			}
			written += 4
		}
	}

	if err := bw.Flush(); err != nil {
		return written, goerr.Wrap(err, "failed to flush index data")
	}
	return written, nil
}

// Read decodes a vector table. The stored dimension must equal dim.
func Read(r io.Reader, dim int) (*Index, error) {
	br := bufio.NewReader(r)

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, goerr.Wrap(ErrCorruptIndex, "failed to read index header", goerr.V("cause", err.Error()))
	}
	if !bytes.Equal(header[0:4], magic[:]) {
		return nil, goerr.Wrap(ErrCorruptIndex, "bad magic")
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != formatVersion {
		return nil, goerr.Wrap(ErrCorruptIndex, "unsupported index format version", goerr.V("version", v))
	}

	storedDim := int(binary.LittleEndian.Uint32(header[8:12]))
	if storedDim != dim {
		return nil, goerr.Wrap(ErrDimensionMismatch, "persisted index dimension differs from configured dimension",
			goerr.V("configured", dim), goerr.V("persisted", storedDim))
	}
	count := binary.LittleEndian.Uint64(header[12:20])

	x := New(dim)
	buf := make([]byte, 4*dim)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, goerr.Wrap(ErrCorruptIndex, "truncated index data",
				goerr.V("count", count), goerr.V("read", i), goerr.V("cause", err.Error()))
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		x.vectors = append(x.vectors, vec)
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, goerr.Wrap(ErrCorruptIndex, "trailing data after index table")
	}

	return x, nil
}

// Save atomically writes the index to path
func (x *Index) Save(path string) error {
	var buf bytes.Buffer
	if _, err := x.WriteTo(&buf); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return goerr.Wrap(err, "failed to save index", goerr.V("path", path))
	}
	return nil
}

// Load reads an index file. A missing file returns os.ErrNotExist in the chain.
func Load(path string, dim int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open index file", goerr.V("path", path))
	}
	defer f.Close()

	x, err := Read(f, dim)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load index", goerr.V("path", path))
	}
	return x, nil
}
