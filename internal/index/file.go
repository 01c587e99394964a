package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// File format: magic, version, dim, count, ids (int64 LE), vectors
// (float32 LE, packed). Written whole, read whole.
var fileMagic = [4]byte{'L', 'D', 'X', '1'}

const fileVersion uint32 = 1

// WriteFile persists the index atomically: the full file is written to a
// temp sibling and renamed over the target, so readers never observe a
// partially written index and a failed write leaves the old file intact.
func (f *Flat) WriteFile(path string) error {
	var buf bytes.Buffer
	buf.Write(fileMagic[:])

	header := []uint32{fileVersion, uint32(f.dim), uint32(len(f.ids))}
	for _, v := range header {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("encode index header: %w", err)
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, f.ids); err != nil {
		return fmt.Errorf("encode index ids: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, f.vectors); err != nil {
		return fmt.Errorf("encode index vectors: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// ReadFile loads a previously persisted index.
func ReadFile(path string) (*Flat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*Flat, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != fileMagic {
		return nil, fmt.Errorf("not an index file")
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("decode index header: %w", err)
		}
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported index file version %d", version)
	}
	if dim == 0 || count > math.MaxUint32/dim {
		return nil, fmt.Errorf("corrupt index header: dim=%d count=%d", dim, count)
	}

	f := &Flat{
		dim:     int(dim),
		ids:     make([]int64, count),
		vectors: make([]float32, int(count)*int(dim)),
	}
	if err := binary.Read(r, binary.LittleEndian, f.ids); err != nil {
		return nil, fmt.Errorf("decode index ids: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, f.vectors); err != nil {
		return nil, fmt.Errorf("decode index vectors: %w", err)
	}
	return f, nil
}
