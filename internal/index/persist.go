package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"site-assistant/models"
)

// On-disk vector format: fixed header followed by count*dim little-endian
// float32 values in insertion order. Float bits are written verbatim, so a
// load-save cycle returns bit-identical search results.
const (
	vectorMagic   uint32 = 0x56494458 // "VIDX"
	vectorVersion uint32 = 1
)

var metricCodes = map[Metric]uint8{
	MetricCosine: 0,
	MetricDot:    1,
}

// Save writes the index vectors to path.
func (f *Flat) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	header := []any{
		vectorMagic,
		vectorVersion,
		uint32(metricCodes[f.metric]),
		uint32(f.dim),
		uint32(len(f.vectors)),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("write vector header: %w", err)
		}
	}
	for _, v := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write vector data: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush vector file: %w", err)
	}
	return out.Sync()
}

// LoadFlat reads an index written by Save. Structural problems (bad magic,
// truncated data) surface as ErrIndexCorrupt.
func LoadFlat(path string) (*Flat, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	defer in.Close()

	r := bufio.NewReader(in)
	var magic, version, metricCode, dim, count uint32
	for _, field := range []*uint32{&magic, &version, &metricCode, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("read vector header: %w", models.ErrIndexCorrupt)
		}
	}
	if magic != vectorMagic {
		return nil, fmt.Errorf("bad vector file magic %#x: %w", magic, models.ErrIndexCorrupt)
	}
	if version != vectorVersion {
		return nil, fmt.Errorf("unsupported vector file version %d: %w", version, models.ErrIndexCorrupt)
	}

	var metric Metric
	switch metricCode {
	case 0:
		metric = MetricCosine
	case 1:
		metric = MetricDot
	default:
		return nil, fmt.Errorf("unknown metric code %d: %w", metricCode, models.ErrIndexCorrupt)
	}

	f := &Flat{metric: metric, dim: int(dim)}
	f.vectors = make([][]float32, count)
	for i := range f.vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("vector file truncated at %d/%d: %w", i, count, models.ErrIndexCorrupt)
		}
		f.vectors[i] = v
	}
	// Trailing bytes mean the writer and header disagree
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("vector file has trailing data: %w", models.ErrIndexCorrupt)
	}
	if count == 0 {
		f.dim = int(dim)
	}
	return f, nil
}
