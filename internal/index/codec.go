package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bull/rag-search/internal/domain"
)

const (
	// IndexFile is the binary similarity-search structure inside persist_dir.
	IndexFile = "index.bin"
	// MetadataFile is the ordinal-aligned metadata sequence inside persist_dir.
	MetadataFile = "metadata.store"

	formatVersion uint16 = 1
)

var fileMagic = [4]byte{'R', 'S', 'I', 'X'}

// header is the versioned preamble of index.bin. Carrying the embedding
// configuration lets a mismatched reload fail with ErrConfigMismatch instead
// of silently wrong similarity results.
type header struct {
	Metric    domain.Metric
	Dimension int
	Count     int
	Model     string
}

var metricCodes = map[domain.Metric]uint8{
	domain.MetricCosine: 0,
	domain.MetricL2:     1,
}

func metricFromCode(code uint8) (domain.Metric, bool) {
	for m, c := range metricCodes {
		if c == code {
			return m, true
		}
	}
	return "", false
}

// writeIndexFile writes the header and vectors to path atomically: the data
// goes to a temp file in the same directory which is renamed over path, so a
// failed write never leaves a torn structure behind.
func writeIndexFile(path string, h header, vectors [][]float32) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if _, err = w.Write(fileMagic[:]); err != nil {
		return err
	}
	for _, v := range []any{
		formatVersion,
		metricCodes[h.Metric],
		uint32(h.Dimension),
		uint32(h.Count),
		uint16(len(h.Model)),
	} {
		if err = binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err = w.WriteString(h.Model); err != nil {
		return err
	}
	for _, vec := range vectors {
		if err = binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readIndexFile reads and validates the persisted structure.
func readIndexFile(path string) (header, [][]float32, error) {
	var h header

	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return h, nil, fmt.Errorf("%w: short header: %v", ErrIntegrity, err)
	}
	if magic != fileMagic {
		return h, nil, fmt.Errorf("%w: bad magic %q", ErrIntegrity, magic[:])
	}

	var (
		version    uint16
		metricCode uint8
		dim, count uint32
		modelLen   uint16
	)
	for _, v := range []any{&version, &metricCode, &dim, &count, &modelLen} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return h, nil, fmt.Errorf("%w: short header: %v", ErrIntegrity, err)
		}
	}
	if version != formatVersion {
		return h, nil, fmt.Errorf("%w: unsupported format version %d", ErrConfigMismatch, version)
	}
	metric, ok := metricFromCode(metricCode)
	if !ok {
		return h, nil, fmt.Errorf("%w: unknown metric code %d", ErrIntegrity, metricCode)
	}

	model := make([]byte, modelLen)
	if _, err := io.ReadFull(r, model); err != nil {
		return h, nil, fmt.Errorf("%w: short model name: %v", ErrIntegrity, err)
	}

	h = header{
		Metric:    metric,
		Dimension: int(dim),
		Count:     int(count),
		Model:     string(model),
	}

	vectors := make([][]float32, h.Count)
	for i := range vectors {
		vec := make([]float32, h.Dimension)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return h, nil, fmt.Errorf("%w: vector %d truncated: %v", ErrIntegrity, i, err)
		}
		vectors[i] = vec
	}
	return h, vectors, nil
}

// writeMetadataFile writes one JSON record per line, ordinal-aligned with
// the vectors, through the same temp-and-rename scheme as the structure.
func writeMetadataFile(path string, records []domain.Record) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i := range records {
		if err = enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readMetadataFile(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []domain.Record
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var rec domain.Record
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: metadata record %d: %v", ErrIntegrity, len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}
