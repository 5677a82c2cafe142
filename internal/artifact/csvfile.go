package artifact

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// ReadRecords decodes a headed CSV file into typed records using csv struct
// tags. A missing or empty file yields no records and no error.
func ReadRecords[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out []T
	if err := csvutil.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "artifact: decode %s", path)
	}
	return out, nil
}

// WriteRecords replaces path with the given records. The header is written
// even when records is empty.
func WriteRecords[T any](path string, records []T) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	if len(records) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrapf(err, "artifact: encode header for %s", path)
		}
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "artifact: encode %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "artifact: flush %s", path)
	}
	return writeAtomic(path, buf.Bytes())
}

// AppendRecords appends records to path, writing the header only when the
// file is new or empty.
func AppendRecords[T any](path string, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "artifact: mkdir for %s", path)
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "artifact: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	info, err := fh.Stat()
	if err != nil {
		return eris.Wrapf(err, "artifact: stat %s", path)
	}

	w := csv.NewWriter(fh)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = info.Size() == 0
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "artifact: encode %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "artifact: flush %s", path)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: mkdir for %s", path)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*.csv")
	if err != nil {
		return eris.Wrapf(err, "artifact: create temp for %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "artifact: close temp for %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "artifact: rename to %s", path)
	}
	return nil
}
