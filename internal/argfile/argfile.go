// Package argfile reads batch argument sets from CSV or JSON-lines files.
package argfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Null is the CSV spelling of SQL NULL, as in postgres COPY text format.
const Null = `\N`

var ErrFormat = errors.New("unknown argument file format")

// Format of an argument file.
type Format string

const (
	CSV       Format = "csv"
	JSONLines Format = "jsonl"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".jsonl", ".ndjson":
		return JSONLines, nil
	}
	return "", fmt.Errorf("%w: %s", ErrFormat, path)
}

// ReadFile reads all argument sets from path.
func ReadFile(path string) ([][]any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, format)
}

// Read reads all argument sets from r.
//
// CSV: one set per record, every field a string, \N for NULL.
// JSON lines: one JSON array per line; a bare null line is a nil set, which
// re-runs the statement with the previous bindings. Integral numbers become
// int64, others float64. Blank lines are skipped.
func Read(r io.Reader, format Format) ([][]any, error) {
	switch format {
	case CSV:
		return readCSV(r)
	case JSONLines:
		return readJSONLines(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrFormat, format)
}

func readCSV(r io.Reader) ([][]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var sets [][]any
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return sets, nil
		}
		if err != nil {
			return nil, err
		}
		set := make([]any, len(rec))
		for i, field := range rec {
			if field == Null {
				continue
			}
			set[i] = field
		}
		sets = append(sets, set)
	}
}

func readJSONLines(r io.Reader) ([][]any, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var sets [][]any
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if bytes.Equal(raw, []byte("null")) {
			sets = append(sets, nil)
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var set []any
		if err := dec.Decode(&set); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if set == nil {
			set = []any{}
		}
		for i, v := range set {
			set[i] = normalize(v)
		}
		sets = append(sets, set)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return v
}
