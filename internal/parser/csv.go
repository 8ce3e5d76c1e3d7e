package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
)

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvLoader) Load(path string, opt Options) (analysis.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return ReadDelimited(path, data, opt)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadDelimited parses delimited text into a grid. Input that is not valid
// UTF-8 is decoded as Shift_JIS, the usual encoding of spreadsheet exports
// on Japanese Windows.
func ReadDelimited(name string, data []byte, opt Options) (analysis.Grid, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode shift_jis: %w", err)
		}
		data = decoded
	}

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim

	var g analysis.Grid
	for opt.MaxRows <= 0 || len(g) < opt.MaxRows {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		g = append(g, row)
	}
	return g, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab in the first
// line. A .tsv extension always means tab.
func sniffDelimiter(name string, data []byte) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
