package parser

import (
	"errors"
	"fmt"
	"os"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
)

// Options controls how a file is turned into a grid.
type Options struct {
	// SheetName selects a workbook sheet by name.
	SheetName string
	// SheetIndex selects a workbook sheet by 1-based position when SheetName is empty.
	SheetIndex int
	// Delimiter for delimited text. If 0, sniffed from the first line.
	Delimiter rune
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
}

// Loader reads one tabular file format into a raw grid.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string, opt Options) (analysis.Grid, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a format has no registered loader.
var ErrUnsupported = errors.New("unsupported file format")

// LoadFile selects a loader based on filename and returns the raw grid.
func LoadFile(path string, opt Options) (analysis.Grid, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Supported reports whether some loader accepts filename.
func Supported(filename string) bool {
	for _, l := range registry {
		if l.CanLoad(filename) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}
