// Package products maps Art-Net OEM codes to product descriptors.
package products

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var bundled []byte

// Descriptor names a product.
type Descriptor struct {
	Code         uint16 `yaml:"code" json:"code"`
	Manufacturer string `yaml:"manufacturer" json:"manufacturer"`
	Product      string `yaml:"product" json:"product"`
}

// Unknown is returned for codes missing from the table.
var Unknown = Descriptor{Manufacturer: "unknown", Product: "unknown"}

func (d Descriptor) IsUnknown() bool {
	return d.Manufacturer == Unknown.Manufacturer && d.Product == Unknown.Product
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (0x%04x)", d.Manufacturer, d.Product, d.Code)
}

// Table is a read-only lookup.
type Table struct {
	byCode map[uint16]Descriptor
}

// Parse reads a YAML list of descriptors.
func Parse(r io.Reader) (*Table, error) {
	var list []Descriptor
	if err := yaml.NewDecoder(r).Decode(&list); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse product table: %w", err)
	}
	t := &Table{byCode: make(map[uint16]Descriptor, len(list))}
	for _, d := range list {
		if _, dup := t.byCode[d.Code]; dup {
			return nil, fmt.Errorf("duplicate product code 0x%04x", d.Code)
		}
		t.byCode[d.Code] = d
	}
	return t, nil
}

// Load reads a product table file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Lookup never fails: unknown codes give Unknown with the code filled in.
func (t *Table) Lookup(code uint16) Descriptor {
	if d, ok := t.byCode[code]; ok {
		return d
	}
	d := Unknown
	d.Code = code
	return d
}

// Len returns the number of known products.
func (t *Table) Len() int { return len(t.byCode) }

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the bundled table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(bytes.NewReader(bundled))
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// Lookup queries the bundled table.
func Lookup(code uint16) Descriptor {
	return Default().Lookup(code)
}
