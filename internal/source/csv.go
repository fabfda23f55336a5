package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vk/assetgrid/internal/table"
)

// ReadCSV decodes a CSV document with a header row into a dataset of string
// columns. Empty cells are missing values; typing is left to the transforms.
func ReadCSV(r io.Reader) (*table.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.New()
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	values := make([][]string, len(names))
	nulls := make([][]bool, len(names))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		for i, v := range rec {
			values[i] = append(values[i], v)
			nulls[i] = append(nulls[i], v == "")
		}
	}

	cols := make([]*table.Column, len(names))
	for i, name := range names {
		cols[i] = table.NewStringColumn(name, values[i], nulls[i])
	}
	return table.New(cols...)
}
