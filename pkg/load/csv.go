package load

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/mchmarny/riskprep/pkg/table"
)

// CSV decodes comma-separated text with a header row.
type CSV struct {
	// Comma overrides the field delimiter; zero means ','.
	Comma rune
}

func (d CSV) Decode(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	if d.Comma != 0 {
		cr.Comma = d.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV content: missing header row")
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV records: %w", err)
	}

	for i, rec := range records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", i+2, len(rec), len(header))
		}
	}

	return table.FromRecords(header, records)
}
