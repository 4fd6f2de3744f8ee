package storage

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/poi"
)

// utf8BOM lets spreadsheet tools detect the encoding of Chinese text.
const utf8BOM = "\ufeff"

func writeCSV(w io.Writer, res harvest.Result) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(poi.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range res.Records {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.Index, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
