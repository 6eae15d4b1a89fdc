package app

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/hyperifyio/trialharvest/internal/record"
)

// WriteCSV writes all records to path. Columns are the canonical field set,
// a status column, source coordinates, and dynamic groupN_* columns sized to
// the record with the most study groups. Every row carries every column.
func WriteCSV(path string, recs []record.Record) error {
	maxGroups := 0
	for _, r := range recs {
		if len(r.Groups) > maxGroups {
			maxGroups = len(r.Groups)
		}
	}

	header := append([]string{}, record.Keys...)
	header = append(header, "status", "source_title", "source_url", "page", "listing")
	for i := 1; i <= maxGroups; i++ {
		for _, k := range record.GroupKeys {
			header = append(header, fmt.Sprintf("group%d_%s", i, k))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		row := make([]string, 0, len(header))
		for _, k := range record.Keys {
			row = append(row, r.Fields[k])
		}
		status := "ok"
		if r.Unprocessed {
			status = "unprocessed"
		}
		row = append(row, status, r.Source.Title, r.Source.URL, strconv.Itoa(r.Source.Page), strconv.Itoa(r.Source.Listing))
		for i := 0; i < maxGroups; i++ {
			if i < len(r.Groups) {
				for _, k := range record.GroupKeys {
					row = append(row, r.Groups[i][k])
				}
			} else {
				for range record.GroupKeys {
					row = append(row, "")
				}
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
