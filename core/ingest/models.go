// Package ingest turns spreadsheet and CSV files of assignment records into normalized records.
//
// The pipeline is: DecodeText (CSV only) -> ParseGrid -> LocateHeader -> RowsToRecords -> Normalizer.Normalize.
package ingest

import "time"

type (
	// Grid is a sheet as rows of cell texts. Rows may have different lengths.
	Grid [][]string

	// HeaderSet is the trimmed header row of a sheet.
	HeaderSet []string

	// RawRecord is one data row keyed by header, before normalization.
	RawRecord struct {
		Fields     map[string]string
		Order      []string // header order of Fields keys
		SourceFile string   // base name of the file
		FolderPath string   // directory of the file, relative to the ingestion root
	}

	// DateInfo is the result of the date parser chain.
	DateInfo struct {
		Time   time.Time
		Str    string // YYYY-MM-DD when Valid, the raw text otherwise
		Valid  bool
		Parser string // name of the parser that succeeded
	}

	// Record is a normalized assignment record. Records are never mutated once built.
	Record struct {
		Name       string            `json:"name"`
		Folder     string            `json:"folder"`
		ClassName  string            `json:"className"`
		Title      string            `json:"title"`
		Course     string            `json:"course"`
		Score      float64           `json:"score"`
		Status     string            `json:"status"`
		SolveTime  string            `json:"solveTime"`
		ReviewTime string            `json:"reviewTime"`
		Date       time.Time         `json:"dateObj"`
		DateStr    string            `json:"dateStr"`
		DateValid  bool              `json:"dateValid"`
		Raw        map[string]string `json:"rawItem"`
		SourceFile string            `json:"sourceFile"`
		FolderPath string            `json:"folderPath"`
	}
)

// Get returns the value of the first header, in column order, for which match is true.
func (r RawRecord) Get(match func(key string) bool) (string, bool) {
	for _, k := range r.Order {
		if match(k) {
			return r.Fields[k], true
		}
	}
	return "", false
}

// Values returns the row values in header order.
func (r RawRecord) Values() []string {
	vals := make([]string, 0, len(r.Order))
	for _, k := range r.Order {
		vals = append(vals, r.Fields[k])
	}
	return vals
}
