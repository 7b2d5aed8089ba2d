package ingest

import (
	"strings"
)

// headerScanRows is the number of leading rows searched for the header.
const headerScanRows = 10

// LocateHeader returns the index and content of the header row: the first of the leading rows whose serialized
// content contains any of the keywords. Row 0 is used when none does.
func LocateHeader(g Grid, keywords []string) (int, HeaderSet) {
	if len(g) == 0 {
		return 0, HeaderSet{}
	}

	idx := 0
	for i := 0; i < len(g) && i < headerScanRows; i++ {
		if rowMatches(g[i], keywords) {
			idx = i
			break
		}
	}

	header := make(HeaderSet, len(g[idx]))
	for i, cell := range g[idx] {
		header[i] = strings.TrimSpace(cell)
	}
	return idx, header
}

func rowMatches(row []string, keywords []string) bool {
	serialized := strings.Join(row, ",")
	for _, kw := range keywords {
		if kw != "" && strings.Contains(serialized, kw) {
			return true
		}
	}
	return false
}

// RowsToRecords maps the rows under the header to RawRecords. Empty header cells are skipped, and so are rows
// without any non-blank value.
func RowsToRecords(g Grid, headerIdx int, header HeaderSet, sourceFile, folderPath string) []RawRecord {
	if headerIdx+1 >= len(g) {
		return nil
	}

	records := make([]RawRecord, 0, len(g)-headerIdx-1)
	for _, row := range g[headerIdx+1:] {
		rec := RawRecord{
			Fields:     make(map[string]string, len(header)),
			Order:      make([]string, 0, len(header)),
			SourceFile: sourceFile,
			FolderPath: folderPath,
		}

		blank := true
		for i, h := range header {
			if h == "" {
				continue
			}
			var val string
			if i < len(row) {
				val = strings.TrimSpace(row[i])
			}
			if val != "" {
				blank = false
			}
			if _, dup := rec.Fields[h]; dup {
				// the last column wins, keeping the first position
				rec.Fields[h] = val
				continue
			}
			rec.Fields[h] = val
			rec.Order = append(rec.Order, h)
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records
}
