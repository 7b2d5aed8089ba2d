package corpus_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/insights/core/corpus"
	"github.com/trezcool/insights/core/ingest"
	"github.com/trezcool/insights/tests"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestScanner_Scan(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	writeFile(t, root, "3월반/A학생/file.csv", []byte("이름,날짜,제목,점수\n김민수,2024-03-01,[과제] 미적분1 1단원(복습),95\n"))
	writeFile(t, root, "3월반/A학생/~$file.csv", []byte("이름,점수\n잠금,1\n"))
	writeFile(t, root, ".hidden/x.csv", []byte("이름,점수\n숨김,1\n"))
	writeFile(t, root, "notes.txt", []byte("이름,점수\n메모,1\n"))
	writeFile(t, root, "broken.xlsx", []byte("not a workbook"))
	writeFile(t, root, "empty.csv", nil)
	writeFile(t, root, "top.csv", []byte("이름,점수\n이영희,80\n,\n"))
	writeFile(t, root, "_nameless.csv", []byte("이름,점수\n,70\n"))
	writeFile(t, root, "고2/심화.xlsx", workbook(t,
		[]interface{}{"2024 고2 심화반 기록"},
		[]interface{}{"성명", "일자", "단원", "환산점수", "복습시간"},
		[]interface{}{"박지성", 45352, "확통 1강", 88.5, 12},
	))

	scanner := corpus.NewScanner(root, ingest.NewNormalizer(nil), testutil.NewLogger("SCAN : "))
	snap, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, snap.FilesScanned)
	assert.Equal(t, 1, snap.FilesSkipped)
	assert.Equal(t, 1, snap.RecordsDropped)
	require.Len(t, snap.Records, 3)

	byName := make(map[string]ingest.Record)
	var names []string
	for _, rec := range snap.Records {
		byName[rec.Name] = rec
		names = append(names, rec.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"김민수", "박지성", "이영희"}, names)

	kim := byName["김민수"]
	assert.Equal(t, "A학생", kim.ClassName)
	assert.Equal(t, "3월반", kim.Folder)
	assert.Equal(t, "미적분1 1단원", kim.Title)
	assert.Equal(t, "미적분1", kim.Course)
	assert.Equal(t, 95.0, kim.Score)
	assert.Equal(t, "2024-03-01", kim.DateStr)
	assert.Equal(t, "3월반/A학생", kim.FolderPath)
	assert.Equal(t, "file.csv", kim.SourceFile)

	park := byName["박지성"]
	assert.Equal(t, "고2", park.ClassName)
	assert.Equal(t, "고2", park.Folder)
	assert.Equal(t, "2024-03-01", park.DateStr)
	assert.Equal(t, 88.5, park.Score)
	assert.Equal(t, "확률과통계", park.Course)
	assert.Equal(t, "12분", park.ReviewTime)

	lee := byName["이영희"]
	assert.Equal(t, "공통반", lee.ClassName)
	assert.Equal(t, "기타", lee.Folder)
}

func TestScanner_Scan_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing", "data")
	scanner := corpus.NewScanner(root, nil, testutil.NewLogger("SCAN : "))

	snap, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.DirExists(t, root)
}

func TestScanner_Scan_Canceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.csv", []byte("이름,점수\n김민수,1\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := corpus.NewScanner(root, nil, testutil.NewLogger("SCAN : ")).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
