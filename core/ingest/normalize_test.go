package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	n := NewNormalizer(nil)
	n.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return n
}

func rawOf(file, folder string, header HeaderSet, row ...string) RawRecord {
	recs := RowsToRecords(Grid{header, row}, 0, header, file, folder)
	if len(recs) == 0 {
		return RawRecord{Fields: map[string]string{}, SourceFile: file, FolderPath: folder}
	}
	return recs[0]
}

func TestNormalize_FullRow(t *testing.T) {
	g, err := ParseGrid("file.csv", []byte("이름,날짜,제목,점수\n김민수,2024-03-01,[과제] 미적분1 1단원(복습),95\n"))
	require.NoError(t, err)
	idx, header := LocateHeader(g, DefaultRules().Header)
	raws := RowsToRecords(g, idx, header, "file.csv", "3월반/A학생")
	require.Len(t, raws, 1)

	rec, err := newTestNormalizer().Normalize(raws[0])
	require.NoError(t, err)

	assert.Equal(t, "김민수", rec.Name)
	assert.Equal(t, "A학생", rec.ClassName)
	assert.Equal(t, "3월반", rec.Folder)
	assert.Equal(t, "미적분1 1단원", rec.Title)
	assert.Equal(t, "미적분1", rec.Course)
	assert.Equal(t, 95.0, rec.Score)
	assert.Equal(t, "2024-03-01", rec.DateStr)
	assert.True(t, rec.DateValid)
	assert.Equal(t, "-", rec.Status)
	assert.Equal(t, "-", rec.SolveTime)
	assert.Equal(t, "-", rec.ReviewTime)
	assert.Equal(t, "file.csv", rec.SourceFile)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer()
	raw := rawOf("b.csv", "", HeaderSet{"성명", "일자", "풀이시간", "상태"}, "이영희", "미정", "90분", "완료")

	first, err := n.Normalize(raw)
	require.NoError(t, err)
	second, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_Fields(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name   string
		raw    RawRecord
		verify func(t *testing.T, rec Record)
	}{
		{
			name: "percentage wins over score",
			raw:  rawOf("a.csv", "", HeaderSet{"이름", "점수", "환산점수"}, "김민수", "19", "95%"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, 95.0, rec.Score)
			},
		},
		{
			name: "zero percentage falls back to score",
			raw:  rawOf("a.csv", "", HeaderSet{"이름", "점수", "백분율"}, "김민수", "19점", "0"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, 19.0, rec.Score)
			},
		},
		{
			name: "unparseable score",
			raw:  rawOf("a.csv", "", HeaderSet{"이름", "점수"}, "김민수", "1.2.3"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, 0.0, rec.Score)
			},
		},
		{
			name: "name from file name",
			raw:  rawOf("박지성_수학.xlsx", "", HeaderSet{"점수"}, "70"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, "박지성", rec.Name)
			},
		},
		{
			name: "name from file name without separator",
			raw:  rawOf("박지성.csv", "", HeaderSet{"이름", "점수"}, " ", "70"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, "박지성", rec.Name)
			},
		},
		{
			name: "decomposed name is composed",
			raw:  rawOf("a.csv", "", HeaderSet{"이름"}, "\u1100\u1161\u11a8"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, "각", rec.Name)
			},
		},
		{
			name: "durations",
			raw:  rawOf("a.csv", "", HeaderSet{"이름", "풀이시간", "복습시간"}, "김민수", "90분", "15"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, "01:30:00", rec.SolveTime)
				assert.Equal(t, "15분", rec.ReviewTime)
			},
		},
		{
			name: "date from another column",
			raw:  rawOf("a.csv", "", HeaderSet{"이름", "점수", "제출"}, "김민수", "95", "2024.05.06"),
			verify: func(t *testing.T, rec Record) {
				assert.True(t, rec.DateValid)
				assert.Equal(t, "2024-05-06", rec.DateStr)
			},
		},
		{
			name: "unparseable date",
			raw:  rawOf("a.csv", "", HeaderSet{"이름", "날짜", "점수"}, "김민수", "미제출", "95"),
			verify: func(t *testing.T, rec Record) {
				assert.False(t, rec.DateValid)
				assert.Equal(t, "미제출", rec.DateStr)
				assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), rec.Date)
			},
		},
		{
			name: "default title and course",
			raw:  rawOf("a.csv", "", HeaderSet{"이름"}, "김민수"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, "과제", rec.Title)
				assert.Equal(t, "정규과정", rec.Course)
				assert.Equal(t, "공통반", rec.ClassName)
				assert.Equal(t, "기타", rec.Folder)
			},
		},
		{
			name: "windows folder path",
			raw:  rawOf("a.csv", `2024\겨울방학\고2 심화`, HeaderSet{"이름"}, "김민수"),
			verify: func(t *testing.T, rec Record) {
				assert.Equal(t, "고2 심화", rec.ClassName)
				assert.Equal(t, "2024", rec.Folder)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := n.Normalize(tc.raw)
			require.NoError(t, err)
			tc.verify(t, rec)
		})
	}
}

func TestNormalize_NoName(t *testing.T) {
	_, err := newTestNormalizer().Normalize(rawOf("_scores.csv", "", HeaderSet{"이름", "점수"}, "", "95"))
	assert.Equal(t, ErrNoName, err)
}

func TestNormalizer_RefineTitle(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		input string
		want  string
	}{
		{input: "[과제] 미적분1 1단원(복습)", want: "미적분1 1단원"},
		{input: "수학]  2단원 [", want: "수학 2단원"},
		{input: "(복습)", want: "제목 없음"},
		{input: "   ", want: "제목 없음"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, n.RefineTitle(tc.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: "-"},
		{input: "0", want: "-"},
		{input: "00:00", want: "-"},
		{input: "-", want: "-"},
		{input: "12345678901", want: "-"},
		{input: "90분", want: "01:30:00"},
		{input: "5분", want: "00:05:00"},
		{input: "125 분", want: "02:05:00"},
		{input: "30", want: "30분"},
		{input: "1.5", want: "1.5분"},
		{input: "12:30", want: "12:30"},
		{input: "약 10분", want: "약 10분"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDuration(tc.input))
		})
	}
}

func TestSafeNumber(t *testing.T) {
	assert.Equal(t, 95.5, SafeNumber("95.5점"))
	assert.Equal(t, 80.0, SafeNumber(" 80 "))
	assert.Equal(t, 0.0, SafeNumber("없음"))
}
