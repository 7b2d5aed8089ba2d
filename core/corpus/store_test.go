package corpus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/insights/core/corpus"
	"github.com/trezcool/insights/core/ingest"
)

func TestStore(t *testing.T) {
	store := corpus.NewStore()
	assert.Empty(t, store.All())
	assert.Equal(t, 0, store.Len())

	recs := []ingest.Record{
		{Name: "김민수", Score: 90},
		{Name: "이영희", Score: 80},
		{Name: "\u1100\u1175\u11b7\u1106\u1175\u11ab\u1109\u116e", Score: 70}, // decomposed 김민수
	}
	require.NoError(t, store.Swap(corpus.Snapshot{Records: recs, FilesScanned: 2}))

	snap := store.Snapshot()
	assert.Equal(t, 3, snap.RecordCount)
	assert.Equal(t, 2, snap.FilesScanned)
	assert.Len(t, store.All(), 3)
	assert.Len(t, store.ByName(" 김민수 "), 2)
	assert.Empty(t, store.ByName("박지성"))

	store.Close()
	assert.Empty(t, store.All())
	assert.Equal(t, corpus.ErrClosed, store.Swap(corpus.Snapshot{Records: recs}))
	assert.Empty(t, store.All())
}
