package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/internal/extract"
	"github.com/LatVAlY/specWise/internal/reconcile"
	"github.com/LatVAlY/specWise/internal/text"
)

func raw(ref, desc string) extract.RawItem {
	return extract.RawItem{RefNo: ref, Description: desc, Quantity: 1, Unit: "Stk"}
}

func TestReconcile_MergesByTrimmedKey(t *testing.T) {
	items := reconcile.Reconcile([]extract.RawItem{
		raw("1.1", "Holztür"),
		raw(" 1.1 ", "Holztür mit Zarge"),
		raw("1.2", "Türschließer"),
	})

	require.Len(t, items, 2)
	assert.Equal(t, "1.1", items[0].Key)
	assert.Equal(t, "Holztür Holztür mit Zarge", items[0].Description)
	assert.Equal(t, "1.2", items[1].Key)
}

func TestReconcile_SkipsContainedDescription(t *testing.T) {
	items := reconcile.Reconcile([]extract.RawItem{
		raw("1.1", "Holztür mit Zarge, Oberfläche CPL"),
		raw("1.1", "mit Zarge"),
	})

	require.Len(t, items, 1)
	assert.Equal(t, "Holztür mit Zarge, Oberfläche CPL", items[0].Description)
}

func TestReconcile_SubstringIsCaseSensitive(t *testing.T) {
	items := reconcile.Reconcile([]extract.RawItem{
		raw("7", "Holztür"),
		raw("7", "holztür"),
	})

	require.Len(t, items, 1)
	assert.Equal(t, "Holztür holztür", items[0].Description)
}

// With W=1 a position split over pages 3 and 4 shows up once per chunk.
func TestReconcile_SplitAcrossPages(t *testing.T) {
	p3 := extract.RawItem{RefNo: "1.2.10", Description: "Holztürelement, Blatt 750 x 2.125 mm", Quantity: 4, Unit: "Stk", SourceChunk: text.ChunkID{Start: 3, End: 3}}
	p4 := extract.RawItem{RefNo: "1.2.10", Description: "Zarge Stahl, Drückergarnitur Edelstahl", Quantity: 0, Unit: "", SourceChunk: text.ChunkID{Start: 4, End: 4}}

	items := reconcile.Reconcile([]extract.RawItem{p3, p4})

	require.Len(t, items, 1)
	assert.Equal(t, "Holztürelement, Blatt 750 x 2.125 mm Zarge Stahl, Drückergarnitur Edelstahl", items[0].Description)
	assert.Equal(t, 4.0, items[0].Quantity)
	assert.Equal(t, "Stk", items[0].Unit)
	assert.Equal(t, text.ChunkID{Start: 3, End: 3}, items[0].SourceChunk)
}

func TestReconcile_FirstSeenOrder(t *testing.T) {
	items := reconcile.Reconcile([]extract.RawItem{
		raw("3", "c"), raw("1", "a"), raw("3", "c2"), raw("2", "b"),
	})

	var keys []string
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"3", "1", "2"}, keys)
}

func TestReconcile_Idempotent(t *testing.T) {
	first := reconcile.Reconcile([]extract.RawItem{
		raw("1", "a"), raw(" 1", "b"), raw("2", "c"), raw("2", "c"), raw("3 ", " d "),
	})
	second := reconcile.Reconcile(reconcile.AsRaw(first))

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Description, second[i].Description)
	}
}

func TestReconcile_Empty(t *testing.T) {
	assert.Empty(t, reconcile.Reconcile(nil))
}
