package reference_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LatVAlY/specWise/internal/reconcile"
	"github.com/LatVAlY/specWise/internal/reference"
)

func TestParse(t *testing.T) {
	tests := []struct {
		desc string
		want reference.Token
		ok   bool
	}{
		{"Holztür wie Pos. 10, jedoch 875 mm", reference.Token{Suffix: "10", Kind: reference.SamePosition}, true},
		{"wie pos 1.2.10.", reference.Token{Suffix: "1.2.10", Kind: reference.SamePosition}, true},
		{"Ausführung siehe Position 20", reference.Token{Suffix: "20", Kind: reference.SamePosition}, true},
		{"entspricht OZ 01.0030", reference.Token{Suffix: "01.0030", Kind: reference.SamePosition}, true},
		{"Türblatt wie Vorposition, jedoch links", reference.Token{Kind: reference.PreviousItem}, true},
		{"wie Vorposition, Zarge wie Pos. 10", reference.Token{Kind: reference.PreviousItem}, true},
		{"Zulage wie Pos. 10 für Oberfläche", reference.Token{}, false},
		{"Holztür 750 x 2.125 mm", reference.Token{}, false},
		{"Pos. 10 Holztür", reference.Token{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, ok := reference.Parse(tt.desc)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := reference.ParsePolicy("nearest_above")
	require.NoError(t, err)
	assert.Equal(t, reference.NearestAbove, p)

	p, err = reference.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, reference.SameParentFirst, p)

	_, err = reference.ParsePolicy("random")
	assert.Error(t, err)
}

func item(key, desc string) reconcile.Item {
	return reconcile.Item{Key: key, RefNo: key, Description: desc, Quantity: 1, Unit: "Stk"}
}

func TestResolve_SameParentFirst(t *testing.T) {
	items := []reconcile.Item{
		item("1.1.10", "Stahltür T30"),
		item("1.2.10", "Holztür 750 x 2.125 mm"),
		item("1.3.10", "Glastür"),
		item("1.2.30", "wie Pos. 10, jedoch 875 mm"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)

	require.Len(t, out, 4)
	assert.Equal(t, "1.2.10", out[3].ReferencesID)
	assert.Equal(t, "Holztür 750 x 2.125 mm\nwie Pos. 10, jedoch 875 mm", out[3].Description)
}

func TestResolve_NearestAbove(t *testing.T) {
	items := []reconcile.Item{
		item("1.2.10", "Holztür"),
		item("1.3.10", "Glastür"),
		item("1.2.30", "wie Pos. 10"),
	}

	out := reference.NewResolver(reference.NearestAbove).Resolve(items)
	assert.Equal(t, "1.3.10", out[2].ReferencesID)
	assert.Equal(t, "Glastür\nwie Pos. 10", out[2].Description)
}

func TestResolve_FallsBackToSuffix(t *testing.T) {
	items := []reconcile.Item{
		item("01.0010", "Baustelleneinrichtung"),
		item("02.0020", "wie Pos. 10"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)
	assert.Equal(t, "01.0010", out[1].ReferencesID)
}

func TestResolve_SegmentAwareSuffix(t *testing.T) {
	items := []reconcile.Item{
		item("1.2.110", "Tor"),
		item("1.3.5", "wie Pos. 10"),
	}

	out := reference.NewResolver(reference.NearestAbove).Resolve(items)
	assert.Empty(t, out[1].ReferencesID)
	assert.Equal(t, "wie Pos. 10", out[1].Description)
}

func TestResolve_AbsoluteNumber(t *testing.T) {
	items := []reconcile.Item{
		item("1.2.10", "Holztür"),
		item("2.2.10", "Stahltür"),
		item("2.2.20", "wie Pos. 1.2.10"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)
	assert.Equal(t, "1.2.10", out[2].ReferencesID)
}

func TestResolve_PreviousItem(t *testing.T) {
	items := []reconcile.Item{
		item("1", "Türstopper Boden"),
		item("2", "wie Vorposition, jedoch Wand"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)
	assert.Equal(t, "1", out[1].ReferencesID)
	assert.Equal(t, "Türstopper Boden\nwie Vorposition, jedoch Wand", out[1].Description)
}

func TestResolve_PreviousItemAtStart(t *testing.T) {
	out := reference.NewResolver(reference.SameParentFirst).Resolve([]reconcile.Item{item("1", "wie Vorposition")})
	assert.Empty(t, out[0].ReferencesID)
	assert.Equal(t, "wie Vorposition", out[0].Description)
}

func TestResolve_ForwardReferenceIgnored(t *testing.T) {
	items := []reconcile.Item{
		item("1.10", "wie Pos. 20"),
		item("1.20", "Holztür"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)
	assert.Empty(t, out[0].ReferencesID)
	assert.Equal(t, "wie Pos. 20", out[0].Description)
}

func TestResolve_ChainsExpandTransitively(t *testing.T) {
	items := []reconcile.Item{
		item("1.10", "Holztür"),
		item("1.20", "wie Pos. 10"),
		item("1.30", "wie Pos. 20"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)
	assert.Equal(t, "Holztür\nwie Pos. 10\nwie Pos. 20", out[2].Description)
}

func TestResolve_PreservesCountAndKeys(t *testing.T) {
	items := []reconcile.Item{
		item("1", "a"), item("2", "wie Pos. 1"), item("3", "wie Pos. 9"), item("4", "wie Vorposition"),
	}

	out := reference.NewResolver(reference.SameParentFirst).Resolve(items)
	require.Len(t, out, len(items))
	for i := range items {
		assert.Equal(t, items[i].Key, out[i].Key)
		if out[i].ReferencesID != "" {
			var refIdx int
			for j := range out {
				if out[j].Key == out[i].ReferencesID {
					refIdx = j
				}
			}
			assert.Less(t, refIdx, i)
		}
	}
}
