package agentrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRankAssets_WeightsNameContentRemark(t *testing.T) {
	assets := []Asset{
		{ID: "1", Name: "villa listing", Content: "lake view", Remark: "popular"},
		{ID: "2", Name: "studio", Content: "villa nearby", Remark: "villa recommended"},
		{ID: "3", Name: "office space", Content: "city center", Remark: "none"},
	}
	data := rankAssets(assets, []string{"villa"}, 5)
	require.Len(t, data.Items, 3)
	require.Equal(t, "2", data.Items[0].ID) // content+remark match: +4+3
	require.Equal(t, 7, data.Items[0].Score)
	require.Equal(t, "1", data.Items[1].ID) // name match: +5
	require.Equal(t, 5, data.Items[1].Score)
	require.Equal(t, "3", data.Items[2].ID)
	require.Equal(t, 0, data.Items[2].Score)
}

func TestRankAssets_TopKTruncates(t *testing.T) {
	assets := []Asset{
		{ID: "1", Name: "a villa"}, {ID: "2", Name: "b villa"}, {ID: "3", Name: "c villa"},
	}
	data := rankAssets(assets, []string{"villa"}, 2)
	require.Len(t, data.Items, 2)
}
