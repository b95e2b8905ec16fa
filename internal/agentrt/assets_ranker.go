package agentrt

import (
	"sort"
	"strings"

	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// Ranking weights for keyword overlap against an asset's fields (spec.md
// §4.3 "rank locally by keyword overlap"). Kept as named constants because
// the weights are part of the contract, not a tuning knob.
const (
	assetNameWeight    = 5
	assetContentWeight = 4
	assetRemarkWeight  = 3
)

// rankAssets scores each asset by case-insensitive keyword overlap against
// its Name (+5 per match), Content (+4) and Remark (+3), then returns the
// top-k by descending score. Ties keep the external service's original
// order (stable sort).
func rankAssets(assets []Asset, keywords []string, topK int) workflow.AssetsData {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}

	scored := make([]workflow.AssetItem, len(assets))
	for i, a := range assets {
		score := 0
		name := strings.ToLower(a.Name)
		content := strings.ToLower(a.Content)
		remark := strings.ToLower(a.Remark)
		for _, k := range normalized {
			if strings.Contains(name, k) {
				score += assetNameWeight
			}
			if strings.Contains(content, k) {
				score += assetContentWeight
			}
			if strings.Contains(remark, k) {
				score += assetRemarkWeight
			}
		}
		scored[i] = workflow.AssetItem{ID: a.ID, Name: a.Name, Content: a.Content, Remark: a.Remark, Score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return workflow.AssetsData{Items: scored}
}
