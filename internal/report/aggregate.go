package report

import (
	"sort"

	"github.com/xxxsen/arccheck/internal/model"
)

// Finalize folds the verdicts of a run into its result. The first verdict
// seen for a path wins; later duplicates are ignored.
func Finalize(verdicts []model.Verdict, snapshot model.ScanProgress, cancelled bool) *model.ScanResult {
	res := &model.ScanResult{
		Corrupted:    make(map[string]string),
		Stats:        snapshot,
		WasCancelled: cancelled,
		Verdicts:     make([]model.Verdict, 0, len(verdicts)),
	}
	seen := make(map[string]struct{}, len(verdicts))
	for _, v := range verdicts {
		if _, ok := seen[v.Path]; ok {
			continue
		}
		seen[v.Path] = struct{}{}
		res.Verdicts = append(res.Verdicts, v)
		if !v.OK {
			res.Corrupted[v.Path] = v.Message
		}
	}
	sort.SliceStable(res.Verdicts, func(i, j int) bool {
		return res.Verdicts[i].Path < res.Verdicts[j].Path
	})
	return res
}
