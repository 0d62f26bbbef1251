package analysis

import "github.com/antonio-leblanc/working-hours/internal/model"

// Classify decides whether an event is personal and, if not, which single
// category bucket receives its work time. Personal dominates every other tag.
// categories must be in original split order.
func Classify(categories []string, personalTag string) (personal bool, workCategory string) {
	for _, c := range categories {
		if c == personalTag {
			return true, ""
		}
	}
	for _, c := range categories {
		if c != personalTag {
			return false, c
		}
	}
	return false, model.Uncategorized
}
