// Package preview redacts a finished scan result for unentitled callers.
package preview

import "github.com/fyxxlabs/sitescan/models"

// Preview limits.
const (
	MaxSteps     = 3
	MaxIssues    = 3
	MaxChecklist = 3
)

// Project derives a ScanPreview from res. Every preview field is copied or
// truncated from res; nothing is recomputed. A nil result yields the zero
// preview.
func Project(res *models.ScanResult) models.ScanPreview {
	if res == nil {
		return models.ScanPreview{TopIssues: []models.IssueSummary{}, Checklist: []models.ChecklistItem{}}
	}

	pa := res.PriorityAction
	pa.Steps = append([]string{}, head(pa.Steps, MaxSteps)...)

	issues := head(res.Issues, MaxIssues)
	top := make([]models.IssueSummary, 0, len(issues))
	for _, is := range issues {
		top = append(top, models.IssueSummary{Title: is.Title, Impact: is.Impact})
	}

	p := models.ScanPreview{
		Score:          res.Score,
		PriorityAction: pa,
		TopIssues:      top,
		Checklist:      append([]models.ChecklistItem{}, head(res.Checklist, MaxChecklist)...),
		Confidence:     res.Confidence,
	}
	if len(res.Limitations) > 0 {
		p.Limitations = append([]string(nil), res.Limitations...)
	}
	return p
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
