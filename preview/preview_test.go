package preview

import (
	"testing"

	"github.com/fyxxlabs/sitescan/models"
)

func fullResult() *models.ScanResult {
	res := &models.ScanResult{
		BaselineResult: models.BaselineResult{
			Score: 72,
			PriorityAction: models.PriorityAction{
				Title: "Put a clear call to action above the fold",
				Steps: []string{"one", "two", "three", "four"},
			},
			Checklist: []models.ChecklistItem{{Label: "a"}, {Label: "b", Done: true}, {Label: "c"}, {Label: "d"}},
		},
		Confidence:  models.ConfidenceMedium,
		Limitations: []string{"Rendered fetch failed; plain HTML was analysed."},
	}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		res.Issues = append(res.Issues, models.Issue{
			ID: id, Title: "Issue " + id, Impact: models.ImpactHigh,
			Why: "secret rationale", FixSteps: []string{"secret step"},
		})
	}
	return res
}

func TestProject(t *testing.T) {
	res := fullResult()
	p := Project(res)

	if p.Score != res.Score || p.Confidence != res.Confidence {
		t.Errorf("score/confidence = %d/%q", p.Score, p.Confidence)
	}
	if len(p.PriorityAction.Steps) != MaxSteps || p.PriorityAction.Title != res.PriorityAction.Title {
		t.Errorf("priority action = %+v", p.PriorityAction)
	}
	if len(p.TopIssues) != MaxIssues {
		t.Fatalf("TopIssues = %d, want %d", len(p.TopIssues), MaxIssues)
	}
	for i, is := range p.TopIssues {
		if is.Title != res.Issues[i].Title || is.Impact != res.Issues[i].Impact {
			t.Errorf("TopIssues[%d] = %+v, want prefix of full issues", i, is)
		}
	}
	if len(p.Checklist) != MaxChecklist || p.Checklist[1] != res.Checklist[1] {
		t.Errorf("Checklist = %+v", p.Checklist)
	}
	if len(p.Limitations) != 1 {
		t.Errorf("Limitations = %v", p.Limitations)
	}
}

func TestProject_DoesNotAliasResult(t *testing.T) {
	res := fullResult()
	p := Project(res)
	p.PriorityAction.Steps[0] = "changed"
	p.Checklist[0].Label = "changed"
	if res.PriorityAction.Steps[0] != "one" || res.Checklist[0].Label != "a" {
		t.Error("editing the preview modified the full result")
	}
}

func TestProject_ShortAndNil(t *testing.T) {
	res := &models.ScanResult{BaselineResult: models.BaselineResult{Score: 50}, Confidence: models.ConfidenceLow}
	p := Project(res)
	if p.TopIssues == nil || p.Checklist == nil {
		t.Error("slices should be empty, not nil")
	}
	if p.Score != 50 || p.Confidence != models.ConfidenceLow {
		t.Errorf("preview = %+v", p)
	}

	if z := Project(nil); z.Score != 0 || len(z.TopIssues) != 0 {
		t.Errorf("Project(nil) = %+v", z)
	}
}
