package augment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/scoring"
)

// Patch is the validated subset of an AI response. Nil or empty fields were
// absent or undecodable and leave the baseline untouched.
type Patch struct {
	Score          *int
	Breakdown      BreakdownPatch
	Issues         []models.Issue
	PriorityAction *models.PriorityAction
	Checklist      []models.ChecklistItem
	Notes          Notes
}

// BreakdownPatch carries the sub-scores the AI returned.
type BreakdownPatch struct {
	Clarity, Trust, UX, Offer, Speed, Funnel *int
}

func (b BreakdownPatch) empty() bool {
	return b.Clarity == nil && b.Trust == nil && b.UX == nil &&
		b.Offer == nil && b.Speed == nil && b.Funnel == nil
}

// Notes is the AI's self-assessment.
type Notes struct {
	Confidence  string
	Limitations []string
}

// ParsePatch decodes raw field by field. A field that fails to decode is
// dropped on its own; the patch is rejected only when raw is not a JSON
// object or none of the core fields decoded.
func ParsePatch(raw []byte) (*Patch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, models.NewScanError(models.ErrCodeAISchema, "AI response is not a JSON object", err)
	}

	p := &Patch{}
	p.Score = decodeScore(fields["score"])
	p.Breakdown = decodeBreakdown(fields["breakdown"])
	p.Issues = decodeIssues(fields["issues"])
	p.PriorityAction = decodePriority(fields["priority_action"])
	p.Checklist = decodeChecklist(fields["checklist"])
	p.Notes = decodeNotes(fields["notes"])

	if p.Score == nil && p.Breakdown.empty() && len(p.Issues) == 0 &&
		p.PriorityAction == nil && len(p.Checklist) == 0 {
		return nil, models.NewScanError(models.ErrCodeAISchema, "AI response has no usable fields", nil)
	}
	return p, nil
}

func decodeScore(raw json.RawMessage) *int {
	var f float64
	if absent(raw) || json.Unmarshal(raw, &f) != nil || math.IsNaN(f) {
		return nil
	}
	// Clamp before converting: out-of-range floats do not convert to int.
	v := int(math.Round(math.Max(0, math.Min(100, f))))
	return &v
}

func decodeBreakdown(raw json.RawMessage) BreakdownPatch {
	var m map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return BreakdownPatch{}
	}
	return BreakdownPatch{
		Clarity: decodeScore(m["clarity"]),
		Trust:   decodeScore(m["trust"]),
		UX:      decodeScore(m["ux"]),
		Offer:   decodeScore(m["offer"]),
		Speed:   decodeScore(m["speed"]),
		Funnel:  decodeScore(m["funnel"]),
	}
}

type rawIssue struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Why        string   `json:"why"`
	FixSteps   []string `json:"fix_steps"`
	Impact     string   `json:"impact"`
	Confidence string   `json:"confidence"`
}

func decodeIssues(raw json.RawMessage) []models.Issue {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	var out []models.Issue
	for _, item := range items {
		var ri rawIssue
		if json.Unmarshal(item, &ri) != nil || strings.TrimSpace(ri.Title) == "" {
			continue
		}
		id := strings.TrimSpace(ri.ID)
		if id == "" {
			id = fmt.Sprintf("ai-%d", len(out)+1)
		}
		out = append(out, models.Issue{
			ID:         id,
			Title:      strings.TrimSpace(ri.Title),
			Why:        strings.TrimSpace(ri.Why),
			FixSteps:   nonEmpty(ri.FixSteps),
			Impact:     tier(ri.Impact, models.ImpactMedium),
			Confidence: tier(ri.Confidence, models.ConfidenceMedium),
		})
		if len(out) == scoring.MaxIssues {
			break
		}
	}
	return out
}

type rawPriority struct {
	Title          string          `json:"title"`
	Steps          []string        `json:"steps"`
	EstMinutes     json.RawMessage `json:"est_minutes"`
	ExpectedImpact string          `json:"expected_impact"`
}

func decodePriority(raw json.RawMessage) *models.PriorityAction {
	var rp rawPriority
	if len(raw) == 0 || json.Unmarshal(raw, &rp) != nil {
		return nil
	}
	steps := nonEmpty(rp.Steps)
	if strings.TrimSpace(rp.Title) == "" || len(steps) == 0 {
		return nil
	}
	var minutes float64
	if json.Unmarshal(rp.EstMinutes, &minutes) != nil {
		minutes = 0
	}
	return &models.PriorityAction{
		Title:          strings.TrimSpace(rp.Title),
		Steps:          steps,
		EstMinutes:     max(0, int(math.Round(minutes))),
		ExpectedImpact: tier(rp.ExpectedImpact, models.ImpactMedium),
	}
}

func decodeChecklist(raw json.RawMessage) []models.ChecklistItem {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	var out []models.ChecklistItem
	for _, item := range items {
		var ci models.ChecklistItem
		if json.Unmarshal(item, &ci) != nil || strings.TrimSpace(ci.Label) == "" {
			continue
		}
		ci.Label = strings.TrimSpace(ci.Label)
		out = append(out, ci)
	}
	return out
}

func decodeNotes(raw json.RawMessage) Notes {
	var rn struct {
		Confidence  string          `json:"confidence"`
		Limitations json.RawMessage `json:"limitations"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &rn) != nil {
		return Notes{}
	}
	n := Notes{Confidence: tier(rn.Confidence, "")}
	var lims []string
	if json.Unmarshal(rn.Limitations, &lims) == nil {
		n.Limitations = nonEmpty(lims)
	}
	return n
}

// absent reports a missing or null field.
func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// tier normalises a high/medium/low value, returning fallback otherwise.
func tier(v, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "high":
		return "high"
	case "medium":
		return "medium"
	case "low":
		return "low"
	}
	return fallback
}

func nonEmpty(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Merge applies p over baseline field by field. It is pure: baseline is
// not modified and the result shares no slices with p.
func Merge(baseline models.BaselineResult, p *Patch) models.BaselineResult {
	out := baseline
	out.Issues = append([]models.Issue(nil), baseline.Issues...)
	out.Checklist = append([]models.ChecklistItem(nil), baseline.Checklist...)
	if p == nil {
		return out
	}

	if p.Score != nil {
		out.Score = scoring.Clamp(*p.Score)
	}
	setScore(&out.Breakdown.Clarity, p.Breakdown.Clarity)
	setScore(&out.Breakdown.Trust, p.Breakdown.Trust)
	setScore(&out.Breakdown.UX, p.Breakdown.UX)
	setScore(&out.Breakdown.Offer, p.Breakdown.Offer)
	setScore(&out.Breakdown.Speed, p.Breakdown.Speed)
	setScore(&out.Breakdown.Funnel, p.Breakdown.Funnel)

	if len(p.Issues) > 0 {
		out.Issues = append([]models.Issue(nil), p.Issues...)
	}
	if len(p.Checklist) > 0 {
		out.Checklist = append([]models.ChecklistItem(nil), p.Checklist...)
	}
	if p.PriorityAction != nil && p.PriorityAction.Title != "" && len(p.PriorityAction.Steps) > 0 {
		pa := *p.PriorityAction
		pa.Steps = append([]string(nil), pa.Steps...)
		out.PriorityAction = pa
	}
	return out
}

func setScore(dst *int, v *int) {
	if v != nil {
		*dst = scoring.Clamp(*v)
	}
}
