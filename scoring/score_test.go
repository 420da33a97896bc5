package scoring

import (
	"reflect"
	"testing"

	"github.com/fyxxlabs/sitescan/models"
)

func issueIDs(issues []models.Issue) []string {
	ids := make([]string, 0, len(issues))
	for _, i := range issues {
		ids = append(ids, i.ID)
	}
	return ids
}

func TestScore_NoPages(t *testing.T) {
	res := Score(nil)

	if res.Score != BaseScore {
		t.Errorf("Score = %d, want %d", res.Score, BaseScore)
	}
	wantIDs := []string{"missing-h1", "no-cta", "no-contact", "no-shipping-returns", "no-mobile-viewport"}
	if got := issueIDs(res.Issues); !reflect.DeepEqual(got, wantIDs) {
		t.Errorf("issues = %v, want %v", got, wantIDs)
	}
	if res.Breakdown.Speed != 50 || res.Breakdown.Trust != 0 {
		t.Errorf("breakdown = %+v, want speed 50 and trust 0", res.Breakdown)
	}
	if res.PriorityAction.Title != "Put a clear call to action above the fold" {
		t.Errorf("priority = %q", res.PriorityAction.Title)
	}
	if len(res.Checklist) != 8 {
		t.Fatalf("checklist has %d items, want 8", len(res.Checklist))
	}
	for _, item := range res.Checklist {
		if item.Done {
			t.Errorf("checklist item %q done with no pages", item.Label)
		}
	}
}

func TestScore_FullyOptimised(t *testing.T) {
	price := 20.0
	home := models.PageSignals{
		PageType: models.PageHome, Title: "Acme", H1: "Acme", MetaDescription: "Goods", H2Count: 2,
		HasCTA: true, CTAAboveFold: true, HasPrice: true, PriceAboveFold: true,
		HasContact: true, HasShippingReturns: true, HasTrustBadges: true, HasReviews: true,
		HasViewportMobile: true, HasCanonical: true, HasOpenGraph: true, HasProductLinks: true,
		ImageAltRatio: 1, ScriptCount: 10,
	}
	product := models.PageSignals{
		PageType: models.PageProduct, HasCTA: true, ScriptCount: 12,
		StructuredData: []models.StructuredProduct{{Name: "Mug", Price: &price}},
	}
	res := Score([]models.PageSignals{home, product})

	if res.Score != 100 {
		t.Errorf("Score = %d, want 100 (clamped)", res.Score)
	}
	want := models.Breakdown{Clarity: 100, Trust: 100, UX: 100, Offer: 100, Speed: 100, Funnel: 100}
	if res.Breakdown != want {
		t.Errorf("Breakdown = %+v, want %+v", res.Breakdown, want)
	}
	if len(res.Issues) != 0 {
		t.Errorf("issues = %v, want none", issueIDs(res.Issues))
	}
	if res.PriorityAction.Title != "Strengthen trust signals" {
		t.Errorf("priority = %q", res.PriorityAction.Title)
	}
}

func TestScore_PartialSignals(t *testing.T) {
	home := models.PageSignals{
		PageType: models.PageHome, H1: "Acme", HasCTA: true, HasViewportMobile: true, ScriptCount: 5,
	}
	res := Score([]models.PageSignals{home})

	if res.Score != 68 {
		t.Errorf("Score = %d, want 68", res.Score)
	}
	wantIDs := []string{"cta-below-fold", "no-contact", "no-shipping-returns", "no-reviews", "no-visible-price"}
	if got := issueIDs(res.Issues); !reflect.DeepEqual(got, wantIDs) {
		t.Errorf("issues = %v, want %v", got, wantIDs)
	}
}

func TestScore_HeavyScripts(t *testing.T) {
	home := models.PageSignals{
		PageType: models.PageHome, H1: "Acme", MetaDescription: "x",
		HasCTA: true, CTAAboveFold: true, HasContact: true, HasShippingReturns: true,
		HasViewportMobile: true, HasReviews: true, HasPrice: true,
	}
	heavy := models.PageSignals{PageType: models.PageProduct, ScriptCount: 90}

	light := Score([]models.PageSignals{home})
	loaded := Score([]models.PageSignals{home, heavy})

	if light.Score-loaded.Score != weightNoHeavyScripts {
		t.Errorf("heavy page should cost %d points: light=%d loaded=%d", weightNoHeavyScripts, light.Score, loaded.Score)
	}
	if got := issueIDs(loaded.Issues); !reflect.DeepEqual(got, []string{"heavy-scripts"}) {
		t.Errorf("issues = %v, want [heavy-scripts]", got)
	}
	if loaded.Breakdown.Speed != 20 {
		t.Errorf("Speed = %d, want 20", loaded.Breakdown.Speed)
	}

	custom := Scorer{HeavyScriptThreshold: 100}.Score([]models.PageSignals{home, heavy})
	if custom.Score != light.Score {
		t.Errorf("raised threshold: Score = %d, want %d", custom.Score, light.Score)
	}
}

func TestScore_PriorityTree(t *testing.T) {
	tests := []struct {
		name string
		home models.PageSignals
		want string
	}{
		{"cta missing", models.PageSignals{HasContact: true}, "Put a clear call to action above the fold"},
		{"cta below fold", models.PageSignals{HasCTA: true}, "Put a clear call to action above the fold"},
		{"contact missing", models.PageSignals{HasCTA: true, CTAAboveFold: true}, "Make it easy to contact you"},
		{"fallback", models.PageSignals{HasCTA: true, CTAAboveFold: true, HasContact: true}, "Strengthen trust signals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.home.PageType = models.PageHome
			got := Score([]models.PageSignals{tt.home}).PriorityAction
			if got.Title != tt.want {
				t.Errorf("priority = %q, want %q", got.Title, tt.want)
			}
			if len(got.Steps) == 0 || got.EstMinutes <= 0 {
				t.Errorf("priority action incomplete: %+v", got)
			}
		})
	}
}

func TestScore_UsesHomePage(t *testing.T) {
	product := models.PageSignals{PageType: models.PageProduct, URL: "https://shop.example/products/a"}
	home := models.PageSignals{PageType: models.PageHome, H1: "Acme"}
	res := Score([]models.PageSignals{product, home})
	if !res.Checklist[0].Done {
		t.Error("checklist should reflect the home page H1, not the first page")
	}
}

func TestScore_DoesNotShareFixSteps(t *testing.T) {
	a := Score(nil)
	a.Issues[0].FixSteps[0] = "mutated"
	b := Score(nil)
	if b.Issues[0].FixSteps[0] == "mutated" {
		t.Error("canned issue fix steps were mutated through a result")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ in, want int }{{-5, 0}, {0, 0}, {55, 55}, {100, 100}, {130, 100}}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
