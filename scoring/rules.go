package scoring

import "github.com/fyxxlabs/sitescan/models"

// Canned issues, listed in reporting priority order.
var (
	issueMissingH1 = models.Issue{
		ID:    "missing-h1",
		Title: "Home page has no H1 headline",
		Why:   "Visitors decide in seconds whether they are in the right place. A clear headline states what you sell.",
		FixSteps: []string{
			"Add a single H1 at the top of the home page",
			"State the product category and the main benefit in under 10 words",
		},
		Impact:     models.ImpactMedium,
		Confidence: models.ConfidenceHigh,
	}
	issueNoCTA = models.Issue{
		ID:    "no-cta",
		Title: "No clear call to action",
		Why:   "Without a visible next step, visitors browse and leave instead of moving toward a purchase.",
		FixSteps: []string{
			"Add a primary button such as \"Shop now\" in the hero section",
			"Link it to your best-selling collection",
		},
		Impact:     models.ImpactHigh,
		Confidence: models.ConfidenceMedium,
	}
	issueCTABelowFold = models.Issue{
		ID:    "cta-below-fold",
		Title: "Call to action is below the fold",
		Why:   "Most visitors never scroll. The first screen should already offer a way to shop.",
		FixSteps: []string{
			"Move the primary button into the hero section",
			"Shorten or remove banners that push it down",
		},
		Impact:     models.ImpactHigh,
		Confidence: models.ConfidenceMedium,
	}
	issueNoContact = models.Issue{
		ID:    "no-contact",
		Title: "Contact information is hard to find",
		Why:   "Shoppers look for a way to reach a real person before trusting an unfamiliar store.",
		FixSteps: []string{
			"Add a contact page with an email address",
			"Link it from the header or footer of every page",
		},
		Impact:     models.ImpactMedium,
		Confidence: models.ConfidenceMedium,
	}
	issueNoShipping = models.Issue{
		ID:    "no-shipping-returns",
		Title: "No shipping or returns information",
		Why:   "Unexpected shipping costs and unclear return rules are the most common reasons for abandoned carts.",
		FixSteps: []string{
			"Publish a shipping and returns page",
			"Mention delivery times and the return window near the add-to-cart button",
		},
		Impact:     models.ImpactHigh,
		Confidence: models.ConfidenceMedium,
	}
	issueNoViewport = models.Issue{
		ID:    "no-mobile-viewport",
		Title: "Page is not configured for mobile",
		Why:   "Most store traffic is mobile. Without a viewport tag the page renders zoomed out and is hard to use.",
		FixSteps: []string{
			"Add <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"> to the head",
			"Check the layout on a phone",
		},
		Impact:     models.ImpactHigh,
		Confidence: models.ConfidenceHigh,
	}
	issueNoReviews = models.Issue{
		ID:    "no-reviews",
		Title: "No customer reviews visible",
		Why:   "Social proof reassures first-time buyers that the product is worth the price.",
		FixSteps: []string{
			"Install a reviews app",
			"Show the star rating near product titles",
		},
		Impact:     models.ImpactMedium,
		Confidence: models.ConfidenceMedium,
	}
	issueNoPrice = models.Issue{
		ID:    "no-visible-price",
		Title: "No prices visible on the home page",
		Why:   "Visitors who cannot see a price cannot judge if the store fits their budget.",
		FixSteps: []string{
			"Feature a few products with their prices on the home page",
		},
		Impact:     models.ImpactMedium,
		Confidence: models.ConfidenceMedium,
	}
	issueHeavyScripts = models.Issue{
		ID:    "heavy-scripts",
		Title: "Pages load a large number of scripts",
		Why:   "Every extra script slows the first render, and slow pages lose buyers.",
		FixSteps: []string{
			"Uninstall apps you no longer use",
			"Defer or remove third-party tracking scripts",
		},
		Impact:     models.ImpactMedium,
		Confidence: models.ConfidenceLow,
	}
	issueNoMeta = models.Issue{
		ID:    "missing-meta-description",
		Title: "Home page has no meta description",
		Why:   "Search results show the meta description. Without one, the listing shows random page text.",
		FixSteps: []string{
			"Write a 140-160 character description of the store",
		},
		Impact:     models.ImpactLow,
		Confidence: models.ConfidenceHigh,
	}
)

func issues(home models.PageSignals, heavy bool) []models.Issue {
	var out []models.Issue
	add := func(cond bool, issue models.Issue) {
		if cond && len(out) < MaxIssues {
			issue.FixSteps = append([]string(nil), issue.FixSteps...)
			out = append(out, issue)
		}
	}

	add(home.H1 == "", issueMissingH1)
	if !home.HasCTA {
		add(true, issueNoCTA)
	} else {
		add(!home.CTAAboveFold, issueCTABelowFold)
	}
	add(!home.HasContact, issueNoContact)
	add(!home.HasShippingReturns, issueNoShipping)
	add(!home.HasViewportMobile, issueNoViewport)
	add(!home.HasReviews, issueNoReviews)
	add(!home.HasPrice, issueNoPrice)
	add(heavy, issueHeavyScripts)
	add(home.MetaDescription == "", issueNoMeta)

	if out == nil {
		return []models.Issue{}
	}
	return out
}

func priorityAction(home models.PageSignals) models.PriorityAction {
	switch {
	case !home.HasCTA || !home.CTAAboveFold:
		return models.PriorityAction{
			Title: "Put a clear call to action above the fold",
			Steps: []string{
				"Add a \"Shop now\" button to the hero section of the home page",
				"Point it at your best-selling collection",
				"Keep the hero short enough that the button shows on a phone without scrolling",
			},
			EstMinutes:     20,
			ExpectedImpact: models.ImpactHigh,
		}
	case !home.HasContact:
		return models.PriorityAction{
			Title: "Make it easy to contact you",
			Steps: []string{
				"Create a contact page with an email address and response time",
				"Link it from the header and footer",
				"Add the address or phone number if you have one",
			},
			EstMinutes:     15,
			ExpectedImpact: models.ImpactMedium,
		}
	default:
		return models.PriorityAction{
			Title: "Strengthen trust signals",
			Steps: []string{
				"Show customer reviews near product titles",
				"Add payment and secure-checkout badges near the add-to-cart button",
				"Summarise shipping and returns in one line under the price",
			},
			EstMinutes:     30,
			ExpectedImpact: models.ImpactMedium,
		}
	}
}

func checklist(home models.PageSignals) []models.ChecklistItem {
	return []models.ChecklistItem{
		{Label: "Clear H1 headline on the home page", Done: home.H1 != ""},
		{Label: "Call to action visible without scrolling", Done: home.CTAAboveFold},
		{Label: "Prices visible on the home page", Done: home.HasPrice},
		{Label: "Shipping and returns information published", Done: home.HasShippingReturns},
		{Label: "Contact details easy to find", Done: home.HasContact},
		{Label: "Customer reviews displayed", Done: home.HasReviews},
		{Label: "Payment or security badges shown", Done: home.HasTrustBadges},
		{Label: "Mobile viewport configured", Done: home.HasViewportMobile},
	}
}
