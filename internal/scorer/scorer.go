// Package scorer converts raw leads into 0-100 quality scores via additive
// weighted rules. Scoring is pure and total: absent or malformed optional
// fields mean "bonus does not apply", never an error.
package scorer

import (
	"strings"
	"time"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
)

// Bonus magnitudes. The keyword and industry tables are configurable; the
// magnitudes are fixed so two deployments disagree only on what counts, not
// on how much it counts.
const (
	baseScore = 50

	industryBonus   = 20
	sourceBonus     = 10
	urgencyBonus    = 15
	homeMarketBonus = 10
	contactBonus    = 5
	websiteBonus    = 5

	sizeBonusLarge  = 15 // > 100 employees
	sizeBonusMedium = 10 // > 50
	sizeBonusSmall  = 5  // > 10

	budgetBonusLarge  = 20 // > 50,000
	budgetBonusMedium = 15 // > 25,000
	budgetBonusSmall  = 10 // > 10,000
)

// Score derives a ScoredLead from a lead and the scoring tables. The result
// is clamped to [0,100]; the base of 50 plus all maximum bonuses exceeds 100,
// so the clamp is load-bearing. Adjustments are independent and order does
// not affect the sum.
func Score(lead model.Lead, cfg config.ScoringConfig) model.ScoredLead {
	components := map[string]int{
		"base":        baseScore,
		"industry":    scoreIndustry(lead.Industry, cfg.HighValueIndustries),
		"size":        scoreSize(lead.EmployeeCount),
		"budget":      scoreBudget(lead.AnnualBudget),
		"source":      scoreSource(lead.Source, cfg.QualitySources),
		"urgency":     scoreUrgency(lead.Description, cfg.UrgencyKeywords),
		"home_market": scoreHomeMarket(lead.Location, cfg.HomeMarketTokens),
		"contact":     scoreContact(lead),
	}

	total := 0
	for _, v := range components {
		total += v
	}

	return model.ScoredLead{
		Lead:       lead,
		Score:      clamp(total),
		Components: components,
		ScoredAt:   time.Now().UTC(),
	}
}

func scoreIndustry(industry string, highValue []string) int {
	if containsFold(highValue, industry) {
		return industryBonus
	}
	return 0
}

// scoreSize awards the highest matching threshold only, never cumulative.
func scoreSize(employees int) int {
	switch {
	case employees > 100:
		return sizeBonusLarge
	case employees > 50:
		return sizeBonusMedium
	case employees > 10:
		return sizeBonusSmall
	default:
		return 0
	}
}

func scoreBudget(budget float64) int {
	switch {
	case budget > 50_000:
		return budgetBonusLarge
	case budget > 25_000:
		return budgetBonusMedium
	case budget > 10_000:
		return budgetBonusSmall
	default:
		return 0
	}
}

func scoreSource(source string, quality []string) int {
	if containsFold(quality, source) {
		return sourceBonus
	}
	return 0
}

func scoreUrgency(description string, keywords []string) int {
	if description == "" {
		return 0
	}
	lower := strings.ToLower(description)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return urgencyBonus
		}
	}
	return 0
}

func scoreHomeMarket(location string, tokens []string) int {
	if location == "" {
		return 0
	}
	for _, tok := range tokens {
		if tok != "" && strings.Contains(location, tok) {
			return homeMarketBonus
		}
	}
	return 0
}

func scoreContact(lead model.Lead) int {
	bonus := 0
	if strings.TrimSpace(lead.Email) != "" && strings.TrimSpace(lead.Phone) != "" {
		bonus += contactBonus
	}
	if strings.TrimSpace(lead.Website) != "" {
		bonus += websiteBonus
	}
	return bonus
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// containsFold reports whether set contains s, case-insensitively.
func containsFold(set []string, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, member := range set {
		if strings.EqualFold(member, s) {
			return true
		}
	}
	return false
}
