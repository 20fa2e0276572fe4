package report

import (
	"fmt"
	"strings"

	"segmenter/internal/core"
)

// Band places a cluster mean relative to the population.
type Band string

const (
	BandLow     Band = "low"
	BandAverage Band = "average"
	BandHigh    Band = "high"
)

// bandWidth is the distance from the population mean, in standard deviations,
// beyond which a cluster counts as low or high.
const bandWidth = 0.5

// Segment is a marketing reading of one cluster profile.
type Segment struct {
	Label          core.Label
	Name           string
	Income         Band
	Spending       Band
	AgeGroup       string
	Description    string
	Recommendation string
}

var recommendations = map[[2]Band]string{
	{BandHigh, BandHigh}:       "Prime target. Offer premium lines, early access and a loyalty tier to keep them engaged.",
	{BandHigh, BandLow}:        "Untapped potential. Lead with quality and personalised offers to convert spending capacity.",
	{BandHigh, BandAverage}:    "Affluent regulars. Upsell higher-margin products with tailored recommendations.",
	{BandLow, BandHigh}:        "Enthusiastic on a budget. Promote bundles and value deals; watch for over-extension.",
	{BandLow, BandLow}:         "Price sensitive. Focus on essentials and occasional discounts rather than heavy marketing spend.",
	{BandLow, BandAverage}:     "Value seekers. Keep them with clear pricing and periodic promotions.",
	{BandAverage, BandHigh}:    "Engaged mainstream. Reward frequency with points and member events.",
	{BandAverage, BandLow}:     "Hesitant shoppers. Test targeted incentives to lift visit frequency.",
	{BandAverage, BandAverage}: "Core customers. Broad seasonal campaigns and steady service keep this base stable.",
}

func band(value, mean, std float64) Band {
	switch {
	case value > mean+bandWidth*std:
		return BandHigh
	case value < mean-bandWidth*std:
		return BandLow
	default:
		return BandAverage
	}
}

func ageGroup(age float64) string {
	switch {
	case age < 30:
		return "young"
	case age < 50:
		return "middle-aged"
	default:
		return "senior"
	}
}

// Describe derives a named segment from a cluster profile.
func Describe(profile core.ClusterProfile, pop Population) Segment {
	m := profile.Mean
	seg := Segment{
		Label:    profile.Label,
		Income:   band(m[core.FeatureIncome], pop.Mean[core.FeatureIncome], pop.Std[core.FeatureIncome]),
		Spending: band(m[core.FeatureSpending], pop.Mean[core.FeatureSpending], pop.Std[core.FeatureSpending]),
		AgeGroup: ageGroup(m[core.FeatureAge]),
	}

	seg.Description = fmt.Sprintf("%d customers (%.1f%%), mostly %s, averaging %.0f years, %.1fk$ annual income and a spending score of %.0f; %.0f%% male.",
		profile.Size, profile.Share*100, seg.AgeGroup,
		m[core.FeatureAge], m[core.FeatureIncome], m[core.FeatureSpending], profile.MaleShare*100)

	if profile.Label.IsNoise() {
		seg.Name = "Outliers"
		seg.Recommendation = "Review individually; these customers fit no dense group."
		return seg
	}

	seg.Name = fmt.Sprintf("%s income, %s spending", capitalize(string(seg.Income)), seg.Spending)
	seg.Recommendation = recommendations[[2]Band{seg.Income, seg.Spending}]
	return seg
}

// DescribeAll describes every profile in order.
func DescribeAll(profiles []core.ClusterProfile, pop Population) []Segment {
	segments := make([]Segment, len(profiles))
	for i, p := range profiles {
		segments[i] = Describe(p, pop)
	}
	return segments
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
