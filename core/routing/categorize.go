package routing

import "strings"

const (
	CategoryTechnicalSupport = "Technical Support"
	CategoryBilling          = "Billing"
	CategoryAccountServices  = "Account Services"
	CategorySales            = "Sales"
	CategoryGeneralInquiry   = "General Inquiry"
	CategoryGeneral          = "General"
)

type keywordGroup struct {
	category string
	keywords []string
}

// Order matters: a purpose matching several groups takes the first one.
var keywordGroups = []keywordGroup{
	{category: CategoryTechnicalSupport, keywords: []string{"technical", "support", "it"}},
	{category: CategoryBilling, keywords: []string{"billing", "payment", "invoice"}},
	{category: CategoryAccountServices, keywords: []string{"account", "profile"}},
	{category: CategorySales, keywords: []string{"sales", "purchase", "consultation"}},
	{category: CategoryGeneralInquiry, keywords: []string{"general", "inquiry"}},
}

// Categorize maps a free-text purpose of visit to a category label using
// substring keyword matching. Unmatched text falls through to General.
func Categorize(purpose string) string {
	lower := strings.ToLower(purpose)
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return CategoryGeneral
}
