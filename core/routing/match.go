package routing

import (
	"strings"

	"frontdesk-queue-system/core/models"
)

var departmentTokens = map[string][]string{
	CategoryTechnicalSupport: {"it", "technical"},
	CategorySales:            {"sales"},
	CategoryBilling:          {"billing", "finance"},
}

// BestStaffMatch picks the staff member an auto-routed ticket goes to.
//
// This is a first-match policy over available in store order, not the
// scorer used by Suggestions: the first staff member whose department
// contains a token for the category wins, and when none does the first
// available staff member is returned. The two policies can disagree for the
// same ticket. ok is false only when available is empty.
func BestStaffMatch(category string, available []models.Staff) (models.Staff, bool) {
	if len(available) == 0 {
		return models.Staff{}, false
	}
	tokens := tokensForCategory(category)
	for _, staff := range available {
		dept := strings.ToLower(staff.Department)
		for _, token := range tokens {
			if strings.Contains(dept, token) {
				return staff, true
			}
		}
	}
	return available[0], true
}

func tokensForCategory(category string) []string {
	if tokens, ok := departmentTokens[category]; ok {
		return tokens
	}
	// Labels outside the fixed set still route by keyword.
	switch {
	case strings.Contains(category, "Technical") || strings.Contains(category, "IT"):
		return departmentTokens[CategoryTechnicalSupport]
	case strings.Contains(category, "Sales"):
		return departmentTokens[CategorySales]
	case strings.Contains(category, "Billing"):
		return departmentTokens[CategoryBilling]
	}
	return nil
}
