package routing

import (
	"fmt"
	"sort"
	"strings"

	"frontdesk-queue-system/core/models"
)

const (
	baseScore           = 50
	urgentBonus         = 30
	highBonus           = 20
	departmentBonus     = 40
	availabilityBonus   = 20
	maxScore            = 100
	MinSuggestionScore  = 60
	DefaultSuggestLimit = 5
)

type Suggestion struct {
	Ticket models.Ticket `json:"ticket"`
	Staff  models.Staff  `json:"staff"`
	Score  int           `json:"match_score"`
	Reason string        `json:"reason"`
}

// Score rates how well staff fits ticket, capped at 100.
func Score(ticket models.Ticket, staff models.Staff) int {
	score := baseScore
	switch ticket.Priority {
	case models.PriorityUrgent:
		score += urgentBonus
	case models.PriorityHigh:
		score += highBonus
	}
	if departmentOverlap(ticket, staff) {
		score += departmentBonus
	}
	if staff.IsAvailable {
		score += availabilityBonus
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

// Suggestions pairs every waiting ticket with its best-scoring available
// staff member, drops pairs under MinSuggestionScore, and returns at most
// limit pairs ordered by priority then score. A limit <= 0 uses
// DefaultSuggestLimit.
func Suggestions(waiting []models.Ticket, available []models.Staff, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	out := make([]Suggestion, 0, len(waiting))
	for _, ticket := range waiting {
		best := Suggestion{Score: -1}
		for _, staff := range available {
			if !staff.IsAvailable {
				continue
			}
			if score := Score(ticket, staff); score > best.Score {
				best = Suggestion{Ticket: ticket, Staff: staff, Score: score}
			}
		}
		if best.Score < MinSuggestionScore {
			continue
		}
		best.Reason = reason(best.Ticket, best.Staff)
		out = append(out, best)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Ticket.Priority.Rank(), out[j].Ticket.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func reason(ticket models.Ticket, staff models.Staff) string {
	if departmentOverlap(ticket, staff) {
		return fmt.Sprintf("%s specialist available", staff.Department)
	}
	if ticket.Priority == models.PriorityUrgent || ticket.Priority == models.PriorityHigh {
		return fmt.Sprintf("Available for %s priority", ticket.Priority)
	}
	return "Available and ready to serve"
}

// An empty department never counts as overlap.
func departmentOverlap(ticket models.Ticket, staff models.Staff) bool {
	dept := strings.ToLower(strings.TrimSpace(staff.Department))
	if dept == "" {
		return false
	}
	return strings.Contains(strings.ToLower(ticket.PurposeOfVisit), dept)
}
