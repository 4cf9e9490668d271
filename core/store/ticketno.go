package store

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// MaxTicketNumberAttempts bounds collision retries when issuing ticket and
// appointment numbers.
const MaxTicketNumberAttempts = 16

// NewTicketNumber formats a visitor ticket number: "V", the last six digits
// of the unix millisecond clock, then three random digits.
func NewTicketNumber(now time.Time) string {
	return fmt.Sprintf("V%06d%03d", now.UnixMilli()%1_000_000, rand.IntN(1000))
}

// NewAppointmentNumber uses the ticket layout with an "APT" prefix.
func NewAppointmentNumber(now time.Time) string {
	return fmt.Sprintf("APT%06d%03d", now.UnixMilli()%1_000_000, rand.IntN(1000))
}
