package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/schedstore"
)

// WorkerResult is what a worker hands back to the dispatcher: a structured
// outcome, the user-facing message, and enough context for the dispatcher to
// decide what session state to keep. FailedSlot names the slot whose value
// caused a not_found or conflict so the dispatcher can clear just that slot
// and re-prompt.
type WorkerResult struct {
	Outcome    Outcome
	Message    string
	FailedSlot Slot

	Appointment *schedstore.Appointment
	Patient     *schedstore.Patient
	Doctor      *schedstore.Doctor
}

type slotSuggestion struct {
	Date string
	Time string
}

// suggestAlternatives finds up to limit open slots for the doctor, starting
// with the requested day and walking forward over weekdays. Slots earlier
// than now are never offered.
func suggestAlternatives(ctx context.Context, store schedstore.Store, doctorID int, fromDate string, now time.Time, limit int) ([]slotSuggestion, error) {
	day, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return nil, fmt.Errorf("agent: parse date %q: %w", fromDate, err)
	}

	var out []slotSuggestion
	// A two-week window is always enough to fill three suggestions on an
	// open calendar.
	for i := 0; i < 14 && len(out) < limit; i++ {
		d := day.AddDate(0, 0, i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		ds := d.Format("2006-01-02")
		for _, t := range schedstore.StandardSlotTimes {
			if slot, err := schedstore.SlotTime(ds, t); err == nil && slot.Before(now) {
				continue
			}
			free, err := store.IsSlotAvailable(ctx, doctorID, ds, t)
			if err != nil {
				return nil, err
			}
			if free {
				out = append(out, slotSuggestion{Date: ds, Time: t})
				if len(out) >= limit {
					break
				}
			}
		}
	}
	return out, nil
}

func formatSuggestions(sugg []slotSuggestion) string {
	if len(sugg) == 0 {
		return ""
	}
	s := "Here are some open alternatives:"
	for _, alt := range sugg {
		s += fmt.Sprintf("\n- %s at %s", FormatDate(alt.Date), FormatTime(alt.Time))
	}
	return s
}

func isWeekend(date string) bool {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
