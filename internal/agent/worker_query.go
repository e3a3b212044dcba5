package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// queryMaxSlots caps how many open slots one availability answer lists.
const queryMaxSlots = 10

// QueryWorker answers availability questions. Doctor and date narrow the
// search when present; otherwise it walks the whole roster over the coming
// week.
type QueryWorker struct {
	store  schedstore.Store
	logger *logging.Logger
}

func NewQueryWorker(store schedstore.Store, logger *logging.Logger) *QueryWorker {
	if store == nil {
		panic("agent: store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &QueryWorker{store: store, logger: logger}
}

// Availability lists open slots matching whatever slots st carries.
func (w *QueryWorker) Availability(ctx context.Context, st SessionState, now time.Time) (WorkerResult, error) {
	var doctors []schedstore.Doctor
	if st.Slots.Doctor != "" {
		doc, err := w.store.FindDoctor(ctx, st.Slots.Doctor)
		if errors.Is(err, schedstore.ErrNotFound) {
			return WorkerResult{
				Outcome:    OutcomeNotFound,
				FailedSlot: SlotDoctor,
				Message:    fmt.Sprintf("I couldn't find a doctor matching %q. We have Dr. Adams (General Medicine), Dr. Baker (Pediatrics), Dr. Clark (Dermatology), and Dr. Davis (Endocrinology).", st.Slots.Doctor),
			}, nil
		}
		if err != nil {
			return WorkerResult{}, fmt.Errorf("agent: find doctor: %w", err)
		}
		doctors = []schedstore.Doctor{*doc}
	} else {
		all, err := w.store.ListDoctors(ctx)
		if err != nil {
			return WorkerResult{}, fmt.Errorf("agent: list doctors: %w", err)
		}
		doctors = all
	}

	dates, err := w.searchDates(st.Slots.Date, now)
	if err != nil {
		return WorkerResult{
			Outcome:    OutcomeNeedDate,
			FailedSlot: SlotDate,
			Message:    "I couldn't make sense of that date. Which day did you mean?",
		}, nil
	}

	type open struct {
		doctor schedstore.Doctor
		date   string
		times  []string
	}
	var found []open
	total := 0
	for _, date := range dates {
		for _, doc := range doctors {
			if total >= queryMaxSlots {
				break
			}
			var times []string
			for _, t := range schedstore.StandardSlotTimes {
				if slot, err := schedstore.SlotTime(date, t); err == nil && slot.Before(now) {
					continue
				}
				free, err := w.store.IsSlotAvailable(ctx, doc.ID, date, t)
				if err != nil {
					return WorkerResult{}, fmt.Errorf("agent: check slot: %w", err)
				}
				if free {
					times = append(times, t)
					total++
					if total >= queryMaxSlots {
						break
					}
				}
			}
			if len(times) > 0 {
				found = append(found, open{doctor: doc, date: date, times: times})
			}
		}
	}

	if len(found) == 0 {
		return WorkerResult{
			Outcome: OutcomeAvailability,
			Message: "I don't see any open slots matching that. Would you like me to look further out?",
		}, nil
	}

	var b strings.Builder
	b.WriteString("Here's what's open:")
	for _, o := range found {
		pretty := make([]string, len(o.times))
		for i, t := range o.times {
			pretty[i] = FormatTime(t)
		}
		fmt.Fprintf(&b, "\n- %s (%s) on %s: %s", o.doctor.Name, o.doctor.Specialty, FormatDate(o.date), strings.Join(pretty, ", "))
	}
	return WorkerResult{Outcome: OutcomeAvailability, Message: b.String()}, nil
}

// searchDates picks the weekdays to scan: the requested date plus the next
// two weekdays when a date was given, otherwise the next seven weekdays.
func (w *QueryWorker) searchDates(date string, now time.Time) ([]string, error) {
	start := now
	want := 7
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, err
		}
		start = d
		want = 3
	}

	var out []string
	for i := 0; len(out) < want && i < want*3; i++ {
		d := start.AddDate(0, 0, i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d.Format("2006-01-02"))
	}
	return out, nil
}
