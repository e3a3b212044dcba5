package agent

import "testing"

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		st   SessionState
		ext  Extraction
		want SessionState
	}{
		{
			name: "first turn sets kind and slots",
			st:   SessionState{Kind: IntentUnknown},
			ext:  Extraction{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
			want: SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
		},
		{
			name: "empty values never erase",
			st:   SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark", Date: "2025-09-01"}},
			ext:  Extraction{Kind: IntentBook, Slots: Slots{Time: "14:00"}},
			want: SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark", Date: "2025-09-01", Time: "14:00"}},
		},
		{
			name: "non-empty overwrites",
			st:   SessionState{Kind: IntentBook, Slots: Slots{Time: "14:00"}},
			ext:  Extraction{Kind: IntentBook, Slots: Slots{Time: "15:00"}},
			want: SessionState{Kind: IntentBook, Slots: Slots{Time: "15:00"}},
		},
		{
			name: "unknown kind preserves pending intent",
			st:   SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
			ext:  Extraction{Kind: IntentUnknown, Slots: Slots{PatientID: "PVY3830"}},
			want: SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark", PatientID: "PVY3830"}},
		},
		{
			name: "greeting never displaces an actionable intent",
			st:   SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
			ext:  Extraction{Kind: IntentGreeting},
			want: SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
		},
		{
			name: "greeting lands when nothing is pending",
			st:   SessionState{Kind: IntentUnknown},
			ext:  Extraction{Kind: IntentGreeting},
			want: SessionState{Kind: IntentGreeting},
		},
		{
			name: "new actionable intent replaces the old one",
			st:   SessionState{Kind: IntentBook, Slots: Slots{PatientID: "PVY3830"}},
			ext:  Extraction{Kind: IntentCancel},
			want: SessionState{Kind: IntentCancel, Slots: Slots{PatientID: "PVY3830"}},
		},
		{
			name: "empty extraction is a no-op",
			st:   SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
			ext:  Extraction{},
			want: SessionState{Kind: IntentBook, Slots: Slots{Doctor: "Dr. Clark"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.st
			Merge(&st, tt.ext)
			if st.Kind != tt.want.Kind {
				t.Errorf("kind = %q, want %q", st.Kind, tt.want.Kind)
			}
			if st.Slots != tt.want.Slots {
				t.Errorf("slots = %+v, want %+v", st.Slots, tt.want.Slots)
			}
		})
	}
}

func TestFirstMissingSlot(t *testing.T) {
	tests := []struct {
		name string
		st   SessionState
		want Slot
	}{
		{"book needs patient first", SessionState{Kind: IntentBook}, SlotPatientID},
		{"book asks in priority order", SessionState{Kind: IntentBook, Slots: Slots{PatientID: "PVY3830", Time: "14:00"}}, SlotDoctor},
		{"book complete", SessionState{Kind: IntentBook, Slots: Slots{PatientID: "PVY3830", Doctor: "Dr. Clark", Date: "2025-09-01", Time: "14:00"}}, ""},
		{"cancel needs only patient", SessionState{Kind: IntentCancel, Slots: Slots{PatientID: "PVY3830"}}, ""},
		{"reschedule needs a new date or time", SessionState{Kind: IntentReschedule, Slots: Slots{PatientID: "PVY3830"}}, SlotDate},
		{"reschedule satisfied by time alone", SessionState{Kind: IntentReschedule, Slots: Slots{PatientID: "PVY3830", Time: "15:00"}}, ""},
		{"query needs nothing", SessionState{Kind: IntentQuery}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstMissingSlot(tt.st); got != tt.want {
				t.Errorf("firstMissingSlot = %q, want %q", got, tt.want)
			}
		})
	}
}
