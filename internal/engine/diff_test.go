package engine

import (
	"reflect"
	"testing"
)

func TestNewEvents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		events      []string
		lastEvent   string
		resendLimit int
		want        []string
	}{
		{
			name:   "first tick resends everything",
			events: []string{"0", "1", "4"},
			want:   []string{"0", "1", "4"},
		},
		{
			name:      "suffix after last event",
			events:    []string{"0", "1", "4", "W", "6"},
			lastEvent: "4",
			want:      []string{"W", "6"},
		},
		{
			name:      "last event is newest means nothing new",
			events:    []string{"0", "1", "4"},
			lastEvent: "4",
			want:      []string{},
		},
		{
			name:      "duplicate events anchor on first occurrence",
			events:    []string{"1", "4", "1", "6"},
			lastEvent: "1",
			want:      []string{"4", "1", "6"},
		},
		{
			name:      "last event vanished triggers full resend",
			events:    []string{"2", "3"},
			lastEvent: "4",
			want:      []string{"2", "3"},
		},
		{
			name:        "full resend capped to newest",
			events:      []string{"a", "b", "c", "d", "e"},
			lastEvent:   "gone",
			resendLimit: 2,
			want:        []string{"d", "e"},
		},
		{
			name:        "cap not applied to normal suffix",
			events:      []string{"a", "b", "c", "d", "e"},
			lastEvent:   "a",
			resendLimit: 2,
			want:        []string{"b", "c", "d", "e"},
		},
		{
			name:      "empty upstream list",
			events:    nil,
			lastEvent: "4",
			want:      nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NewEvents(tc.events, tc.lastEvent, tc.resendLimit)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NewEvents() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseOvers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		over    int
		ball    int
		wantErr bool
	}{
		{in: "12.5", over: 12, ball: 5},
		{in: "0.1", over: 0, ball: 1},
		{in: "20", over: 20, ball: 0},
		{in: " 7.3 ", over: 7, ball: 3},
		{in: "", wantErr: true},
		{in: "N/A", wantErr: true},
		{in: "12.x", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			over, ball, err := ParseOvers(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseOvers(%q) expected error, got %d.%d", tc.in, over, ball)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOvers(%q): %v", tc.in, err)
			}
			if over != tc.over || ball != tc.ball {
				t.Fatalf("ParseOvers(%q) = %d, %d, want %d, %d", tc.in, over, ball, tc.over, tc.ball)
			}
		})
	}
}
