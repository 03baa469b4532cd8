package bot

import "testing"

func TestParseDaysArg(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		want      int
		wantError bool
	}{
		{name: "empty yields default", args: "", want: 7},
		{name: "whitespace yields default", args: "   ", want: 7},
		{name: "valid number", args: "14", want: 14},
		{name: "first field wins", args: "3 extra", want: 3},
		{name: "lower bound", args: "1", want: 1},
		{name: "upper bound", args: "30", want: 30},
		{name: "zero rejected", args: "0", wantError: true},
		{name: "negative rejected", args: "-2", wantError: true},
		{name: "above max rejected", args: "31", wantError: true},
		{name: "garbage rejected", args: "week", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDaysArg(tt.args, 7, 30)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %q", tt.args)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseDaysArg(%q): %v", tt.args, err)
				return
			}
			if got != tt.want {
				t.Errorf("ParseDaysArg(%q) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}
