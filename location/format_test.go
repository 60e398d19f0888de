package location

import "testing"

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			name: "full chain prefers area city district",
			addr: Address{
				Suburb:        "Indiranagar",
				City:          "Bengaluru",
				StateDistrict: "Bangalore Urban",
				State:         "Karnataka",
			},
			want: "Indiranagar, Bengaluru, Bangalore Urban",
		},
		{
			name: "no area falls to city district",
			addr: Address{
				City:   "Bengaluru",
				County: "Bangalore Urban",
				State:  "Karnataka",
			},
			want: "Bengaluru, Bangalore Urban",
		},
		{
			name: "no district falls to city state",
			addr: Address{
				City:  "Bengaluru",
				State: "Karnataka",
			},
			want: "Bengaluru, Karnataka",
		},
		{
			name: "city alone",
			addr: Address{City: "Bengaluru"},
			want: "Bengaluru",
		},
		{
			name: "town counts as city",
			addr: Address{Town: "Udupi", State: "Karnataka"},
			want: "Udupi, Karnataka",
		},
		{
			name: "village counts as both area and city without doubling",
			addr: Address{
				Village:       "Agonda",
				StateDistrict: "South Goa",
			},
			want: "Agonda, South Goa",
		},
		{
			name: "neighbourhood when no suburb",
			addr: Address{
				Neighbourhood: "Koramangala 4th Block",
				City:          "Bengaluru",
				County:        "Bangalore Urban",
			},
			want: "Koramangala 4th Block, Bengaluru, Bangalore Urban",
		},
		{
			name: "area without city yields nothing",
			addr: Address{Suburb: "Indiranagar"},
			want: "",
		},
		{
			name: "state alone yields nothing",
			addr: Address{State: "Karnataka"},
			want: "",
		},
		{
			name: "empty address",
			addr: Address{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAddress(tt.addr); got != tt.want {
				t.Errorf("FormatAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyAccuracy(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want Accuracy
	}{
		{"house number", Address{HouseNumber: "12", City: "Bengaluru"}, AccuracyStreet},
		{"road only", Address{Road: "100 Feet Road"}, AccuracyStreet},
		{"suburb", Address{Suburb: "Indiranagar", City: "Bengaluru"}, AccuracyArea},
		{"city only", Address{City: "Bengaluru"}, AccuracyCity},
		{"town only", Address{Town: "Udupi"}, AccuracyCity},
		{"nothing usable", Address{State: "Karnataka"}, AccuracyApproximate},
		{"empty", Address{}, AccuracyApproximate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyAccuracy(tt.addr); got != tt.want {
				t.Errorf("ClassifyAccuracy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoordinates(t *testing.T) {
	if got := Coordinates(12.97161, 77.59456); got != "12.9716, 77.5946" {
		t.Errorf("Coordinates() = %q", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateResolvingIP, "resolving-ip"},
		{StateResolvingGPS, "resolving-gps"},
		{StateResolved, "resolved"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
