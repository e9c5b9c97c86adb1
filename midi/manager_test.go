package midi

import "testing"

func TestMatchPort(t *testing.T) {
	tests := []struct {
		name      string
		port      string
		preferred []string
		want      bool
	}{
		{"any port", "Arturia KeyStep 32", nil, true},
		{"through excluded", "Midi Through Port-0", nil, false},
		{"preferred match", "Arturia KeyStep 32", []string{"keystep"}, true},
		{"preferred miss", "nanoKEY2", []string{"keystep"}, false},
		{"excluded wins", "Dummy KeyStep", []string{"keystep"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPort(tt.port, tt.preferred, DefaultExcluded); got != tt.want {
				t.Errorf("MatchPort(%q, %v) = %v, want %v", tt.port, tt.preferred, got, tt.want)
			}
		})
	}
}
