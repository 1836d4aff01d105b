package hotkey

import (
	"reflect"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"", DefaultCombo, false},
		{"shift+f12", []string{"shift", "f12"}, false},
		{"Ctrl + Alt + R", []string{"ctrl", "alt", "r"}, false},
		{"q", []string{"q"}, false},
		{"shift++f12", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseCombo(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCombo(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCombo(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
