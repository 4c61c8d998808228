package config

import (
	"reflect"
	"testing"
)

func TestParseStringSlice(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"http://localhost:3000", []string{"http://localhost:3000"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{"a, b , c", []string{"a", "b", "c"}},
		{"a,,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		got := parseStringSlice(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseStringSlice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
