package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Setenv("UTIL_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("UTIL_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestParseBoolEnv_Unset(t *testing.T) {
	if got := ParseBoolEnv("UTIL_TEST_BOOL_UNSET", true); !got {
		t.Error("expected default true for unset variable")
	}
	if got := ParseBoolEnv("UTIL_TEST_BOOL_UNSET", false); got {
		t.Error("expected default false for unset variable")
	}
}
