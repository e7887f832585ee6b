package version

import "testing"

func TestString(t *testing.T) {
	if got := String(); got != "dev (unknown, unknown)" {
		t.Errorf("String() = %q", got)
	}
	if got := len(Fields()); got != 3 {
		t.Errorf("fields = %d, want 3", got)
	}
}
