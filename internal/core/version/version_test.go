package version

import "testing"

func TestInfoDefaults(t *testing.T) {
	bi := Info()
	if bi.Service != "contribot" || bi.Version == "" {
		t.Fatalf("Info() = %+v", bi)
	}
}
