package version

import "testing"

func TestGet(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	got := Get()
	if got.Version != "v1.2.3" || got.GitSHA != GitSHA {
		t.Errorf("Get() = %+v", got)
	}
	if want := "openbci v1.2.3 (unknown, built unknown)"; got.String() != want {
		t.Errorf("String() = %q, want %q", got.String(), want)
	}
}
