package config

import "testing"

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LINTMUX_JOBS", "4")
	t.Setenv("LINTMUX_MAX_ARG_LENGTH", "32KB")
	t.Setenv("LINTMUX_EXPECTED_VERSION", "v1.2.3")
	o, has, err := LoadOverrides(EnvPrefix)
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	if !has {
		t.Fatalf("expected overrides to be present")
	}
	if o.Jobs == nil || *o.Jobs != 4 {
		t.Fatalf("jobs override: %#v", o.Jobs)
	}
	cfg := Config{Settings: Settings{Jobs: 1, MaxArgLength: "1MB", Timeout: "10s"}}
	o.Apply(&cfg)
	if cfg.Settings.Jobs != 4 || cfg.Settings.MaxArgLength != "32KB" || cfg.Settings.Timeout != "10s" {
		t.Fatalf("unexpected settings after apply: %#v", cfg.Settings)
	}
	if o.ExpectedVersion != "v1.2.3" {
		t.Fatalf("expected version override: %q", o.ExpectedVersion)
	}
}

func TestLoadOverridesInvalid(t *testing.T) {
	t.Setenv("LINTMUX_JOBS", "many")
	if _, _, err := LoadOverrides(EnvPrefix); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadOverridesNone(t *testing.T) {
	_, has, err := LoadOverrides("LINTMUX_TEST_NOTHING_")
	if err != nil || has {
		t.Fatalf("expected no overrides, got has=%v err=%v", has, err)
	}
}

func TestSplitCodes(t *testing.T) {
	got := SplitCodes([]string{"FLAKE8, MYPY", "MYPY", " ", "CLANG"})
	want := []string{"FLAKE8", "MYPY", "CLANG"}
	if len(got) != len(want) {
		t.Fatalf("unexpected codes: %#v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected codes: %#v", got)
		}
	}
}
