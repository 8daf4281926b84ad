package db

import "testing"

func TestEnsureDSNParam(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"app.db", "app.db?_cslike=1"},
		{"app.db?_fk=1", "app.db?_fk=1&_cslike=1"},
		{"app.db?_cslike=0", "app.db?_cslike=0"},
	}
	for _, tc := range tests {
		if got := ensureDSNParam(tc.dsn, "_cslike", "1"); got != tc.want {
			t.Fatalf("ensureDSNParam(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
	if got := ensureForeignKeysEnabledDSN("app.db"); got != "app.db?_fk=1" {
		t.Fatalf("foreign keys dsn = %q", got)
	}
}
