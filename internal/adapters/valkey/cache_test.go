package valkey

import "testing"

func TestKeyspace(t *testing.T) {
	tests := map[string]string{
		"pins:list:3:abcd": "pins:list",
		"pins:gen":         "pins:gen",
		"plain":            "plain",
	}
	for key, want := range tests {
		if got := keyspace(key); got != want {
			t.Errorf("keyspace(%q) = %q, want %q", key, got, want)
		}
	}
}
