package auth

import (
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"empty token", "Bearer ", "", true},
		{"whitespace token", "Bearer    ", "", true},
		{"padded token", "Bearer  abc123 ", "abc123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	tokens := []TokenConfig{
		{Token: "tok-alice", UserID: "alice", Scopes: []string{"execute"}},
		{Token: "tok-ops", UserID: "ops", Scopes: []string{"audit:ro", "events:ro"}},
	}

	p, ok := Authenticate("tok-alice", "master-key", tokens)
	if !ok || p.UserID != "alice" {
		t.Fatalf("expected alice, got %+v ok=%v", p, ok)
	}
	if !HasAnyScope(p, "execute") || HasAnyScope(p, "audit:ro") {
		t.Fatalf("scope mismatch: %+v", p.Scopes)
	}

	p, ok = Authenticate("master-key", "master-key", tokens)
	if !ok || p.UserID != "admin" || !HasAnyScope(p, "anything") {
		t.Fatalf("legacy key must grant admin with full scope: %+v", p)
	}

	if _, ok = Authenticate("wrong", "master-key", tokens); ok {
		t.Fatal("unknown token must fail")
	}
	if _, ok = Authenticate("", "", nil); ok {
		t.Fatal("empty token must never authenticate")
	}
}

func TestHasAnyScope(t *testing.T) {
	t.Parallel()

	p := Principal{UserID: "u", Scopes: map[string]struct{}{"execute": {}}}
	if !HasAnyScope(p) {
		t.Fatal("no required scopes means allowed")
	}
	if !HasAnyScope(p, "audit:ro", "execute") {
		t.Fatal("any matching scope should pass")
	}
	if HasAnyScope(p, "audit:ro") {
		t.Fatal("missing scope must fail")
	}
}
