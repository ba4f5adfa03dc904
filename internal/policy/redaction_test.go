package policy

import "testing"

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("short"); got != "****" {
		t.Fatalf("MaskSecret(short) = %q, want %q", got, "****")
	}
	if got := MaskSecret("sk-1234567890abcd"); got != "****abcd" {
		t.Fatalf("MaskSecret(long) = %q, want %q", got, "****abcd")
	}
	if got := MaskSecret(""); got != "****" {
		t.Fatalf("MaskSecret(empty) = %q, want %q", got, "****")
	}
}

func TestRedactBodyMasksNestedTokens(t *testing.T) {
	body := map[string]any{
		"data": map[string]any{
			"session_id":   "sess-1",
			"access_token": "eyJhbGciOiJIUzI1NiJ9.secret",
			"token":        "tok-1234567890",
		},
		"items": []any{
			map[string]any{"api_token": "inner-token-value"},
		},
	}

	out := RedactBody(body)

	data := out["data"].(map[string]any)
	if data["session_id"] != "sess-1" {
		t.Fatalf("session_id changed: %v", data["session_id"])
	}
	if data["access_token"] == body["data"].(map[string]any)["access_token"] {
		t.Fatalf("access_token not masked: %v", data["access_token"])
	}
	if data["token"] != "****7890" {
		t.Fatalf("token = %v, want masked suffix", data["token"])
	}
	inner := out["items"].([]any)[0].(map[string]any)
	if inner["api_token"] != "****alue" {
		t.Fatalf("api_token = %v, want masked", inner["api_token"])
	}

	// The input must not be mutated.
	if body["data"].(map[string]any)["token"] != "tok-1234567890" {
		t.Fatalf("input body mutated")
	}
}

func TestRedactBodyNil(t *testing.T) {
	if RedactBody(nil) != nil {
		t.Fatalf("RedactBody(nil) should be nil")
	}
}
