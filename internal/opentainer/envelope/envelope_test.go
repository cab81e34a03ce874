package envelope

import (
	"encoding/json"
	"testing"
)

func TestOK(t *testing.T) {
	resp := OK(42)
	if !resp.Success {
		t.Error("OK: success must be true")
	}
	if resp.Data != 42 {
		t.Errorf("OK: data = %v, want 42", resp.Data)
	}
	if resp.Error != "" {
		t.Errorf("OK: error = %q, want empty", resp.Error)
	}
}

func TestEmpty(t *testing.T) {
	resp := Empty()
	if !resp.Success {
		t.Error("Empty: success must be true")
	}
	if resp.Data != nil {
		t.Errorf("Empty: data = %v, want nil", resp.Data)
	}
	if resp.Error != "" {
		t.Errorf("Empty: error = %q, want empty", resp.Error)
	}
}

func TestErr(t *testing.T) {
	resp := Err("x")
	if resp.Success {
		t.Error("Err: success must be false")
	}
	if resp.Data != nil {
		t.Errorf("Err: data = %v, want nil", resp.Data)
	}
	if resp.Error != "x" {
		t.Errorf("Err: error = %q, want %q", resp.Error, "x")
	}
}

// The UI depends on absent (not null) data/error fields, so the JSON
// rendering matters as much as the struct values.
func TestJSONShape(t *testing.T) {
	cases := []struct {
		name string
		resp Response
		want string
	}{
		{"ok", OK("hi"), `{"success":true,"data":"hi"}`},
		{"empty", Empty(), `{"success":true}`},
		{"err", Err("boom"), `{"success":false,"error":"boom"}`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.resp)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		if string(raw) != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, raw, tc.want)
		}
	}
}
