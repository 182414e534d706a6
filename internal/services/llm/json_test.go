package llm

import "testing"

func TestDecodeJSONTolerance(t *testing.T) {
	cases := map[string]string{
		"plain":      `{"topics":["a"]}`,
		"fenced":     "```json\n{\"topics\":[\"a\"]}\n```",
		"bare fence": "```\n{\"topics\":[\"a\"]}\n```",
		"with prose": "Here is the outline:\n{\"topics\":[\"a\"]}\nThanks",
		"uppercase":  "```JSON\n{\"topics\":[\"a\"]}\n```",
	}
	for name, payload := range cases {
		var out struct {
			Topics []string `json:"topics"`
		}
		if err := DecodeJSON(payload, &out); err != nil {
			t.Fatalf("%s: DecodeJSON returned error: %v", name, err)
		}
		if len(out.Topics) != 1 || out.Topics[0] != "a" {
			t.Fatalf("%s: unexpected topics %v", name, out.Topics)
		}
	}
}

func TestDecodeJSONArray(t *testing.T) {
	var out []map[string]string
	if err := DecodeJSON("result: [{\"text\":\"x\"}]", &out); err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	if len(out) != 1 || out[0]["text"] != "x" {
		t.Fatalf("unexpected payload %v", out)
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if err := DecodeJSON("no json here", &out); err == nil {
		t.Fatal("expected error for prose payload")
	}
}

func TestStripCodeFence(t *testing.T) {
	if got := StripCodeFence("```markdown\n# Title\nbody\n```"); got != "# Title\nbody" {
		t.Fatalf("unexpected stripped content %q", got)
	}
	if got := StripCodeFence("plain"); got != "plain" {
		t.Fatalf("unexpected content %q", got)
	}
}
