package pipeline

import (
	"strings"
	"testing"

	"github.com/dvloznov/trade-ledger/internal/domain"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"chatter", "Here you go:\n[{\"a\":1}]\nThanks", `[{"a":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeModelOutputKeepsPrecision(t *testing.T) {
	out, err := decodeModelOutput(`[{"type":"payment","date":"2024-01-02","name":"A","amount":0.1000000001,"paymentType":"made"}]`)
	if err != nil {
		t.Fatalf("decodeModelOutput() error = %v", err)
	}
	recs, err := transformModelOutputToRecords(out)
	if err != nil {
		t.Fatalf("transformModelOutputToRecords() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Amount == nil || recs[0].Amount.String() != "0.1000000001" {
		t.Errorf("records = %+v", recs)
	}
	if recs[0].ID == "" {
		t.Error("record without id was not assigned one")
	}
}

func TestTransformModelOutputErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want string
	}{
		{"missing key", map[string]interface{}{}, "missing 'records'"},
		{"not array", map[string]interface{}{"records": "x"}, "want []interface{}"},
		{"element not object", map[string]interface{}{"records": []interface{}{1}}, "want object"},
		{"missing type", map[string]interface{}{"records": []interface{}{map[string]interface{}{}}}, `"type"`},
		{"unknown type", map[string]interface{}{"records": []interface{}{map[string]interface{}{"type": "refund"}}}, "unknown type"},
		{"bad number", map[string]interface{}{"records": []interface{}{map[string]interface{}{"type": "trade", "scaleWeight": "heavy"}}}, "decode record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transformModelOutputToRecords(tt.raw)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := map[string]string{
		"%PDF-1.7":                     "application/pdf",
		"\x89PNG\r\n":                  "image/png",
		"\xFF\xD8\xFF\xE0":             "image/jpeg",
		"RIFF\x00\x00\x00\x00WEBPVP8": "image/webp",
		"unknown":                      DefaultMimeType,
	}
	for data, want := range tests {
		if got := detectMimeType([]byte(data)); got != want {
			t.Errorf("detectMimeType(%q) = %q, want %q", data, got, want)
		}
	}
}

func TestBuildPartiesPrompt(t *testing.T) {
	prompt := buildPartiesPrompt([]*domain.Contact{
		{Name: "Zaman", Type: domain.ContactSupplier},
		{Name: "Alam", Type: domain.ContactSupplier},
		{Name: "Rahim Mills", Type: domain.ContactBuyer},
	})
	if !strings.Contains(prompt, "Suppliers:\n  - Alam\n  - Zaman\n") {
		t.Errorf("suppliers not listed in order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Buyers:\n  - Rahim Mills\n") {
		t.Errorf("buyers missing:\n%s", prompt)
	}
	if !strings.Contains(buildSlipPrompt(nil), "Suppliers:\n  (none)") {
		t.Error("empty contact list not marked")
	}
}
