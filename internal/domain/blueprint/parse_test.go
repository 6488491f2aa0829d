package blueprint

import (
	"errors"
	"testing"
)

func TestParseDelta(t *testing.T) {
	raw := []byte(`{
		"appName": "Leads CRM",
		"routes": [{"path": "#/", "title": "Home", "components": [{"type": "text", "value": "hi"}]}],
		"dataModels": {"leads": {"fields": ["name", "email"]}},
		"future_key": {"ignored": true}
	}`)

	d, err := ParseDelta(raw)
	if err != nil {
		t.Fatalf("ParseDelta failed: %v", err)
	}

	if d.AppName == nil || *d.AppName != "Leads CRM" {
		t.Errorf("appName not decoded: %+v", d.AppName)
	}
	if len(d.Routes) != 1 || d.Routes[0].Components[0].Value != "hi" {
		t.Errorf("routes not decoded: %+v", d.Routes)
	}
	if _, ok := d.DataModels["leads"]; !ok {
		t.Errorf("dataModels not decoded: %+v", d.DataModels)
	}
}

func TestParseDeltaRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "{nope"},
		{"routes wrong type", `{"routes": "zap"}`},
		{"route missing path", `{"routes": [{"title": "No Path"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDelta([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedDelta) {
				t.Errorf("expected ErrMalformedDelta, got %v", err)
			}
		})
	}
}

func TestParseDeltaEmptyObject(t *testing.T) {
	d, err := ParseDelta([]byte(`{}`))
	if err != nil {
		t.Fatalf("empty object should parse: %v", err)
	}
	if !d.IsEmpty() {
		t.Errorf("empty object should yield empty delta: %+v", d)
	}
}

func TestDeltaFromBlueprint(t *testing.T) {
	b := New()
	b.AppName = "Demo"
	b.Routes = []Route{{Path: "#/"}}

	d := DeltaFromBlueprint(b)

	if d.AppName == nil || *d.AppName != "Demo" {
		t.Errorf("appName not carried: %+v", d.AppName)
	}
	if len(d.Routes) != 1 {
		t.Errorf("routes not carried: %+v", d.Routes)
	}
}
