package blueprint

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrMalformedDelta marks a delta that failed structural validation. It is
// surfaced before any merge is attempted so a bad request never touches
// session history.
var ErrMalformedDelta = errors.New("malformed delta")

// Delta is a partial Blueprint. Pointer scalars distinguish "absent" from
// "set to empty"; absent fields leave the base untouched. Unrecognized
// top-level keys in the incoming JSON are ignored, not rejected.
type Delta struct {
	AppName    *string              `json:"appName"`
	UITheme    *Theme               `json:"uiTheme"`
	Routes     []Route              `json:"routes"`
	DataModels map[string]DataModel `json:"dataModels"`
	SampleData map[string][]Record  `json:"sampleData"`
}

// IsEmpty reports whether the delta would change nothing structurally.
func (d Delta) IsEmpty() bool {
	return d.AppName == nil && d.UITheme == nil &&
		len(d.Routes) == 0 && len(d.DataModels) == 0 && len(d.SampleData) == 0
}

// ParseDelta decodes and validates a raw delta payload.
func ParseDelta(raw []byte) (Delta, error) {
	if len(raw) == 0 {
		return Delta{}, fmt.Errorf("%w: empty payload", ErrMalformedDelta)
	}

	var d Delta
	if err := sonic.ConfigStd.Unmarshal(raw, &d); err != nil {
		return Delta{}, fmt.Errorf("%w: %v", ErrMalformedDelta, err)
	}

	for i, r := range d.Routes {
		if r.Path == "" {
			return Delta{}, fmt.Errorf("%w: routes[%d] is missing a path", ErrMalformedDelta, i)
		}
	}
	return d, nil
}

// DeltaFromBlueprint converts a full blueprint into an equivalent delta.
// Used by the proposer contract, which returns complete partial blueprints.
func DeltaFromBlueprint(b Blueprint) Delta {
	d := Delta{
		Routes:     b.Routes,
		DataModels: b.DataModels,
		SampleData: b.SampleData,
	}
	if b.AppName != "" {
		name := b.AppName
		d.AppName = &name
	}
	if b.UITheme != "" {
		theme := b.UITheme
		d.UITheme = &theme
	}
	return d
}

// canonical returns a deterministic JSON encoding used as an identity key
// for items without a natural identity field. ConfigStd sorts map keys, so
// structurally equal values share a key.
func canonical(v interface{}) string {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}
