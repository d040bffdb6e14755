// Package analysis defines the analysis document shared between the editor
// and the API server, together with evaluation status snapshots and the
// fixed option tables offered for FAST inputs.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/matthewbaird/acdc/internal/form"
)

// Document is the remote analysis being edited. Model holds one input
// object per simulation module ("FAST", "ElastoDyn", ...) keyed by module
// name; its contents are interpreted through a form.Schema.
type Document struct {
	ID             string                     `json:"ID,omitempty"`
	Name           string                     `json:"Name"`
	ModelPath      string                     `json:"ModelPath"`
	ModelPathValid bool                       `json:"ModelPathValid"`
	ExecPath       string                     `json:"ExecPath"`
	ExecPathValid  bool                       `json:"ExecPathValid"`
	NumCPUs        int                        `json:"NumCPUs"`
	Conditions     []ConditionEntry           `json:"Conditions"`
	Model          map[string]json.RawMessage `json:"Model,omitempty"`
	Turbine        json.RawMessage            `json:"Turbine,omitempty"`
	Viz            json.RawMessage            `json:"Viz,omitempty"`
	Campbell       json.RawMessage            `json:"Campbell,omitempty"`
}

// New returns the document a fresh editor starts from.
func New() *Document {
	return &Document{
		NumCPUs:    1,
		Conditions: []ConditionEntry{},
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Conditions = append([]ConditionEntry{}, d.Conditions...)
	if d.Model != nil {
		out.Model = make(map[string]json.RawMessage, len(d.Model))
		for k, v := range d.Model {
			out.Model[k] = cloneRaw(v)
		}
	}
	out.Turbine = cloneRaw(d.Turbine)
	out.Viz = cloneRaw(d.Viz)
	out.Campbell = cloneRaw(d.Campbell)
	return &out
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage{}, r...)
}

// Merge overlays a JSON document onto d. Keys absent from data keep their
// current value; Model entries are merged per module.
func (d *Document) Merge(data []byte) error {
	if err := json.Unmarshal(data, d); err != nil {
		return fmt.Errorf("analysis: merging document: %w", err)
	}
	if d.Conditions == nil {
		d.Conditions = []ConditionEntry{}
	}
	return nil
}

// Decode parses a complete document.
func Decode(data []byte) (*Document, error) {
	d := &Document{}
	if err := d.Merge(data); err != nil {
		return nil, err
	}
	return d, nil
}

// Inputs decodes the input object of one model module. A missing module
// yields an empty set.
func (d *Document) Inputs(module string) (*form.InputSet, error) {
	in := form.NewInputSet()
	raw, ok := d.Model[module]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return in, nil
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, fmt.Errorf("analysis: module %s: %w", module, err)
	}
	return in, nil
}

// SetInputs stores the input object of one model module.
func (d *Document) SetInputs(module string, in *form.InputSet) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("analysis: module %s: %w", module, err)
	}
	if d.Model == nil {
		d.Model = make(map[string]json.RawMessage)
	}
	d.Model[module] = raw
	return nil
}

// Modules returns the module names present in Model, sorted.
func (d *Document) Modules() []string {
	out := make([]string, 0, len(d.Model))
	for k := range d.Model {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PathKind selects which document path a validation refers to.
type PathKind string

const (
	PathModel PathKind = "model"
	PathExec  PathKind = "exec"
)

// PathFor returns the document path of the given kind.
func (d *Document) PathFor(kind PathKind) (string, error) {
	switch kind {
	case PathModel:
		return d.ModelPath, nil
	case PathExec:
		return d.ExecPath, nil
	}
	return "", fmt.Errorf("analysis: unknown path kind %q", kind)
}
