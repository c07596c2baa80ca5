package terraform

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the decoded output of terraform show -json.
type State struct {
	FormatVersion    string       `json:"format_version"`
	TerraformVersion string       `json:"terraform_version,omitempty"`
	Values           *StateValues `json:"values,omitempty"`
}

// StateValues holds the root module and its outputs.
type StateValues struct {
	Outputs    map[string]StateOutput `json:"outputs,omitempty"`
	RootModule *StateModule           `json:"root_module,omitempty"`
}

// StateOutput is one named output value.
type StateOutput struct {
	Value     json.RawMessage `json:"value"`
	Sensitive bool            `json:"sensitive,omitempty"`
}

// StateModule is a module instance with its resources and children.
type StateModule struct {
	Address      string          `json:"address,omitempty"`
	Resources    []StateResource `json:"resources,omitempty"`
	ChildModules []StateModule   `json:"child_modules,omitempty"`
}

// StateResource is one managed or data resource in the state.
type StateResource struct {
	Address string         `json:"address"`
	Mode    string         `json:"mode"`
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Values  map[string]any `json:"values,omitempty"`
}

// ID returns the provider-assigned id, or "" when the resource has none.
func (r StateResource) ID() string {
	id, _ := r.Values["id"].(string)
	return id
}

// DecodeState parses terraform show -json output. An empty document (a fresh
// workspace prints "{}") decodes to a state with no values.
func DecodeState(raw string) (*State, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &State{}, nil
	}
	var state State
	if err := json.Unmarshal([]byte(trimmed), &state); err != nil {
		return nil, fmt.Errorf("failed to decode terraform state: %w", err)
	}
	return &state, nil
}

// AllResources walks the module tree and returns every managed resource.
func (s *State) AllResources() []StateResource {
	if s == nil || s.Values == nil || s.Values.RootModule == nil {
		return nil
	}
	var out []StateResource
	var walk func(m *StateModule)
	walk = func(m *StateModule) {
		for _, r := range m.Resources {
			if r.Mode == "" || r.Mode == "managed" {
				out = append(out, r)
			}
		}
		for i := range m.ChildModules {
			walk(&m.ChildModules[i])
		}
	}
	walk(s.Values.RootModule)
	return out
}

// Empty reports whether the state tracks no resources.
func (s *State) Empty() bool {
	return len(s.AllResources()) == 0
}
