package mcpserver

import "encoding/json"

// UnknownField records a parameter the caller sent that a tool doesn't
// recognize, so the response can surface it instead of silently ignoring
// it.
type UnknownField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// collectUnknownFields decodes data's top-level object keys that aren't in
// known into a warnings slice.
func collectUnknownFields(data []byte, known map[string]struct{}) ([]UnknownField, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var warnings []UnknownField
	for key, value := range raw {
		if _, ok := known[key]; ok {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			v = string(value)
		}
		warnings = append(warnings, UnknownField{Name: key, Value: v})
	}
	return warnings, nil
}

// SearchParams are search_symbols' arguments.
type SearchParams struct {
	Query       string `json:"query"`
	Kind        string `json:"kind,omitempty"`
	FilePattern string `json:"file_pattern,omitempty"`
	Max         int    `json:"max,omitempty"`

	Warnings []UnknownField `json:"-"`
}

func (p *SearchParams) UnmarshalJSON(data []byte) error {
	type alias SearchParams
	known := map[string]struct{}{"query": {}, "kind": {}, "file_pattern": {}, "max": {}}
	warnings, err := collectUnknownFields(data, known)
	if err != nil {
		return err
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = SearchParams(a)
	p.Warnings = warnings
	return nil
}

// ReferencesParams are get_references' arguments.
type ReferencesParams struct {
	Symbol        string `json:"symbol"`
	Direction     string `json:"direction,omitempty"`
	Depth         int    `json:"depth,omitempty"`
	IncludeSource bool   `json:"include_source,omitempty"`
}

// StructureParams are get_structure's arguments.
type StructureParams struct {
	PathPrefix  string `json:"path_prefix,omitempty"`
	TokenBudget int    `json:"token_budget,omitempty"`
}

// BlastRadiusParams are get_blast_radius' arguments.
type BlastRadiusParams struct {
	Symbol   string `json:"symbol"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// DataFlowParams are trace_data_flow's arguments.
type DataFlowParams struct {
	Symbol   string `json:"symbol"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// ImpactParams are change_impact's arguments.
type ImpactParams struct {
	Symbol   string `json:"symbol"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// ContextParams are get_context's arguments.
type ContextParams struct {
	Query          string   `json:"query,omitempty"`
	EntryPoints    []string `json:"entry_points,omitempty"`
	TokenBudget    int      `json:"token_budget,omitempty"`
	ExpansionDepth int      `json:"expansion_depth,omitempty"`
	SignaturesOnly bool     `json:"signatures_only,omitempty"`
}
