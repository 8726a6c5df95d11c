package service

import (
	"sort"

	"tablereader/internal/read"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// ColumnInfo describes one raw column and what the transformation does
// with it.
type ColumnInfo struct {
	OriginalName string `json:"originalName"`
	Name         string `json:"name"`
	ExternalType string `json:"externalType"`
	HasType      bool   `json:"hasType"`
	Destination  string `json:"destination"`
	Path         string `json:"path"`
	Keep         bool   `json:"keep"`
	Position     int    `json:"position"`
	InAllSources bool   `json:"inAllSources"`
}

// OutputColumnInfo is one column of the produced table.
type OutputColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	OriginalName string `json:"originalName"`
	ExternalType string `json:"externalType"`
}

// SourceSpecInfo is the spec read from one item.
type SourceSpecInfo struct {
	Item    string   `json:"item"`
	Columns []string `json:"columns"`
}

// NodeSpec is the configured shape of a read.
type NodeSpec struct {
	NodeID       string             `json:"nodeId,omitempty"`
	FilterMode   string             `json:"filterMode"`
	EnforceTypes bool               `json:"enforceTypes"`
	Union        []string           `json:"union"`
	Intersection []string           `json:"intersection"`
	Sources      []SourceSpecInfo   `json:"sources"`
	Columns      []ColumnInfo       `json:"columns"`
	Output       []OutputColumnInfo `json:"output"`
}

func newNodeSpec(nodeID string, c *read.TableSpecConfig) (*NodeSpec, error) {
	out, err := c.OutputColumns()
	if err != nil {
		return nil, err
	}
	tt := c.Transformation()
	raw := c.RawSpec()
	v := &NodeSpec{
		NodeID:       nodeID,
		FilterMode:   string(tt.FilterMode()),
		EnforceTypes: tt.EnforceTypes(),
		Union:        specStrings(raw.Union),
		Intersection: specStrings(raw.Intersection),
		Output:       outputColumnInfos(out),
	}
	for _, item := range c.SourceGroup().Items {
		spec, _ := c.Spec(item)
		v.Sources = append(v.Sources, SourceSpecInfo{Item: item, Columns: specStrings(spec)})
	}
	for _, col := range tt.Columns() {
		v.Columns = append(v.Columns, ColumnInfo{
			OriginalName: col.OriginalName(),
			Name:         col.Name,
			ExternalType: string(col.ExternalSpec.Type),
			HasType:      col.ExternalSpec.HasType,
			Destination:  string(col.Path.Destination),
			Path:         col.Path.Key(),
			Keep:         col.Keep,
			Position:     col.Position,
			InAllSources: raw.Intersection.Contains(col.OriginalName()),
		})
	}
	sort.Slice(v.Columns, func(i, j int) bool { return v.Columns[i].Position < v.Columns[j].Position })
	return v, nil
}

func specStrings(s table.TableSpec) []string {
	cols := s.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.String()
	}
	return out
}

func outputColumnInfos(cols []transform.OutputColumn) []OutputColumnInfo {
	out := make([]OutputColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = OutputColumnInfo{
			Name:         c.Name,
			Type:         string(c.Type),
			OriginalName: c.Source.Name,
			ExternalType: string(c.Source.Type),
		}
	}
	return out
}
