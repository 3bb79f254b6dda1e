// Package schema converts GraphQL introspection documents into the summary
// and graph artifacts the dashboard renders.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kestrelsec/graphaudit/pkg/graphql"
)

// Summary describes the object types of a schema plus a node/edge graph of
// the relationships between them. The graph element shape is consumed
// verbatim by the visualization widget.
type Summary struct {
	ObjectCount int      `json:"object_count"`
	Objects     []Object `json:"objects"`
	Graph       Graph    `json:"graph"`
}

type Object struct {
	Name       string   `json:"name"`
	FieldCount int      `json:"field_count"`
	Fields     []string `json:"fields"`
}

type Graph struct {
	Nodes []Element `json:"nodes"`
	Edges []Element `json:"edges"`
}

type Element struct {
	Data ElementData `json:"data"`
}

type ElementData struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// Build extracts the object types from an introspection document. Object
// summaries are sorted by name; an edge is emitted for every field whose
// named type is another object type of the schema.
func Build(document map[string]interface{}) Summary {
	schemaDoc, _ := document["__schema"].(map[string]interface{})
	allTypes, _ := schemaDoc["types"].([]interface{})

	var objectTypes []map[string]interface{}
	objectNames := make(map[string]bool)

	for _, t := range allTypes {
		typ, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		kind, _ := typ["kind"].(string)
		name, _ := typ["name"].(string)
		if kind != "OBJECT" || name == "" || strings.HasPrefix(name, "__") {
			continue
		}
		objectTypes = append(objectTypes, typ)
		objectNames[name] = true
	}

	summary := Summary{
		Graph: Graph{Nodes: []Element{}, Edges: []Element{}},
	}

	for _, typ := range objectTypes {
		source, _ := typ["name"].(string)

		summary.Graph.Nodes = append(summary.Graph.Nodes, Element{
			Data: ElementData{ID: source, Label: source},
		})

		obj := Object{Name: source, Fields: []string{}}
		fields, _ := typ["fields"].([]interface{})
		for _, f := range fields {
			field, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			fieldName, _ := field["name"].(string)
			obj.Fields = append(obj.Fields, fieldName)

			typeRef, _ := field["type"].(map[string]interface{})
			if target := graphql.NamedType(typeRef); target != "" && objectNames[target] {
				summary.Graph.Edges = append(summary.Graph.Edges, Element{
					Data: ElementData{
						ID:     fmt.Sprintf("%s->%s:%s", source, target, fieldName),
						Source: source,
						Target: target,
						Label:  fieldName,
					},
				})
			}
		}
		obj.FieldCount = len(obj.Fields)
		summary.Objects = append(summary.Objects, obj)
	}

	sort.Slice(summary.Objects, func(i, j int) bool {
		return summary.Objects[i].Name < summary.Objects[j].Name
	})
	summary.ObjectCount = len(summary.Objects)

	return summary
}
