// Package document parses seed documents from YAML.
//
// A seed document is a nested mapping:
//
//	namespace:
//	  TypeName:
//	    - field: value
//	      other_field: value
//
// Each namespace groups entity types; each type holds a list of record
// declarations. The package validates only the outer shape - field-level
// classification (scalar vs. relation) happens against the model catalog
// in the engine.
package document

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Document is a parsed seed document: namespace -> type -> declarations.
type Document map[string]map[string][]map[string]any

// Namespaces returns the namespace labels in sorted order.
// Sorted iteration keeps node construction deterministic across runs.
func (d Document) Namespaces() []string {
	out := make([]string, 0, len(d))
	for ns := range d {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Types returns the type names declared under a namespace in sorted order.
func (d Document) Types(namespace string) []string {
	out := make([]string, 0, len(d[namespace]))
	for typ := range d[namespace] {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// ParseError reports a structural problem in a seed document.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// ParseFiles loads and deep-merges multiple YAML seed files.
// Later files override earlier ones at every level of the mapping.
func ParseFiles(paths []string) (Document, error) {
	merged := Document{}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &ParseError{File: path, Message: fmt.Sprintf("reading file: %v", err)}
		}
		doc, err := parse(raw, path)
		if err != nil {
			return nil, err
		}
		merged = merge(merged, doc)
	}
	return merged, nil
}

// Parse parses a single YAML seed document from raw bytes.
func Parse(raw []byte) (Document, error) {
	return parse(raw, "")
}

func parse(raw []byte, file string) (Document, error) {
	var root map[string]any
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &ParseError{File: file, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if root == nil {
		// Empty file is a valid no-op.
		return Document{}, nil
	}

	doc := Document{}
	for ns, typesVal := range root {
		types, ok := typesVal.(map[string]any)
		if !ok {
			return nil, &ParseError{
				File:    file,
				Message: fmt.Sprintf("namespace %q must contain a mapping of types, got %T", ns, typesVal),
			}
		}
		doc[ns] = make(map[string][]map[string]any, len(types))
		for typ, declsVal := range types {
			decls, ok := declsVal.([]any)
			if !ok {
				return nil, &ParseError{
					File:    file,
					Message: fmt.Sprintf("%s.%s must contain a list of declarations, got %T", ns, typ, declsVal),
				}
			}
			records := make([]map[string]any, 0, len(decls))
			for i, declVal := range decls {
				decl, ok := declVal.(map[string]any)
				if !ok {
					return nil, &ParseError{
						File:    file,
						Message: fmt.Sprintf("%s.%s[%d] must be a mapping of fields, got %T", ns, typ, i, declVal),
					}
				}
				records = append(records, decl)
			}
			doc[ns][typ] = records
		}
	}
	return doc, nil
}

// merge deep-merges b over a. Declaration lists are replaced wholesale when
// both files declare the same namespace.type - partial record merging would
// make reference keys ambiguous.
func merge(a, b Document) Document {
	out := Document{}
	for ns, types := range a {
		out[ns] = make(map[string][]map[string]any, len(types))
		for typ, decls := range types {
			out[ns][typ] = decls
		}
	}
	for ns, types := range b {
		if _, ok := out[ns]; !ok {
			out[ns] = make(map[string][]map[string]any, len(types))
		}
		for typ, decls := range types {
			out[ns][typ] = decls
		}
	}
	return out
}
