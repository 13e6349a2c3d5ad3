// Package doctree parses the free-form instruction payload produced by the
// generation engine into a typed component/modifier tree and rebuilds the
// payload from one. The stored payload itself stays schema-less; this is
// only the shape the migrator and the normalized store agree on:
//
//	{"object_type": "...", "style": "...",
//	 "components": [{"name","type","position":[3],"scale":[3],"rotation":[3],"material"}],
//	 "modifiers":  [{"component": <component name>, "type", "parameters": {}}]}
package doctree

import (
	"encoding/json"
	"fmt"
)

type Document struct {
	ObjectType string
	Style      string
	Components []Component
	Modifiers  []Modifier
}

type Component struct {
	Name     string
	Type     string
	Position [3]float64
	Scale    [3]float64
	Rotation [3]float64
	Material string
}

// Modifier binds to a component by name; Parameters vary by modifier type.
type Modifier struct {
	Component  string
	Type       string
	Parameters map[string]any
}

var (
	defaultPosition = [3]float64{0, 0, 0}
	defaultScale    = [3]float64{1, 1, 1}
	defaultRotation = [3]float64{0, 0, 0}
)

// Parse validates raw against the expected tree shape. Missing transform
// triples take their defaults (position 0, scale 1, rotation 0); a modifier
// naming an unknown component is a shape error.
func Parse(raw []byte) (*Document, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("instructions payload is not a JSON object: %w", err)
	}

	doc := &Document{
		ObjectType: stringField(root, "object_type"),
		Style:      stringField(root, "style"),
	}

	names := map[string]bool{}
	if v, ok := root["components"]; ok {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("components is not a list")
		}
		for i, item := range list {
			cmp, err := parseComponent(item)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			doc.Components = append(doc.Components, *cmp)
			names[cmp.Name] = true
		}
	}

	if v, ok := root["modifiers"]; ok {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("modifiers is not a list")
		}
		for i, item := range list {
			mod, err := parseModifier(item)
			if err != nil {
				return nil, fmt.Errorf("modifier %d: %w", i, err)
			}
			if !names[mod.Component] {
				return nil, fmt.Errorf("modifier %d references unknown component %q", i, mod.Component)
			}
			doc.Modifiers = append(doc.Modifiers, *mod)
		}
	}

	return doc, nil
}

func parseComponent(item any) (*Component, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("not a mapping")
	}
	cmp := &Component{
		Name:     stringField(obj, "name"),
		Type:     stringField(obj, "type"),
		Material: stringField(obj, "material"),
	}
	if cmp.Type == "" {
		return nil, fmt.Errorf("missing type")
	}
	var err error
	if cmp.Position, err = tripleField(obj, "position", defaultPosition); err != nil {
		return nil, err
	}
	if cmp.Scale, err = tripleField(obj, "scale", defaultScale); err != nil {
		return nil, err
	}
	if cmp.Rotation, err = tripleField(obj, "rotation", defaultRotation); err != nil {
		return nil, err
	}
	return cmp, nil
}

func parseModifier(item any) (*Modifier, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("not a mapping")
	}
	mod := &Modifier{
		Component: stringField(obj, "component"),
		Type:      stringField(obj, "type"),
	}
	if mod.Type == "" {
		return nil, fmt.Errorf("missing type")
	}
	if v, ok := obj["parameters"]; ok && v != nil {
		params, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameters is not a mapping")
		}
		mod.Parameters = params
	}
	return mod, nil
}

// Build is the inverse of Parse. Transform triples are always emitted, so a
// rebuilt document carries defaults explicitly where the source left them
// absent.
func (d *Document) Build() ([]byte, error) {
	root := map[string]any{}
	if d.ObjectType != "" {
		root["object_type"] = d.ObjectType
	}
	if d.Style != "" {
		root["style"] = d.Style
	}

	components := make([]any, 0, len(d.Components))
	for _, cmp := range d.Components {
		obj := map[string]any{
			"type":     cmp.Type,
			"position": cmp.Position[:],
			"scale":    cmp.Scale[:],
			"rotation": cmp.Rotation[:],
		}
		if cmp.Name != "" {
			obj["name"] = cmp.Name
		}
		if cmp.Material != "" {
			obj["material"] = cmp.Material
		}
		components = append(components, obj)
	}
	root["components"] = components

	if len(d.Modifiers) > 0 {
		modifiers := make([]any, 0, len(d.Modifiers))
		for _, mod := range d.Modifiers {
			obj := map[string]any{
				"component": mod.Component,
				"type":      mod.Type,
			}
			if len(mod.Parameters) > 0 {
				obj["parameters"] = mod.Parameters
			}
			modifiers = append(modifiers, obj)
		}
		root["modifiers"] = modifiers
	}

	return json.Marshal(root)
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func tripleField(obj map[string]any, key string, def [3]float64) ([3]float64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return def, nil
	}
	list, ok := v.([]any)
	if !ok || len(list) != 3 {
		return def, fmt.Errorf("%s is not a list of three numbers", key)
	}
	var out [3]float64
	for i, item := range list {
		n, ok := item.(float64)
		if !ok {
			return def, fmt.Errorf("%s[%d] is not a number", key, i)
		}
		out[i] = n
	}
	return out, nil
}
