package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks a rejected resource descriptor. Construction-time only:
// no record is ever persisted with an invalid resource.
var ErrInvalid = errors.New("invalid resource descriptor")

// Resource is the target a share link points at. Exactly one of the four
// variants below implements it.
type Resource interface {
	// Wire returns the persisted form: a plain string for file-like
	// resources, a map with a "type" discriminator for route/model refs.
	Wire() interface{}
}

// LocalFile points at a path on the local filesystem.
type LocalFile struct {
	Path string
}

// StorageRef points at an object on a named storage disk.
type StorageRef struct {
	Disk string
	Path string
}

// RouteTarget redirects to a named external route.
type RouteTarget struct {
	Name   string
	Params map[string]string
}

// ModelRef references an application model by class and id.
type ModelRef struct {
	Class string
	ID    interface{}
}

func (r LocalFile) Wire() interface{} { return r.Path }

func (r StorageRef) Wire() interface{} { return r.Disk + ":" + r.Path }

func (r RouteTarget) Wire() interface{} {
	m := map[string]interface{}{"type": "route", "name": r.Name}
	if len(r.Params) > 0 {
		m["params"] = r.Params
	}
	return m
}

func (r ModelRef) Wire() interface{} {
	return map[string]interface{}{"type": "model", "class": r.Class, "id": r.ID}
}

// ParseString classifies a path-like input. A "disk:path" separator selects
// a storage reference; everything else is a local file path.
func ParseString(s string) Resource {
	if i := strings.Index(s, ":"); i > 0 && i < len(s)-1 {
		return StorageRef{Disk: s[:i], Path: s[i+1:]}
	}
	return LocalFile{Path: s}
}

// Parse validates an arbitrary resource input. Strings are classified with
// ParseString; maps must carry a "type" discriminator of "route" or "model".
func Parse(input interface{}) (Resource, error) {
	switch v := input.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: empty resource", ErrInvalid)
		}
		return ParseString(v), nil
	case Resource:
		return v, nil
	case map[string]interface{}:
		return parseDescriptor(v)
	default:
		return nil, fmt.Errorf("%w: unsupported input %T", ErrInvalid, input)
	}
}

func parseDescriptor(m map[string]interface{}) (Resource, error) {
	kind, _ := m["type"].(string)
	if kind == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalid)
	}
	switch kind {
	case "route":
		name, _ := m["name"].(string)
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: route requires a name", ErrInvalid)
		}
		params, err := parseParams(m["params"])
		if err != nil {
			return nil, err
		}
		return RouteTarget{Name: name, Params: params}, nil
	case "model":
		class, _ := m["class"].(string)
		if strings.TrimSpace(class) == "" {
			return nil, fmt.Errorf("%w: model requires a class", ErrInvalid)
		}
		id, ok := m["id"]
		if !ok || id == nil {
			return nil, fmt.Errorf("%w: model requires an id", ErrInvalid)
		}
		return ModelRef{Class: class, ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalid, kind)
	}
}

func parseParams(raw interface{}) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		if typed, okTyped := raw.(map[string]string); okTyped {
			return typed, nil
		}
		return nil, fmt.Errorf("%w: params must be a mapping", ErrInvalid)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// MarshalWire serializes a resource to its persisted JSON form.
func MarshalWire(r Resource) ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Wire())
}

// UnmarshalWire restores a resource from its persisted JSON form.
func UnmarshalWire(data []byte) (Resource, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return Parse(raw)
}
