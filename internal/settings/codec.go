package settings

import (
	"bytes"
	"encoding/json"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"tablereader/internal/errors"
)

// ── JSON ───────────────────────────────────────────────────
// Objects are trees, arrays are string arrays, numbers are integers.

func (t *Tree) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, any](len(t.keys))
	for _, k := range t.keys {
		om.Set(k, t.values[k])
	}
	return json.Marshal(om)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	parsed, err := decodeObject(data)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// decodeObject keeps the member order of a JSON object and decodes each
// member by its leading byte.
func decodeObject(data []byte) (*Tree, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.Configurationf("settings must be a JSON object")
	}
	om := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, om); err != nil {
		return nil, errors.AsConfiguration(errors.Wrap(err, "decode settings"))
	}
	t := New()
	for p := om.Oldest(); p != nil; p = p.Next() {
		v, err := decodeValue(p.Key, p.Value)
		if err != nil {
			return nil, err
		}
		t.set(p.Key, v)
	}
	return t, nil
}

func decodeValue(key string, raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.Configurationf("setting %q has no value", key)
	}
	switch raw[0] {
	case '{':
		return decodeObject(raw)
	case '[':
		arr := []string{}
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, errors.Configurationf("setting %q must only contain strings", key)
		}
		return arr, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Wrapf(err, "decode setting %q", key)
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, errors.Wrapf(err, "decode setting %q", key)
		}
		return b, nil
	case 'n':
		return nil, errors.Configurationf("setting %q is null", key)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, errors.Configurationf("setting %q: %s is not an integer", key, raw)
	}
	return n, nil
}

// ── YAML ───────────────────────────────────────────────────

func (t *Tree) MarshalYAML() (interface{}, error) {
	return t.yamlNode(), nil
}

func (t *Tree) yamlNode() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range t.keys {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		var val *yaml.Node
		switch v := t.values[k].(type) {
		case string:
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
		case bool:
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
		case int64:
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
		case []string:
			val = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for _, s := range v {
				val.Content = append(val.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s})
			}
		case *Tree:
			val = v.yamlNode()
		}
		n.Content = append(n.Content, key, val)
	}
	return n
}

func (t *Tree) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := fromYAML(value)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

func fromYAML(n *yaml.Node) (*Tree, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, errors.Configurationf("line %d: settings must be a mapping", n.Line)
	}
	t := New()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		switch val.Kind {
		case yaml.MappingNode:
			child, err := fromYAML(val)
			if err != nil {
				return nil, err
			}
			t.set(key, child)
		case yaml.SequenceNode:
			arr := []string{}
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, errors.Configurationf("line %d: setting %q must only contain strings", item.Line, key)
				}
				arr = append(arr, item.Value)
			}
			t.set(key, arr)
		case yaml.ScalarNode:
			switch val.ShortTag() {
			case "!!bool":
				var b bool
				if err := val.Decode(&b); err != nil {
					return nil, errors.Wrapf(err, "setting %q", key)
				}
				t.set(key, b)
			case "!!int":
				var n int64
				if err := val.Decode(&n); err != nil {
					return nil, errors.Wrapf(err, "setting %q", key)
				}
				t.set(key, n)
			default:
				t.set(key, val.Value)
			}
		default:
			return nil, errors.Configurationf("line %d: unsupported value for setting %q", val.Line, key)
		}
	}
	return t, nil
}
