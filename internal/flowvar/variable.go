// Package flowvar holds user-defined flow variables and applies them as
// overrides to reader settings.
package flowvar

import (
	"strconv"
	"strings"

	"tablereader/internal/errors"
)

// Type is the type of a flow variable value.
type Type string

const (
	TypeString  Type = "string"
	TypeInt     Type = "int"
	TypeDouble  Type = "double"
	TypeBoolean Type = "boolean"
)

// ParseType parses a type name, case-insensitively.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeString, TypeInt, TypeDouble, TypeBoolean:
		return t, nil
	default:
		return "", errors.Configurationf("unknown flow variable type %q", s)
	}
}

// Variable is a named, typed value. Value holds the textual form.
type Variable struct {
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

// Validate checks the name and that the value parses as the type.
func (v Variable) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.Configurationf("flow variable name must not be empty")
	}
	if _, err := v.Typed(); err != nil {
		return err
	}
	return nil
}

// Typed returns the value as string, int64, float64 or bool.
func (v Variable) Typed() (any, error) {
	var (
		val any
		err error
	)
	s := strings.TrimSpace(v.Value)
	switch v.Type {
	case TypeString:
		return v.Value, nil
	case TypeInt:
		val, err = strconv.ParseInt(s, 10, 64)
	case TypeDouble:
		val, err = strconv.ParseFloat(s, 64)
	case TypeBoolean:
		val, err = strconv.ParseBool(s)
	default:
		return nil, errors.Configurationf("flow variable %q has unknown type %q", v.Name, v.Type)
	}
	if err != nil {
		return nil, errors.WithHint(
			errors.Configurationf("value %q of flow variable %q is not a valid %s", v.Value, v.Name, v.Type),
			"change the value or the type of the variable")
	}
	return val, nil
}

func (v Variable) String() string {
	return v.Name + " (" + string(v.Type) + ") = " + v.Value
}
