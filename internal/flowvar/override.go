package flowvar

import (
	"tablereader/internal/errors"
	"tablereader/internal/read"
)

// Names of the variables that override reader settings.
const (
	SkipEmptyColumns     = "skip_empty_columns"
	FailOnDifferingSpecs = "fail_on_differing_specs"
	SpecLimit            = "spec_limit"
	FailOnContentErrors  = "fail_on_content_errors"
)

// ApplyOverrides returns cfg with every setting that has a variable of the
// same name replaced by the variable's value.
func (t *Table) ApplyOverrides(cfg read.Config) (read.Config, error) {
	for _, v := range t.Variables() {
		var err error
		switch v.Name {
		case SkipEmptyColumns:
			cfg.SkipEmptyColumns, err = boolValue(v)
		case FailOnDifferingSpecs:
			cfg.FailOnDifferingSpecs, err = boolValue(v)
		case FailOnContentErrors:
			cfg.FailOnContentErrors, err = boolValue(v)
		case SpecLimit:
			var n int64
			n, err = intValue(v)
			cfg.SpecLimit = int(n)
		}
		if err != nil {
			return read.Config{}, err
		}
	}
	return cfg, nil
}

func boolValue(v Variable) (bool, error) {
	if v.Type != TypeBoolean {
		return false, errors.Configurationf("flow variable %q must be a boolean to override the setting", v.Name)
	}
	val, err := v.Typed()
	if err != nil {
		return false, err
	}
	return val.(bool), nil
}

func intValue(v Variable) (int64, error) {
	if v.Type != TypeInt {
		return 0, errors.Configurationf("flow variable %q must be an int to override the setting", v.Name)
	}
	val, err := v.Typed()
	if err != nil {
		return 0, err
	}
	return val.(int64), nil
}
