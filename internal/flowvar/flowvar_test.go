package flowvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/settings"
)

func TestVariableValidate(t *testing.T) {
	tests := []struct {
		v     Variable
		valid bool
	}{
		{Variable{Name: "a", Type: TypeString, Value: ""}, true},
		{Variable{Name: "a", Type: TypeInt, Value: " 42 "}, true},
		{Variable{Name: "a", Type: TypeInt, Value: "4.2"}, false},
		{Variable{Name: "a", Type: TypeDouble, Value: "4.2"}, true},
		{Variable{Name: "a", Type: TypeBoolean, Value: "yes"}, false},
		{Variable{Name: "a", Type: TypeBoolean, Value: "true"}, true},
		{Variable{Name: " ", Type: TypeString, Value: "x"}, false},
		{Variable{Name: "a", Type: "date", Value: "x"}, false},
	}
	for _, tt := range tests {
		err := tt.v.Validate()
		if tt.valid {
			assert.NoError(t, err, tt.v.String())
		} else {
			assert.True(t, errors.IsConfiguration(err), tt.v.String())
		}
	}
}

func TestTableEdits(t *testing.T) {
	table, err := NewTable(Variable{Name: "a", Type: TypeInt, Value: "1"})
	require.NoError(t, err)

	var events []Event
	unsubscribe := table.Subscribe(func(e Event) { events = append(events, e) })

	require.NoError(t, table.Add(Variable{Name: "b", Type: TypeString, Value: "x"}))
	require.NoError(t, table.Add(Variable{Name: "c", Type: TypeBoolean, Value: "false"}))
	assert.True(t, errors.IsConfiguration(table.Add(Variable{Name: "a", Type: TypeString})))

	require.NoError(t, table.Move("c", 0))
	require.NoError(t, table.Update("b", Variable{Name: "bee", Type: TypeString, Value: "y"}))
	assert.True(t, errors.IsConfiguration(table.Update("bee", Variable{Name: "a", Type: TypeString})))
	assert.True(t, errors.IsNotFound(table.Remove("zzz")))
	require.NoError(t, table.Remove("a"))

	var names []string
	for _, v := range table.Variables() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"c", "bee"}, names)

	require.Len(t, events, 5)
	assert.Equal(t, Event{Kind: Moved, Index: 0, Variable: Variable{Name: "c", Type: TypeBoolean, Value: "false"}}, events[2])
	assert.Equal(t, Removed, events[4].Kind)
	assert.Equal(t, 1, events[4].Index)

	unsubscribe()
	require.NoError(t, table.Set(Variable{Name: "bee", Type: TypeString, Value: "z"}))
	assert.Len(t, events, 5)
	v, ok := table.Get("bee")
	require.True(t, ok)
	assert.Equal(t, "z", v.Value)
}

func TestTablePersistence(t *testing.T) {
	table, err := NewTable(
		Variable{Name: "limit", Type: TypeInt, Value: "10"},
		Variable{Name: "label", Type: TypeString, Value: "hello, world"},
	)
	require.NoError(t, err)

	tree := settings.New()
	table.Save(tree)
	loaded, err := Load(tree)
	require.NoError(t, err)
	assert.Equal(t, table.Variables(), loaded.Variables())

	tree.SetStrings("types", []string{"int"})
	_, err = Load(tree)
	assert.True(t, errors.IsConfiguration(err))
}

func TestApplyOverrides(t *testing.T) {
	table, err := NewTable(
		Variable{Name: SkipEmptyColumns, Type: TypeBoolean, Value: "true"},
		Variable{Name: SpecLimit, Type: TypeInt, Value: "50"},
		Variable{Name: "unrelated", Type: TypeString, Value: "x"},
	)
	require.NoError(t, err)

	cfg, err := table.ApplyOverrides(read.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, cfg.SkipEmptyColumns)
	assert.Equal(t, 50, cfg.SpecLimit)
	assert.True(t, cfg.FailOnContentErrors)

	require.NoError(t, table.Set(Variable{Name: FailOnDifferingSpecs, Type: TypeString, Value: "true"}))
	_, err = table.ApplyOverrides(read.DefaultConfig())
	assert.True(t, errors.IsConfiguration(err))
}
