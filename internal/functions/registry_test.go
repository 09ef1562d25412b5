package functions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/functions"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

type stubHandler struct {
	name string
	caps functions.Capability
}

func (s stubHandler) Name() string                    { return s.name }
func (s stubHandler) Capabilities() functions.Capability { return s.caps }
func (s stubHandler) MinArgs() int                    { return 0 }
func (s stubHandler) Variadic() bool                  { return true }
func (s stubHandler) Call(functions.Context, []functions.ArgumentHandle) (value.LiteralValue, error) {
	return value.Empty, nil
}

func TestRegistry_LookupAndCapabilityQueries(t *testing.T) {
	r := functions.NewRegistry()
	r.Register(stubHandler{name: "NOW", caps: functions.Volatile})
	r.Register(stubHandler{name: "OFFSET", caps: functions.Dynamic | functions.ReturnsReference})
	r.Seal()

	h, ok := r.Lookup("NOW")
	require.True(t, ok)
	assert.Equal(t, "NOW", h.Name())

	assert.True(t, r.IsVolatile("NOW"))
	assert.False(t, r.IsVolatile("OFFSET"))
	assert.True(t, r.IsDynamic("OFFSET"))
	assert.True(t, r.IsReturnsReference("OFFSET"))

	_, ok = r.Lookup("UNKNOWN")
	assert.False(t, ok)
	assert.False(t, r.IsVolatile("UNKNOWN"))
}

func TestRegistry_RegisterAfterSealPanics(t *testing.T) {
	r := functions.NewRegistry()
	r.Seal()
	assert.Panics(t, func() {
		r.Register(stubHandler{name: "X"})
	})
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := functions.NewRegistry()
	r.Register(stubHandler{name: "X"})
	assert.Panics(t, func() {
		r.Register(stubHandler{name: "X"})
	})
}

func TestCapability_Has(t *testing.T) {
	c := functions.Pure | functions.Reduction
	assert.True(t, c.Has(functions.Pure))
	assert.True(t, c.Has(functions.Reduction))
	assert.False(t, c.Has(functions.Volatile))
}

func TestRegisterDefaults_PopulatesCoreFunctions(t *testing.T) {
	r := functions.NewRegistry()
	functions.RegisterDefaults(r, functions.WallClock{})
	r.Seal()

	for _, name := range []string{"SUM", "IF", "AND", "OR", "NOT", "VLOOKUP", "OFFSET", "INDIRECT", "NOW", "TODAY"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "expected default handler for %s", name)
	}
	assert.True(t, r.IsVolatile("NOW"))
	assert.True(t, r.IsDynamic("OFFSET"))
}
