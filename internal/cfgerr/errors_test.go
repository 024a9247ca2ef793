package cfgerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := Policyf("Leads", "Status", "isRequiredConfigurable", "required flag is fixed")
	assert.True(t, errors.Is(err, &Error{Kind: PolicyViolation}))
	assert.False(t, errors.Is(err, &Error{Kind: NotFound}))
	assert.Equal(t, PolicyViolation, KindOf(err))

	wrapped := fmt.Errorf("saving: %w", err)
	assert.Equal(t, PolicyViolation, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorRendering(t *testing.T) {
	err := Cyclic("Customers", []string{"City", "State", "Country", "City"})
	assert.Equal(t,
		"cyclic_dependency module=Customers cycle=City -> State -> Country -> City: link would create a dependency cycle",
		err.Error())

	err = Policyf("Leads", "Name", "isHideable", "field cannot be hidden")
	assert.Equal(t, "policy_violation module=Leads field=Name flag=isHideable: field cannot be hidden", err.Error())
}

func TestStale(t *testing.T) {
	err := Stale("Products", 3, 5)
	assert.Equal(t, StaleConfiguration, KindOf(err))
	assert.Contains(t, err.Error(), "expected version 3 but store is at 5")
}
