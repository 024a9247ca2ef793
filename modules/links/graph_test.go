package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCycle(t *testing.T) {
	tests := []struct {
		name  string
		edges []Edge
		cycle []string
	}{
		{
			name: "acyclic chain",
			edges: []Edge{
				{Field: "City", DependsOn: "State"},
				{Field: "State", DependsOn: "Country"},
			},
		},
		{
			name: "diamond is acyclic",
			edges: []Edge{
				{Field: "City", DependsOn: "State"},
				{Field: "City", DependsOn: "Country"},
				{Field: "State", DependsOn: "Country"},
			},
		},
		{
			name: "self edge",
			edges: []Edge{
				{Field: "City", DependsOn: "City"},
			},
			cycle: []string{"City", "City"},
		},
		{
			name: "two node cycle",
			edges: []Edge{
				{Field: "State", DependsOn: "City"},
				{Field: "City", DependsOn: "State"},
			},
			cycle: []string{"State", "City", "State"},
		},
		{
			name: "chain closed into a cycle",
			edges: []Edge{
				{Field: "City", DependsOn: "State"},
				{Field: "State", DependsOn: "Country"},
				{Field: "Country", DependsOn: "City"},
			},
			cycle: []string{"City", "State", "Country", "City"},
		},
		{
			name: "cycle reachable past an acyclic prefix",
			edges: []Edge{
				{Field: "PostalCode", DependsOn: "City"},
				{Field: "City", DependsOn: "State"},
				{Field: "State", DependsOn: "City"},
			},
			cycle: []string{"City", "State", "City"},
		},
		{
			name:  "empty",
			edges: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FindCycle(tc.edges)
			if tc.cycle == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.cycle, got)
		})
	}
}
