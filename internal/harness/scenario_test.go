package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pickup/internal/schema"
)

const validScenario = `
name: minimal
description: "Minimal valid scenario"
order:
  id: ord-1
  paymentStatus: PENDING
  qrStatus: NONE
  orderStatus: PENDING
steps:
  - name: paid
    set: { paymentStatus: SUCCESS }
    expect:
      state: AWAITING_QR
assertions:
  - type: trace_count
    state: AWAITING_QR
    count: 1
`

func TestLoadScenario_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "ord-1", s.Order["id"])
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "SUCCESS", s.Steps[0].Set["paymentStatus"])
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, "AWAITING_QR", s.Steps[0].Expect.State)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertTraceCount, s.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc: `
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE } }]`,
			want: "name is required",
		},
		{
			name: "missing description",
			doc: `
name: x
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE } }]`,
			want: "description is required",
		},
		{
			name: "missing order",
			doc: `
name: x
description: "x"
steps: [{ name: s, set: { qrStatus: NONE } }]`,
			want: "order is required",
		},
		{
			name: "order without id",
			doc: `
name: x
description: "x"
order: { paymentStatus: PENDING }
steps: [{ name: s, set: { qrStatus: NONE } }]`,
			want: "order:",
		},
		{
			name: "order with unknown enum",
			doc: `
name: x
description: "x"
order: { id: ord-1, paymentStatus: REFUNDED }
steps: [{ name: s, set: { qrStatus: NONE } }]`,
			want: "order:",
		},
		{
			name: "no steps",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: []`,
			want: "steps list is required",
		},
		{
			name: "unnamed step",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ set: { qrStatus: NONE } }]`,
			want: "steps[0]: name is required",
		},
		{
			name: "empty patch",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: {} }]`,
			want: "steps[0]: set is required",
		},
		{
			name: "patch changes id",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { id: ord-2 } }]`,
			want: "id cannot be changed",
		},
		{
			name: "patch with unknown field",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { colour: blue } }]`,
			want: "steps[0]:",
		},
		{
			name: "unknown expected state",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE }, expect: { state: DONE } }]`,
			want: `unknown state "DONE"`,
		},
		{
			name: "rule out of range",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE }, expect: { state: SCANNED, rule: 9 } }]`,
			want: "rule must be between",
		},
		{
			name: "unknown assertion type",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE } }]
assertions: [{ type: trace_magic }]`,
			want: `unknown assertion type "trace_magic"`,
		},
		{
			name: "trace_order without states",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE } }]
assertions: [{ type: trace_order }]`,
			want: "states list is required",
		},
		{
			name: "final_state without expect",
			doc: `
name: x
description: "x"
order: { id: ord-1 }
steps: [{ name: s, set: { qrStatus: NONE } }]
assertions: [{ type: final_state }]`,
			want: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_SchemaProblemsSurface(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: x
description: "x"
order: { id: ord-1, qrStatus: SHINY }
steps: [{ name: s, set: { qrStatus: NONE } }]`))
	require.Error(t, err)
	assert.True(t, schema.IsValidationError(err))
}
