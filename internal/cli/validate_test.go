package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders.json", ordersJSON)

	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 5 order(s) valid")
}

func TestValidate_InvalidText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders.json", `[
  {"id": "ok", "paymentStatus": "SUCCESS", "qrStatus": "NONE", "orderStatus": "PENDING"},
  {"id": "bad", "paymentStatus": "PENDING", "qrStatus": "ACTIVE", "orderStatus": "PENDING", "totalAmount": "-1"}
]`)

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 1 of 2 order(s) invalid")
	assert.Contains(t, out, "bad: qrStatus ACTIVE requires paymentStatus SUCCESS")
	assert.Contains(t, out, "bad: totalAmount is negative")
}

func TestValidate_InvalidJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "order.json", `{"paymentStatus": "SUCCESS", "qrStatus": "NONE", "orderStatus": "PENDING", "colour": "red"}`)

	out, _, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string          `json:"code"`
			Details []OrderProblems `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, 0, resp.Error.Details[0].Index)
	assert.Contains(t, resp.Error.Details[0].Problems, "id is empty")
	// The schema is closed, so the unknown field is reported as well.
	assert.Greater(t, len(resp.Error.Details[0].Problems), 1)
}

func TestValidate_UnreadableInput(t *testing.T) {
	_, _, err := execute(t, "validate", t.TempDir()+"/none.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
