package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/schema"
)

// orderInput is one order document as read from a file, kept both raw (for
// schema checks) and decoded (for reconciliation).
type orderInput struct {
	Doc   any
	Order order.Order
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// decodeOrders accepts a single JSON object or an array of them.
func decodeOrders(data []byte) ([]orderInput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty input")
	}

	var raws []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
	} else {
		raws = []json.RawMessage{trimmed}
	}

	out := make([]orderInput, 0, len(raws))
	for i, raw := range raws {
		var in orderInput
		if err := json.Unmarshal(raw, &in.Doc); err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if _, ok := in.Doc.(map[string]any); !ok {
			return nil, fmt.Errorf("[%d]: order must be a JSON object", i)
		}
		if err := json.Unmarshal(raw, &in.Order); err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// loadOrders reads and decodes path, reporting failures through f.
func loadOrders(cmd *cobra.Command, f *OutputFormatter, path string) ([]orderInput, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("read %s: %v", path, err), nil)
	}
	inputs, err := decodeOrders(data)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDecodeFailed, fmt.Sprintf("decode %s: %v", path, err), nil)
	}
	f.VerboseLog("Read %d order(s) from %s", len(inputs), path)
	return inputs, nil
}

// problems runs the schema and field checks on one input. Reconciliation
// never depends on the result; it only decides what gets reported.
func problems(v *schema.Validator, in orderInput) []string {
	var out []string
	if err := v.Order(in.Doc); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			out = append(out, ve.Problems...)
		} else {
			out = append(out, err.Error())
		}
	}
	if err := order.Validate(in.Order); err != nil {
		var me *order.MalformedError
		if errors.As(err, &me) {
			out = append(out, me.Problems...)
		} else {
			out = append(out, err.Error())
		}
	}
	return out
}
