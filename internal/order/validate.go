package order

import (
	"errors"
	"fmt"
	"strings"
)

// MalformedError reports the problems found in an order record.
// Reconciliation still succeeds on such records; this error is for callers
// that want to reject or flag input before it reaches consumers.
type MalformedError struct {
	OrderID  string
	Problems []string
}

func (e *MalformedError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("malformed order %s: %s", e.OrderID, strings.Join(e.Problems, "; "))
	}
	return "malformed order: " + strings.Join(e.Problems, "; ")
}

// IsMalformed reports whether err is or wraps a *MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// Validate checks field presence and cross-field invariants.
func Validate(o Order) error {
	var problems []string
	if strings.TrimSpace(o.ID) == "" {
		problems = append(problems, "id is empty")
	}
	if o.PaymentStatus == PaymentUnset {
		problems = append(problems, "paymentStatus is unset")
	}
	if o.QRStatus == QRUnset {
		problems = append(problems, "qrStatus is unset")
	}
	if o.OrderStatus == StatusUnset {
		problems = append(problems, "orderStatus is unset")
	}
	if o.QRStatus == QRActive && o.PaymentStatus != PaymentSuccess {
		problems = append(problems, "qrStatus ACTIVE requires paymentStatus SUCCESS")
	}
	if o.TotalAmount.IsNegative() {
		problems = append(problems, "totalAmount is negative")
	}
	if len(problems) == 0 {
		return nil
	}
	return &MalformedError{OrderID: o.ID, Problems: problems}
}
