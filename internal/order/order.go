package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is owned by the payment collaborator.
type PaymentStatus string

const (
	PaymentUnset   PaymentStatus = ""
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// QRStatus is owned by the payment and scan collaborators.
type QRStatus string

const (
	QRUnset    QRStatus = ""
	QRNone     QRStatus = "NONE"
	QRActive   QRStatus = "ACTIVE"
	QRUsed     QRStatus = "USED"
	QRRejected QRStatus = "REJECTED"
)

// Status is the fulfillment status owned by the serving collaborator.
type Status string

const (
	StatusUnset     Status = ""
	StatusPending   Status = "PENDING"
	StatusServed    Status = "SERVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentType records how the order is paid for.
type PaymentType string

const (
	PaymentTypeUnset  PaymentType = ""
	PaymentTypeCash   PaymentType = "CASH"
	PaymentTypeOnline PaymentType = "ONLINE"
)

// Order is a whole-record snapshot of a fulfillment order.
//
// Every field is always present. Enum fields use their Unset variant when the
// source did not provide a recognizable value, and zero times mean unset.
// The core only reads snapshots; writers own disjoint subsets of the fields.
type Order struct {
	ID            string          `json:"id" yaml:"id"`
	PaymentStatus PaymentStatus   `json:"paymentStatus" yaml:"paymentStatus"`
	QRStatus      QRStatus        `json:"qrStatus" yaml:"qrStatus"`
	OrderStatus   Status          `json:"orderStatus" yaml:"orderStatus"`
	CreatedAt     time.Time       `json:"createdAt" yaml:"createdAt"`
	ScannedAt     time.Time       `json:"scannedAt" yaml:"scannedAt"`
	ServedAt      time.Time       `json:"servedAt" yaml:"servedAt"`
	UserID        string          `json:"userId" yaml:"userId"`
	CafeteriaID   string          `json:"cafeteriaId" yaml:"cafeteriaId"`
	TotalAmount   decimal.Decimal `json:"totalAmount" yaml:"totalAmount"`
	PaymentType   PaymentType     `json:"paymentType" yaml:"paymentType"`
}

// ParsePaymentStatus maps text to a PaymentStatus. Unknown text yields PaymentUnset.
func ParsePaymentStatus(s string) PaymentStatus {
	switch v := PaymentStatus(normalize(s)); v {
	case PaymentPending, PaymentSuccess, PaymentFailed:
		return v
	}
	return PaymentUnset
}

// ParseQRStatus maps text to a QRStatus. Unknown text yields QRUnset.
func ParseQRStatus(s string) QRStatus {
	switch v := QRStatus(normalize(s)); v {
	case QRNone, QRActive, QRUsed, QRRejected:
		return v
	}
	return QRUnset
}

// ParseStatus maps text to a Status. Unknown text yields StatusUnset.
func ParseStatus(s string) Status {
	switch v := Status(normalize(s)); v {
	case StatusPending, StatusServed, StatusCompleted, StatusCancelled:
		return v
	}
	return StatusUnset
}

// ParsePaymentType maps text to a PaymentType. Unknown text yields PaymentTypeUnset.
func ParsePaymentType(s string) PaymentType {
	switch v := PaymentType(normalize(s)); v {
	case PaymentTypeCash, PaymentTypeOnline:
		return v
	}
	return PaymentTypeUnset
}

// UnmarshalText degrades unknown values to the unset variant instead of failing.
func (p *PaymentStatus) UnmarshalText(b []byte) error {
	*p = ParsePaymentStatus(string(b))
	return nil
}

func (q *QRStatus) UnmarshalText(b []byte) error {
	*q = ParseQRStatus(string(b))
	return nil
}

func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

func (t *PaymentType) UnmarshalText(b []byte) error {
	*t = ParsePaymentType(string(b))
	return nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
