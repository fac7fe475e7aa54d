package utils

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ToMinorUnits converts a major-unit price (rupees, dollars) to the smallest
// currency unit the gateway charges in.
func ToMinorUnits(price float64) int64 {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	return int64(math.Round(price * 100))
}

func FromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}

const maxReceiptLen = 40

// Receipt builds the provider receipt for a checkout attempt. Razorpay caps
// receipts at 40 characters; the ids are cut before the order suffix so two
// attempts never share a receipt.
func Receipt(studentID, courseID int64, orderID uuid.UUID) string {
	suffix := "_" + orderID.String()[:8]
	head := fmt.Sprintf("rcpt_%d_%d", studentID, courseID)
	if len(head)+len(suffix) > maxReceiptLen {
		head = head[:maxReceiptLen-len(suffix)]
	}
	return head + suffix
}
