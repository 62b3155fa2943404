package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberPrefix = "F-"

// invoiceNumber renders the human-readable invoice number for a checkout
// instant, second resolution: F-20260901154233.
func invoiceNumber(ts time.Time) string {
	return numberPrefix + ts.Format("20060102150405")
}

// invoiceNumberSuffixed disambiguates concurrent checkouts that land on the
// same second. Used only after the plain number hits the unique constraint.
func invoiceNumberSuffixed(ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return invoiceNumber(ts) + "-" + suffix
}
