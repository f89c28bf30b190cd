package sequence

import (
	"fmt"
	"time"
)

// FormatInvoiceNumber renders an external invoice number, e.g. INV-000042.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}

// FormatManifestNumber renders a manifest number scoped to a calendar day,
// e.g. DL-20240115-003.
func FormatManifestNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("DL-%s-%03d", date.Format("20060102"), seq)
}

// FormatPartyCode renders a city-scoped party code, e.g. KHI07.
func FormatPartyCode(cityCode string, seq int64) string {
	return fmt.Sprintf("%s%02d", cityCode, seq)
}
