package xid

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "sal-9f1c...".
func New(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Invoice returns a human-facing invoice number, INV-<yyyymmddHHMMSS>-<6 hex>.
func Invoice(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "INV-" + at.UTC().Format("20060102150405") + "-" + suffix
}
