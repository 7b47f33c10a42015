package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sharezone-cli/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// FormatTime renders a timestamp as YYYY-MM-DD HH:MM in local time.
func FormatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(timeLayout)
}

// FormatSize renders a byte count ("1.5 MiB"); nil is UnknownSize.
func FormatSize(n *int64) string {
	if n == nil || *n < 0 {
		return UnknownSize
	}
	return humanize.IBytes(uint64(*n))
}

// FormatLimit renders an upload limit. Whole mebibytes read "20 MB".
func FormatLimit(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return humanize.IBytes(uint64(max(n, 0)))
}

// Expiry renders a relative expiry label such as "expires in 3 hours".
func Expiry(ts model.Timestamp, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	if ts.After(now) {
		d := strings.TrimSpace(humanize.RelTime(now, ts.Time, "", ""))
		if d == "now" {
			return "expires now"
		}
		return "expires in " + d
	}
	return "expired " + strings.TrimSpace(humanize.RelTime(ts.Time, now, "ago", ""))
}
