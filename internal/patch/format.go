package patch

import (
	"github.com/dustin/go-humanize"
)

const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte
)

// FormatSize renders a byte count the way the patch popup labels it: 1024
// based units with at most two decimals, e.g. "1.5 MB" or "512 Bytes".
func FormatSize(bytes int64) string {
	switch {
	case bytes <= 0:
		return "0 Bytes"
	case bytes >= gigabyte:
		return humanize.FtoaWithDigits(float64(bytes)/gigabyte, 2) + " GB"
	case bytes >= megabyte:
		return humanize.FtoaWithDigits(float64(bytes)/megabyte, 2) + " MB"
	case bytes >= kilobyte:
		return humanize.FtoaWithDigits(float64(bytes)/kilobyte, 2) + " KB"
	default:
		return humanize.Comma(bytes) + " Bytes"
	}
}
