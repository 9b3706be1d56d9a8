package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseVersion converts a dotted version string to its packed numeric form:
// one byte per component, most significant first, e.g. "20.2.0.7" becomes
// 0x14020007. Shorter strings are padded with zero components; "3.1" becomes
// 0x03010000. Formats with letter suffixes in their version strings (KFM)
// pre-process those before calling this.
func ParseVersion(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return 0, fmt.Errorf("malformed version string %q", s)
	}
	var num uint32
	for i := 0; i < 4; i++ {
		var b uint64
		if i < len(parts) {
			var err error
			b, err = strconv.ParseUint(parts[i], 10, 8)
			if err != nil {
				return 0, fmt.Errorf("malformed version string %q: %w", s, err)
			}
		}
		num |= uint32(b) << uint(24-8*i)
	}
	return num, nil
}

// FormatVersion renders a packed version in dotted form. Trailing zero
// components are kept for four-part versions of 10.0.0.0 and above and
// dropped below, matching how the original files spell their headers
// ("4.0.0.2" but also "3.1").
func FormatVersion(num uint32) string {
	b := []uint32{num >> 24 & 0xFF, num >> 16 & 0xFF, num >> 8 & 0xFF, num & 0xFF}
	n := 4
	if num < 0x0A000000 {
		for n > 2 && b[n-1] == 0 {
			n--
		}
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = strconv.FormatUint(uint64(b[i]), 10)
	}
	return strings.Join(parts, ".")
}
