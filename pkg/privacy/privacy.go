// Package privacy masks personal data before it reaches logs or events.
package privacy

import (
	"net/netip"
	"strings"
)

// MaskPhone keeps the last four digits.
//
//	MaskPhone("9876543210") // "******3210"
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskEmail keeps the first character of the local part and the domain.
//
//	MaskEmail("ravi.kumar@example.com") // "r***@example.com"
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// AnonymizeIP keeps the /24 of an IPv4 address or the /48 of an IPv6 one.
//
//	AnonymizeIP("203.0.113.77") // "203.0.113.0"
func AnonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.Addr().String()
}
