package notify

import (
	"strings"
)

// Owner is who hears about sales and customer messages.
type Owner struct {
	Email       string
	TextTo      string
	TextOn      bool
	TextSubject string
	SiteURL     string
	ShopName    string
}

func (o Owner) AdminURL() string {
	base := strings.TrimRight(strings.TrimSpace(o.SiteURL), "/")
	return base + "/admin"
}

// ShouldSendOwnerText is true only when alerts are switched on and the
// recipient looks like an address (usually an SMS gateway).
func ShouldSendOwnerText(o Owner) bool {
	return o.TextOn && strings.Contains(strings.TrimSpace(o.TextTo), "@")
}

// FormatOwnerTextAlert keeps the body to one short line for SMS gateways.
func FormatOwnerTextAlert(subject, orderNumber, totalLabel, adminURL string) (string, string) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "New Order"
	}
	if adminURL == "" {
		adminURL = "/admin"
	}
	text := "New Order " + strings.TrimSpace(orderNumber) + " " + strings.TrimSpace(totalLabel) + " View now in admin " + adminURL
	return subject, text
}

// MaskRecipient hides all but the first two characters of the local part.
func MaskRecipient(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.Index(addr, "@")
	if at <= 0 {
		return prefix(addr, 2) + "***"
	}
	return prefix(addr[:at], 2) + "***@" + addr[at+1:]
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
