package features

import (
	"net/mail"
	"strings"

	"github.com/mikey/phish-triage/internal/core"
)

// ExtractAddresses parses the From, Reply-To, Sender and Return-Path headers.
// Absent or malformed headers yield empty fields.
func ExtractAddresses(headers map[string]string) core.Addresses {
	return core.Addresses{
		From:       parseMailbox(headers["From"]),
		ReplyTo:    parseMailbox(headers["Reply-To"]),
		ReturnPath: parseReturnPath(headers["Return-Path"]),
		Sender:     parseMailbox(headers["Sender"]),
		MessageID:  headers["Message-ID"],
	}
}

// DomainFromEmail returns the lower-cased part after the last '@'
func DomainFromEmail(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr[i+1:]))
}

func parseMailbox(value string) core.AddressInfo {
	value = strings.TrimSpace(value)
	if value == "" {
		return core.AddressInfo{}
	}

	var name, email string
	if addr, err := mail.ParseAddress(value); err == nil {
		name, email = addr.Name, addr.Address
	} else {
		name, email = looseMailbox(value)
	}

	return core.AddressInfo{
		Name:   name,
		Email:  email,
		Domain: DomainFromEmail(email),
	}
}

// looseMailbox handles headers net/mail rejects, such as unquoted
// display names containing specials or a bare address with trailing junk.
func looseMailbox(value string) (string, string) {
	start := strings.LastIndex(value, "<")
	end := strings.LastIndex(value, ">")
	if start >= 0 && end > start {
		name := strings.Trim(strings.TrimSpace(value[:start]), `"'`)
		return strings.TrimSpace(name), strings.TrimSpace(value[start+1 : end])
	}
	if fields := strings.Fields(value); len(fields) > 0 {
		for _, f := range fields {
			if strings.Contains(f, "@") {
				return "", strings.Trim(f, `<>"',;`)
			}
		}
	}
	return "", ""
}

func parseReturnPath(value string) core.AddressInfo {
	email := strings.Trim(strings.TrimSpace(value), "<>")
	return core.AddressInfo{
		Email:  email,
		Domain: DomainFromEmail(email),
	}
}
