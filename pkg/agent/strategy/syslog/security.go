package syslog

import (
	"strings"

	"github.com/icsnexus/otcollector/models"
)

var securityKeywords = []string{
	"authentication", "auth", "login", "logout", "failed", "denied",
	"blocked", "attack", "intrusion", "violation", "unauthorized",
	"invalid", "malicious", "suspicious", "firewall", "iptables",
	"ssh", "sudo", "root",
}

var securityFacilities = map[int]bool{4: true, 10: true, 13: true}

// IsSecurityRelevant reports whether msg should be treated as security
// telemetry: a high severity, a security-sensitive facility, or a body that
// mentions any of the fixed keyword set (case-insensitive).
func IsSecurityRelevant(msg models.SyslogMessage) bool {
	if msg.Severity <= 3 {
		return true
	}
	if securityFacilities[msg.Facility] {
		return true
	}
	lower := strings.ToLower(msg.Message)
	for _, kw := range securityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsHighSeverity reports whether msg warrants an immediate securityEvent,
// independent of buffered summarization.
func IsHighSeverity(msg models.SyslogMessage) bool {
	return msg.Severity <= 3
}
