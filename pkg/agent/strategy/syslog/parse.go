// Package syslog implements the Syslog strategy: a concurrent UDP or TCP
// listener decoding each message as RFC 5424, then RFC 3164, then a minimal
// <PRI>MSG fallback, buffered and summarized on each poll tick.
package syslog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leodido/go-syslog/v4/rfc3164"
	"github.com/leodido/go-syslog/v4/rfc5424"

	"github.com/icsnexus/otcollector/models"
)

var monthNames = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// Parse decodes one message, trying RFC 5424 first, then RFC 3164, then the
// minimal <PRI>REST fallback that never fails.
func Parse(sourceIP string, line []byte) models.SyslogMessage {
	if msg, ok := parseRFC5424(line); ok {
		msg.SourceIP = sourceIP
		return msg
	}
	if msg, ok := parseRFC3164(line); ok {
		msg.SourceIP = sourceIP
		return msg
	}
	msg := parseFallback(line)
	msg.SourceIP = sourceIP
	return msg
}

func parseRFC5424(line []byte) (models.SyslogMessage, bool) {
	parsed, err := rfc5424.NewParser().Parse(line)
	if err != nil {
		return models.SyslogMessage{}, false
	}
	m, ok := parsed.(*rfc5424.SyslogMessage)
	if !ok || m.Facility == nil || m.Severity == nil {
		return models.SyslogMessage{}, false
	}

	msg := models.SyslogMessage{
		Facility: int(*m.Facility),
		Severity: int(*m.Severity),
	}
	if m.Timestamp != nil {
		msg.Timestamp = *m.Timestamp
	} else {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Hostname = derefOrUndefined(m.Hostname)
	msg.AppName = derefOrUndefined(m.Appname)
	msg.ProcID = derefOrUndefined(m.ProcID)
	msg.MsgID = derefOrUndefined(m.MsgID)
	if m.StructuredData != nil {
		msg.StructuredData = *m.StructuredData
	}
	if m.Message != nil {
		msg.Message = *m.Message
	}
	return msg, true
}

func parseRFC3164(line []byte) (models.SyslogMessage, bool) {
	parsed, err := rfc3164.NewParser(rfc3164.WithYear(rfc3164.CurrentYear{})).Parse(line)
	if err != nil {
		return models.SyslogMessage{}, false
	}
	m, ok := parsed.(*rfc3164.SyslogMessage)
	if !ok || m.Facility == nil || m.Severity == nil {
		return models.SyslogMessage{}, false
	}

	msg := models.SyslogMessage{
		Facility: int(*m.Facility),
		Severity: int(*m.Severity),
	}
	if m.Timestamp != nil {
		msg.Timestamp = *m.Timestamp
	} else {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Hostname = derefOrUndefined(m.Hostname)
	msg.AppName = derefOrUndefined(m.Appname)
	msg.ProcID = derefOrUndefined(m.ProcID)
	if m.Message != nil {
		msg.Message = *m.Message
	}
	return msg, true
}

var priRe = regexp.MustCompile(`^<(\d{1,3})>(.*)$`)

// parseFallback never fails: any <PRI>REST yields a message with the
// current time and an "unknown" hostname, per the architecture spec.
func parseFallback(line []byte) models.SyslogMessage {
	m := priRe.FindSubmatch(line)
	if m == nil {
		return models.SyslogMessage{
			Facility:  1,
			Severity:  5,
			Timestamp: time.Now().UTC(),
			Hostname:  "unknown",
			Message:   string(line),
		}
	}
	pri, _ := strconv.Atoi(string(m[1]))
	return models.SyslogMessage{
		Facility:  pri / 8,
		Severity:  pri % 8,
		Timestamp: time.Now().UTC(),
		Hostname:  "unknown",
		Message:   strings.TrimSpace(string(m[2])),
	}
}

func derefOrUndefined(s *string) string {
	if s == nil || *s == "" || *s == "-" {
		return "undefined"
	}
	return *s
}

// parseBSDTimestamp parses an RFC 3164 "MMM DD HH:MM:SS" timestamp using the
// current year, per the architecture spec. Parse does not call it: the RFC
// 3164 path delegates to the library parser and the fallback path stamps the
// current time; only the tests call it.
func parseBSDTimestamp(s string, now time.Time) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("syslog: malformed BSD timestamp %q", s)
	}
	month, ok := monthNames[fields[0]]
	if !ok {
		return time.Time{}, fmt.Errorf("syslog: unknown month %q", fields[0])
	}
	day, err := strconv.Atoi(fields[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("syslog: bad day %q", fields[1])
	}
	clock := strings.Split(fields[2], ":")
	if len(clock) != 3 {
		return time.Time{}, fmt.Errorf("syslog: bad time %q", fields[2])
	}
	hour, _ := strconv.Atoi(clock[0])
	minute, _ := strconv.Atoi(clock[1])
	second, _ := strconv.Atoi(clock[2])
	return time.Date(now.Year(), month, day, hour, minute, second, 0, time.UTC), nil
}
