package topic

import "strings"

type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Error
	Critical
)

var severityNames = [...]string{"debug", "info", "warn", "error", "critical"}

func (s Severity) String() string {
	if s < Debug || s > Critical {
		return "info"
	}
	return severityNames[s]
}

// ParseSeverity maps a name such as "warn" to its Severity. Unknown names are Info.
func ParseSeverity(name string) Severity {
	for i, n := range severityNames {
		if n == name {
			return Severity(i)
		}
	}
	return Info
}

// SeverityOf extracts the severity from the last segment of a log topic.
func SeverityOf(t string) Severity {
	if i := strings.LastIndex(t, separator); i >= 0 {
		t = t[i+1:]
	}
	return ParseSeverity(t)
}

// Log returns the log topic for s.
func Log(s Severity) string {
	return LogPrefix + separator + s.String()
}
