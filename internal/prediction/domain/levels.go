package domain

import (
	"fmt"
	"strings"
)

// RiskLevel grades expiry and stockout risks. Higher values are more severe.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskLevelNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func (l RiskLevel) String() string {
	if l < RiskLow || l > RiskCritical {
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
	return riskLevelNames[l]
}

// MarshalText encodes the level as its upper-case name.
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name, case-insensitively.
func (l *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseRiskLevel parses LOW, MEDIUM, HIGH or CRITICAL.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskLevelNames {
		if strings.EqualFold(s, name) {
			return RiskLevel(i), nil
		}
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

// TrendLabel classifies the direction of the full-history regression slope.
type TrendLabel int

const (
	TrendStable TrendLabel = iota
	TrendIncreasing
	TrendDecreasing
)

func (t TrendLabel) String() string {
	switch t {
	case TrendStable:
		return "stable"
	case TrendIncreasing:
		return "increasing"
	case TrendDecreasing:
		return "decreasing"
	default:
		return fmt.Sprintf("TrendLabel(%d)", int(t))
	}
}

func (t TrendLabel) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TrendLabel) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "stable":
		*t = TrendStable
	case "increasing":
		*t = TrendIncreasing
	case "decreasing":
		*t = TrendDecreasing
	default:
		return fmt.Errorf("unknown trend %q", text)
	}
	return nil
}

// AnomalyType tells whether a flagged day was above or below its local baseline.
type AnomalyType int

const (
	AnomalySpike AnomalyType = iota
	AnomalyDrop
)

func (a AnomalyType) String() string {
	if a == AnomalyDrop {
		return "drop"
	}
	return "spike"
}

func (a AnomalyType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AnomalyType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "spike":
		*a = AnomalySpike
	case "drop":
		*a = AnomalyDrop
	default:
		return fmt.Errorf("unknown anomaly type %q", text)
	}
	return nil
}

// Severity ranks anomalies. The integer value is the rank used for filtering
// and ordering.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

var severityNames = [...]string{"low", "medium", "high"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityHigh {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses low, medium or high.
func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(s, name) {
			return Severity(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}
