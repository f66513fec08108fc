// Package monitoring holds the engine's diagnostic logger and the in-memory
// alert log consumed by the HTTP API and the operator UI.
package monitoring

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AlertSeverity ranks how urgently an alert needs operator attention.
type AlertSeverity string

const (
	SeverityInfo      AlertSeverity = "info"
	SeverityWarning   AlertSeverity = "warning"
	SeverityCritical  AlertSeverity = "critical"
	SeverityEmergency AlertSeverity = "emergency"
)

// AlertCategory groups alerts by subsystem.
type AlertCategory string

const (
	CategorySafety   AlertCategory = "safety"   // Fall detections
	CategorySystem   AlertCategory = "system"   // Capacity, acquisition faults
	CategoryHardware AlertCategory = "hardware" // Sensor link problems
)

// Alert is one raised condition. Alerts are never mutated in place by
// consumers; Acknowledge and Resolve go through the log.
type Alert struct {
	ID           uuid.UUID     `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Severity     AlertSeverity `json:"severity"`
	Category     AlertCategory `json:"category"`
	Component    string        `json:"component"`
	Message      string        `json:"message"`
	Acknowledged bool          `json:"acknowledged"`
	Resolved     bool          `json:"resolved"`
}

// AlertLog is a bounded in-memory alert history. When the bound is reached
// the oldest entries are discarded first.
type AlertLog struct {
	mu      sync.Mutex
	alerts  []Alert
	maxSize int
}

// NewAlertLog creates an alert log holding at most maxSize entries. A
// non-positive maxSize defaults to 1000.
func NewAlertLog(maxSize int) *AlertLog {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &AlertLog{maxSize: maxSize}
}

// Raise appends a new alert and returns its id.
func (l *AlertLog) Raise(severity AlertSeverity, category AlertCategory, component, message string) uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := Alert{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Severity:  severity,
		Category:  category,
		Component: component,
		Message:   message,
	}
	l.alerts = append(l.alerts, a)
	if len(l.alerts) > l.maxSize {
		l.alerts = l.alerts[len(l.alerts)-l.maxSize:]
	}

	switch severity {
	case SeverityCritical, SeverityEmergency:
		Logf("ALERT [%s/%s] %s: %s", severity, category, component, message)
	default:
		Logf("alert [%s/%s] %s: %s", severity, category, component, message)
	}
	return a.ID
}

// Active returns copies of all unresolved alerts, newest last.
func (l *AlertLog) Active() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Alert
	for _, a := range l.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}

// Recent returns copies of the most recent n alerts, newest last.
func (l *AlertLog) Recent(n int) []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.alerts) {
		n = len(l.alerts)
	}
	out := make([]Alert, n)
	copy(out, l.alerts[len(l.alerts)-n:])
	return out
}

// Acknowledge marks an alert as seen by an operator. Returns false when the
// id is unknown.
func (l *AlertLog) Acknowledge(id uuid.UUID) bool {
	return l.mark(id, func(a *Alert) { a.Acknowledged = true })
}

// Resolve marks an alert as resolved. Returns false when the id is unknown.
func (l *AlertLog) Resolve(id uuid.UUID) bool {
	return l.mark(id, func(a *Alert) { a.Resolved = true })
}

func (l *AlertLog) mark(id uuid.UUID, f func(*Alert)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.alerts {
		if l.alerts[i].ID == id {
			f(&l.alerts[i])
			return true
		}
	}
	return false
}
