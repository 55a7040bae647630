// Package alert defines the canonical in-memory alert representation
// admitted from either inbound webhook shape.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Severity is the normalised alert severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Priority is the provider-reported priority, used to rank queued alerts.
type Priority string

const (
	PriorityP1   Priority = "P1"
	PriorityP2   Priority = "P2"
	PriorityP3   Priority = "P3"
	PriorityP4   Priority = "P4"
	PriorityNone Priority = ""
)

// Rank maps a Priority to its heap sort key. Lower ranks dispatch first;
// an unset priority sorts last.
func (p Priority) Rank() int {
	switch p {
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	case PriorityP4:
		return 4
	default:
		return 99
	}
}

// Alert is the normalised, immutable-after-admission representation of
// an inbound incident, whichever provider it came from.
type Alert struct {
	IncidentID  string `validate:"required"`
	ServiceName string `validate:"required"`
	Severity    Severity
	Priority    Priority
	Description string
	DedupKey    string
	RunbookURL  string
	Timestamp   time.Time
	Details     map[string]any
}

// IsGCPSourced reports whether this alert originated from the
// cloud-monitoring webhook rather than the incident provider — such
// alerts have no corresponding incident on the provider side yet.
func (a Alert) IsGCPSourced() bool {
	return strings.HasPrefix(a.IncidentID, "gcp-")
}

var validate = validator.New()

// Validate enforces the non-empty incident_id/service_name invariant.
func (a Alert) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}
	return nil
}

// ServiceEndpoint is a monitored service and its /ops/* base URL.
type ServiceEndpoint struct {
	Name     string
	BaseURL  string
	Critical bool
}

// ScalingMode selects how scale_service applies a target instance count.
type ScalingMode string

const (
	ScalingModeApplication ScalingMode = "application"
	ScalingModeCloudNative ScalingMode = "cloud_native"
)

// ScalingConfig is the per-service scaling bounds and mode.
type ScalingConfig struct {
	ServiceName  string
	MinInstances int
	MaxInstances int
	Mode         ScalingMode
}
