package domain

import "time"

type ReportType string

const (
	ReportTypePickup ReportType = "PICKUP"
	ReportTypeReturn ReportType = "RETURN"
	// ReportTypeDispute records damage found after completion. It sits beside
	// the reporter's RETURN entry rather than replacing it.
	ReportTypeDispute ReportType = "DISPUTE"
)

type ReporterRole string

const (
	ReporterRoleRenter ReporterRole = "RENTER"
	ReporterRoleOwner  ReporterRole = "OWNER"
)

type DamageSeverity string

const (
	DamageSeverityMinor    DamageSeverity = "MINOR"
	DamageSeverityModerate DamageSeverity = "MODERATE"
	DamageSeveritySevere   DamageSeverity = "SEVERE"
)

func (s DamageSeverity) Valid() bool {
	switch s {
	case DamageSeverityMinor, DamageSeverityModerate, DamageSeveritySevere:
		return true
	}
	return false
}

type Damage struct {
	Severity    DamageSeverity `json:"severity"`
	Description string         `json:"description"`
}

// ConditionReport is an append-only log entry keyed by
// (BookingID, Type, ReportedBy). It is never edited after creation.
type ConditionReport struct {
	ID           int32        `json:"id"`
	BookingID    int32        `json:"booking_id"`
	Type         ReportType   `json:"type"`
	ReportedBy   string       `json:"reported_by"`
	ReporterRole ReporterRole `json:"reporter_role"`
	Notes        string       `json:"notes"`
	Damages      []Damage     `json:"damages"`
	Photos       []string     `json:"photos"`
	CreatedOn    time.Time    `json:"created_on"`
}

func (r *ConditionReport) HasDamages() bool {
	return len(r.Damages) > 0
}

// ReportInput is the caller-supplied content of a condition report.
type ReportInput struct {
	Notes   string
	Damages []Damage
	Photos  []string
}

func (in ReportInput) Validate(op string) error {
	for i, d := range in.Damages {
		if !d.Severity.Valid() {
			return NewValidationError(op, "damage %d has invalid severity %q", i, d.Severity)
		}
		if d.Description == "" {
			return NewValidationError(op, "damage %d needs a description", i)
		}
	}
	return nil
}
