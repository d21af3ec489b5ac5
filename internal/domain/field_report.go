package domain

import "time"

// FieldReportType classifies the kind of on-site or remote work documented.
type FieldReportType string

const (
	ReportTypeRepair       FieldReportType = "REPAIR"
	ReportTypeMaintenance  FieldReportType = "MAINTENANCE"
	ReportTypeInstallation FieldReportType = "INSTALLATION"
	ReportTypeInspection   FieldReportType = "INSPECTION"
)

// FieldReport is a structured, append-only record of work performed.
// TicketID is optional; a report may exist independent of any ticket.
type FieldReport struct {
	ID                  string
	TicketID            *string
	TechnicianID        string
	Type                FieldReportType
	WorkPerformed       string
	Findings            string
	Recommendations     string
	PartsUsed           string
	InstallationDetails string
	CreatedAt           time.Time
}
