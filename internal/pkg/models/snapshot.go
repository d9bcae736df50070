package models

import (
	"time"
)

// Status is the observation state shown to readers of the snapshot.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusConnecting   Status = "connecting"
	StatusScanning     Status = "scanning"
	StatusLive         Status = "live"
	StatusCrashed      Status = "crashed"
)

// Display returns the status string served by the query endpoint.
func (s Status) Display() string {
	switch s {
	case StatusInitializing:
		return "Initializing..."
	case StatusConnecting:
		return "Connecting..."
	case StatusScanning:
		return "Scanning..."
	case StatusLive:
		return "Live"
	case StatusCrashed:
		return "CRASHED - RESTARTING"
	default:
		return string(s)
	}
}

// Placeholders served before the first successful extraction.
const (
	PlaceholderTeam       = "Loading..."
	PlaceholderMatch      = "Waiting for sync..."
	PlaceholderUpdated    = "Never"
	PlaceholderDiagnostic = "None"
)

// DiagnosticNoTeams is recorded when a tick matched no strategy.
const DiagnosticNoTeams = "no team markers matched on page"

// Snapshot is the single published observation.
// Team fields stay empty until the first successful extraction; placeholders
// belong to the query record only.
type Snapshot struct {
	Status      Status
	HomeTeam    string
	AwayTeam    string
	LastUpdated time.Time
	Diagnostic  string
	Strategy    string
	SessionID   string
}

// Initial returns the snapshot a process starts with.
func Initial() Snapshot {
	return Snapshot{Status: StatusInitializing}
}

// HasTeams reports whether both team fields are known.
func (s Snapshot) HasTeams() bool {
	return s.HomeTeam != "" && s.AwayTeam != ""
}

// MatchLabel returns "home vs away", or "" when teams are unknown.
func (s Snapshot) MatchLabel() string {
	if !s.HasTeams() {
		return ""
	}
	return s.HomeTeam + " vs " + s.AwayTeam
}

// Live builds the snapshot for a successful extraction.
func Live(home, away, strategy, sessionID string, at time.Time) Snapshot {
	return Snapshot{
		Status:      StatusLive,
		HomeTeam:    home,
		AwayTeam:    away,
		LastUpdated: at,
		Strategy:    strategy,
		SessionID:   sessionID,
	}
}

// WithStatus returns a copy with status and diagnostic replaced and every
// team field preserved.
func (s Snapshot) WithStatus(status Status, diagnostic string) Snapshot {
	s.Status = status
	s.Diagnostic = diagnostic
	return s
}

// Valid checks the Live invariant.
func (s Snapshot) Valid() bool {
	if s.Status == StatusLive {
		return s.HasTeams()
	}
	return true
}

// View is the flat record returned by the query endpoint.
type View struct {
	Status      string `json:"status"`
	Match       string `json:"match"`
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	LastUpdated string `json:"last_updated"`
	DebugError  string `json:"debug_error"`
	Diagnostic  string `json:"diagnostic,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
}

// View renders the snapshot with placeholders for unknown fields.
// last_updated is local time-of-day, the format the endpoint has always served.
func (s Snapshot) View() View {
	v := View{
		Status:      s.Status.Display(),
		Match:       PlaceholderMatch,
		HomeTeam:    PlaceholderTeam,
		AwayTeam:    PlaceholderTeam,
		LastUpdated: PlaceholderUpdated,
		DebugError:  PlaceholderDiagnostic,
		Diagnostic:  s.Diagnostic,
		Strategy:    s.Strategy,
	}
	if s.HomeTeam != "" {
		v.HomeTeam = s.HomeTeam
	}
	if s.AwayTeam != "" {
		v.AwayTeam = s.AwayTeam
	}
	if label := s.MatchLabel(); label != "" {
		v.Match = label
	}
	if !s.LastUpdated.IsZero() {
		v.LastUpdated = s.LastUpdated.Local().Format(time.TimeOnly)
	}
	if s.Diagnostic != "" {
		v.DebugError = s.Diagnostic
	}
	return v
}
