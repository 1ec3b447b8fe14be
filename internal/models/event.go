package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a package lifecycle event.
type EventType string

const (
	EventInstall   EventType = "install"
	EventUninstall EventType = "uninstall"
)

// Valid reports whether the event type is one of the supported values.
func (t EventType) Valid() bool {
	return t == EventInstall || t == EventUninstall
}

// Event is one recorded install/uninstall occurrence. Rows are append-only:
// nothing in the system updates or deletes an event after insert.
type Event struct {
	ID             int64
	Timestamp      time.Time
	PackageName    string
	EventType      EventType
	PackageVersion *string
	Author         *string
	Description    *string
}

// EventRequest is the POST /event payload.
type EventRequest struct {
	Timestamp string `json:"timestamp"`
	Package   string `json:"package"`
	Type      string `json:"type"`
}

// EventResponse is returned by POST /event on success.
type EventResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Metadata is a package's descriptive attributes as fetched from the
// registry at record time. A failed lookup leaves every field nil.
type Metadata struct {
	Version      *string
	Author       *string
	Description  *string
	HomePage     *string
	License      *string
	ReleaseCount int
}

// PackageCount is a (package, count) aggregation row. It marshals as a
// two-element JSON array to match the wire contract.
type PackageCount struct {
	Name  string
	Count int
}

func (p PackageCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Name, p.Count})
}

func (p *PackageCount) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("package count: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Name); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Count)
}

// PairCount is a (package1, package2, count) aggregation row over
// co-installation pairs. It marshals as a three-element JSON array.
type PairCount struct {
	Package1 string
	Package2 string
	Count    int
}

func (p PairCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Package1, p.Package2, p.Count})
}

func (p *PairCount) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("pair count: expected 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Package1); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &p.Package2); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &p.Count)
}

// Metrics is the GET /metrics response body.
type Metrics struct {
	TotalInstalls   int            `json:"total_installs"`
	TotalUninstalls int            `json:"total_uninstalls"`
	MostInstalled   []PackageCount `json:"most_installed"`
	MostUninstalled []PackageCount `json:"most_uninstalled"`
	InstallTrend    map[string]int `json:"install_trend"`
	PopularPairs    []PairCount    `json:"popular_pairs"`
}

// MetadataOut is the nullable metadata block in GET /packages/:name.
type MetadataOut struct {
	Version     *string `json:"version"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
}

// PackageStats is the GET /packages/:name response body.
type PackageStats struct {
	PackageName     string         `json:"package_name"`
	Metadata        MetadataOut    `json:"metadata"`
	TotalInstalls   int            `json:"total_installs"`
	TotalUninstalls int            `json:"total_uninstalls"`
	DailyInstalls   map[string]int `json:"daily_installs"`
	HourlyInstalls  map[string]int `json:"hourly_installs"`
}
