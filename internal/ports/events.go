package ports

import "time"

// EventKind names an event on the push stream.
type EventKind string

const (
    EventDownloadProgress EventKind = "downloadProgress"
    EventInstallStage     EventKind = "installStage"
    EventScanProgress     EventKind = "scanProgress"
    EventTaskFailed       EventKind = "taskFailed"
)

// Install stages reported through EventInstallStage.
const (
    StageDownloaded = "downloaded"
    StageInstalled  = "installed"
)

// Event is one message on the out-of-band progress stream. Only the fields
// relevant to Kind are populated.
type Event struct {
    Kind   EventKind `json:"kind"`
    TaskID string    `json:"taskId"`

    // downloadProgress / installStage
    Version    string   `json:"version,omitempty"`
    Flavor     string   `json:"flavor,omitempty"`
    Downloaded int64    `json:"downloaded,omitempty"`
    Total      *int64   `json:"total,omitempty"`
    Percent    *float64 `json:"percent,omitempty"`
    Stage      string   `json:"stage,omitempty"`

    // scanProgress / installStage
    Label    string  `json:"label,omitempty"`
    Progress float64 `json:"progress,omitempty"`

    // taskFailed
    Error string `json:"error,omitempty"`

    // Terminal marks the last event of a task.
    Terminal bool      `json:"terminal,omitempty"`
    At       time.Time `json:"at"`
}

// Publisher accepts events for fan-out.
type Publisher interface {
    Publish(ev Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
