package playback

import "trackhistory/internal/domain/history"

const (
	DirectionNext = "next"
	DirectionPrev = "prev"
)

type LoadRequest struct {
	// SessionID reloads an existing session when set.
	SessionID string  `json:"session_id,omitempty"`
	Devices   []int64 `json:"devices"`
	Start     int64   `json:"start"`
	End       int64   `json:"end"`
}

type LoadResponse struct {
	SessionID        string                           `json:"session_id"`
	State            history.State                    `json:"state"`
	Events           int                              `json:"events"`
	Devices          map[int64]history.DeviceOptions `json:"devices"`
	ShowHideNoEvents bool                             `json:"show_hide_no_events"`
	FirstTimestamp   *int64                           `json:"first_timestamp,omitempty"`
}

type EventsRequest struct {
	SessionID string
	// Kind limits the result to one event kind when set.
	Kind history.Kind
}

type EventsResponse struct {
	Events []history.Event `json:"events"`
}

type EventsAtRequest struct {
	SessionID string
	Timestamp int64
}

type ReportByIDRequest struct {
	SessionID string
	ReportID  int64
}

type ReportByIDResponse struct {
	Report history.Event `json:"report"`
}

type ReportsAtRequest struct {
	SessionID string
	// At defaults to the cursor timestamp.
	At *int64
}

type ReportsAtResponse struct {
	Timestamp int64                    `json:"timestamp"`
	Reports   map[int64]history.Report `json:"reports"`
}

type AllReportsRequest struct {
	SessionID string
	// DeviceID limits the result to one device when set.
	DeviceID      *int64
	WithIntervals bool
}

type AllReportsResponse struct {
	Reports   []history.Report        `json:"reports"`
	Intervals []history.AlertInterval `json:"intervals,omitempty"`
}

type AlertRequest struct {
	SessionID string
	DeviceID  int64
	Kind      history.Kind
}

type AlertResponse struct {
	DeviceID         int64        `json:"device_id"`
	Kind             history.Kind `json:"kind"`
	Active           bool         `json:"active"`
	HasReport        bool         `json:"has_report"`
	ReportID         int64        `json:"report_id,omitempty"`
	CurrentTimestamp int64        `json:"current_timestamp"`
}

type StepRequest struct {
	SessionID  string
	Direction  string
	SkipHidden bool
}

type StepResponse struct {
	Moved            bool            `json:"moved"`
	Event            *history.Event  `json:"event,omitempty"`
	Report           *history.Report `json:"report,omitempty"`
	Position         int             `json:"position"`
	CurrentTimestamp int64           `json:"current_timestamp"`
	State            history.State   `json:"state"`
}

type SeekRequest struct {
	SessionID string
	To        int64
}

type SeekResponse struct {
	Moved            int           `json:"moved"`
	Position         int           `json:"position"`
	CurrentTimestamp int64         `json:"current_timestamp"`
	State            history.State `json:"state"`
}

type BoundaryRequest struct {
	SessionID  string
	Direction  string
	SkipHidden bool
}

type BoundaryResponse struct {
	Found bool           `json:"found"`
	Event *history.Event `json:"event,omitempty"`
}

type AdjacentRequest struct {
	SessionID string
	N         int
}

type CurrentRequest struct {
	SessionID string
}

type CurrentResponse struct {
	Event            *history.Event  `json:"event,omitempty"`
	Report           *history.Report `json:"report,omitempty"`
	PastReport       *history.Report `json:"past_report,omitempty"`
	VehicleAlerts    []int64         `json:"vehicle_alert_type_ids,omitempty"`
	Position         int             `json:"position"`
	Total            int             `json:"total"`
	CurrentTimestamp int64           `json:"current_timestamp"`
	State            history.State   `json:"state"`
	FollowedDevices  []int64         `json:"followed_devices"`
	PlaySpeed        float64         `json:"play_speed"`
	Anomalies        int             `json:"anomalies"`
}

type DevicesRequest struct {
	SessionID string
}

type DevicesResponse struct {
	Devices          map[int64]history.DeviceOptions `json:"devices"`
	WithEvents       map[int64]bool                   `json:"with_events"`
	ShowHideNoEvents bool                             `json:"show_hide_no_events"`
}

type UpdateDeviceRequest struct {
	SessionID  string `json:"-"`
	DeviceID   int64  `json:"-"`
	ShowTrail  *bool  `json:"show_trail,omitempty"`
	ShowTracks *bool  `json:"show_tracks,omitempty"`
}

type UpdatePlaybackRequest struct {
	SessionID string                `json:"-"`
	PlaySpeed *float64              `json:"play_speed,omitempty"`
	AutoSkip  *bool                 `json:"auto_skip,omitempty"`
	Events    map[history.Kind]bool `json:"events,omitempty"`
}

type PlaybackResponse struct {
	Options   history.PlayOptions `json:"options"`
	PlaySpeed float64             `json:"play_speed"`
}

type CloseRequest struct {
	SessionID string
}
