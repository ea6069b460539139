package history

import (
	"errors"
	"sort"

	"github.com/apex/log"
)

var (
	ErrNotLoaded     = errors.New("history not loaded")
	ErrInvalidQuery  = errors.New("invalid history query")
	ErrUnknownDevice = errors.New("unknown device")
)

// State is the lifecycle position of an Engine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StatePositioned    State = "positioned"
)

// DeviceOptions are the per-device display and follow flags.
type DeviceOptions struct {
	ShowTrail  bool `json:"showTrail"`
	ShowTracks bool `json:"showTracks"`
	IsFollow   bool `json:"isFollow"`
	NoEvents   bool `json:"noEvents"`
	// HasEvents remembers that the device had events in some build.
	HasEvents bool `json:"hasEvents"`
}

// PlayOptions holds the user selected playback options.
type PlayOptions struct {
	Event    map[Kind]bool           `json:"event"`
	Device   map[int64]DeviceOptions `json:"device"`
	AutoSkip bool                    `json:"autoSkip"`
}

func defaultPlayOptions() PlayOptions {
	return PlayOptions{
		Event: map[Kind]bool{
			KindEmergency: true,
			KindSpeed:     true,
			KindGeofence:  true,
			KindCargo:     true,
			KindNonReport: true,
			KindReport:    true,
			KindVehicle:   true,
		},
		Device:   map[int64]DeviceOptions{},
		AutoSkip: true,
	}
}

// Engine reconstructs device state from one loaded history window. Each
// engine is owned by a single caller; it does no locking.
type Engine struct {
	logger log.Interface

	loaded    bool
	query     Query
	master    map[Kind][]Event
	intervals Intervals
	reports   []Report

	timeline         Timeline
	cursor           *Cursor
	options          PlayOptions
	showHideNoEvents bool
	playSpeed        float64
}

type Option func(*Engine)

func WithLogger(logger log.Interface) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: log.Log}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset()
	return e
}

// Reset drops every loaded structure and returns to StateUninitialized.
func (e *Engine) Reset() {
	e.loaded = false
	e.query = Query{}
	e.master = map[Kind][]Event{}
	e.intervals = Intervals{}
	e.reports = nil
	e.timeline = Timeline{ByKind: map[Kind][]Event{}, ByTimestamp: map[int64][]Event{}, ReportsByID: map[int64]Event{}}
	e.cursor = NewCursor(e.timeline, 0, e.logger)
	e.options = defaultPlayOptions()
	e.showHideNoEvents = false
	e.playSpeed = 1
}

// Load replaces the engine state with the payload fetched for q. Nothing is
// changed when q is invalid.
func (e *Engine) Load(q Query, p Payload) error {
	if q.End < q.Start {
		return ErrInvalidQuery
	}
	devices := append([]int64(nil), q.Devices...)
	q.Devices = devices

	master := DecodeRows(p)
	intervals := TrackIntervals(master)
	reports := SynthesizeReports(sortedEvents(master, q.Start), intervals, e.logger)

	e.Reset()
	e.query = q
	e.master = master
	e.intervals = intervals
	e.reports = reports
	for _, id := range devices {
		e.options.Device[id] = DeviceOptions{ShowTracks: true, IsFollow: true}
	}
	e.loaded = true
	e.rebuild()

	e.logger.WithFields(log.Fields{
		"devices": len(devices),
		"events":  len(e.timeline.Events),
		"start":   q.Start,
		"end":     q.End,
	}).Debug("history loaded")
	return nil
}

// ResetEventStructures rebuilds the timeline from the loaded rows with the
// current device visibility. The cursor starts over.
func (e *Engine) ResetEventStructures() {
	if !e.loaded {
		return
	}
	e.rebuild()
}

func (e *Engine) rebuild() {
	e.timeline = BuildTimeline(e.master, e.query, e.showDeviceTrack)
	e.applyEventVisibility()
	e.cursor = NewCursor(e.timeline, e.query.Start, e.logger)
	e.markDevicesWithEvents()
}

func (e *Engine) showDeviceTrack(deviceID int64) bool {
	opts, ok := e.options.Device[deviceID]
	return ok && opts.ShowTracks
}

func (e *Engine) markDevicesWithEvents() {
	with := devicesWithEvents(e.timeline.Events, e.query)
	missing := 0
	for _, id := range e.query.Devices {
		opts, ok := e.options.Device[id]
		if !ok {
			continue
		}
		if with[id] {
			opts.IsFollow = true
			opts.NoEvents = false
			opts.HasEvents = true
		} else {
			missing++
			opts.IsFollow = false
			if !opts.HasEvents {
				opts.NoEvents = true
			}
		}
		e.options.Device[id] = opts
	}
	e.showHideNoEvents = missing > 0
}

func (e *Engine) State() State {
	switch {
	case !e.loaded:
		return StateUninitialized
	case e.cursor.Position() == 0:
		return StateReady
	default:
		return StatePositioned
	}
}

func (e *Engine) Query() Query { return e.query }

// Cursor exposes the playback cursor of the current build.
func (e *Engine) Cursor() *Cursor { return e.cursor }

// Events returns the time-sorted timeline.
func (e *Engine) Events() []Event { return e.timeline.Events }

// OrderedEvents returns the (timestamp, kind) ordered timeline.
func (e *Engine) OrderedEvents() []Event { return e.timeline.Ordered }

func (e *Engine) EventsByKind(kind Kind) []Event { return e.timeline.ByKind[kind] }

func (e *Engine) EventsAt(ts int64) []Event { return e.timeline.ByTimestamp[ts] }

func (e *Engine) ReportByID(reportID int64) (Event, bool) {
	r, ok := e.timeline.ReportsByID[reportID]
	return r, ok
}

func (e *Engine) Intervals() Intervals { return e.intervals }

// Reports returns the batch synthesized reports, one per loaded event.
func (e *Engine) Reports() []Report { return e.reports }

func (e *Engine) CurrentEvent() (Event, bool) { return e.cursor.CurrentEvent() }

func (e *Engine) Next(skipHidden bool) (Step, bool) { return e.cursor.Next(skipHidden) }

func (e *Engine) Prev(skipHidden bool) (Step, bool) { return e.cursor.Prev(skipHidden) }

func (e *Engine) SeekTo(ts int64) int { return e.cursor.SeekTo(ts) }

func (e *Engine) NextReport(skipHidden bool) (Event, bool) { return e.cursor.NextReport(skipHidden) }

func (e *Engine) PreviousReport(skipHidden bool) (Event, bool) {
	return e.cursor.PreviousReport(skipHidden)
}

func (e *Engine) AdjacentEvents(n int) []Event { return e.cursor.AdjacentEvents(n) }

// ReportsAt returns, per device, the latest report at or before ts with the
// alerts active at ts.
func (e *Engine) ReportsAt(ts int64) map[int64]Report {
	out := map[int64]Report{}
	for _, evt := range e.timeline.Ordered {
		if evt.Timestamp > ts {
			break
		}
		if evt.ReportID == 0 {
			continue
		}
		owner, ok := e.timeline.ReportsByID[evt.ReportID]
		if !ok {
			continue
		}
		r := Report{Event: owner, Alerts: alertsAt(e.intervals, evt.DeviceID, ts)}
		r.Timestamp = evt.Timestamp
		out[evt.DeviceID] = r
	}
	return out
}

// CurrentDeviceReports is ReportsAt for the cursor timestamp.
func (e *Engine) CurrentDeviceReports() map[int64]Report {
	return e.ReportsAt(e.cursor.CurrentTimestamp())
}

func (e *Engine) PlayOptions() PlayOptions {
	out := PlayOptions{
		Event:    make(map[Kind]bool, len(e.options.Event)),
		Device:   make(map[int64]DeviceOptions, len(e.options.Device)),
		AutoSkip: e.options.AutoSkip,
	}
	for k, v := range e.options.Event {
		out.Event[k] = v
	}
	for k, v := range e.options.Device {
		out.Device[k] = v
	}
	return out
}

func (e *Engine) DeviceOptions(deviceID int64) (DeviceOptions, bool) {
	opts, ok := e.options.Device[deviceID]
	return opts, ok
}

func (e *Engine) IsDeviceTrailOn(deviceID int64) bool {
	opts, ok := e.options.Device[deviceID]
	return ok && opts.ShowTrail
}

func (e *Engine) SetDeviceTrail(deviceID int64, on bool) error {
	opts, ok := e.options.Device[deviceID]
	if !ok {
		return ErrUnknownDevice
	}
	opts.ShowTrail = on
	e.options.Device[deviceID] = opts
	return nil
}

// SetDeviceTracks toggles whether the device takes part in playback and
// rebuilds the timeline.
func (e *Engine) SetDeviceTracks(deviceID int64, on bool) error {
	opts, ok := e.options.Device[deviceID]
	if !ok {
		return ErrUnknownDevice
	}
	opts.ShowTracks = on
	e.options.Device[deviceID] = opts
	e.ResetEventStructures()
	return nil
}

// SetEventVisible shows or hides every event of kind. Hidden events are
// still played but skipped by steps that skip hidden events.
func (e *Engine) SetEventVisible(kind Kind, on bool) {
	e.options.Event[kind] = on
	e.applyEventVisibility()
}

// applyEventVisibility stamps Show on every view of the timeline in place;
// the cursor shares the ordered and sorted slices. Kinds without an option
// stay visible.
func (e *Engine) applyEventVisibility() {
	show := func(evt *Event) {
		on, ok := e.options.Event[evt.Kind]
		evt.Show = !ok || on
	}
	for i := range e.timeline.Events {
		show(&e.timeline.Events[i])
	}
	for i := range e.timeline.Ordered {
		show(&e.timeline.Ordered[i])
	}
	for _, group := range e.timeline.ByKind {
		for i := range group {
			show(&group[i])
		}
	}
	for _, group := range e.timeline.ByTimestamp {
		for i := range group {
			show(&group[i])
		}
	}
	for id, evt := range e.timeline.ReportsByID {
		show(&evt)
		e.timeline.ReportsByID[id] = evt
	}
}

func (e *Engine) SetAutoSkip(on bool) { e.options.AutoSkip = on }

// AutoSkip reports whether stepping skips hidden events by default.
func (e *Engine) AutoSkip() bool { return e.options.AutoSkip }

// FollowedDevices lists the followed devices in ascending id order.
func (e *Engine) FollowedDevices() []int64 {
	out := []int64{}
	for id, opts := range e.options.Device {
		if opts.IsFollow {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DevicesWithEvents maps every selected device to whether it has events in
// the query window.
func (e *Engine) DevicesWithEvents() map[int64]bool {
	with := devicesWithEvents(e.timeline.Events, e.query)
	out := make(map[int64]bool, len(e.query.Devices))
	for _, id := range e.query.Devices {
		out[id] = with[id]
	}
	return out
}

// ShowHideNoEvents is true when some selected device has no events.
func (e *Engine) ShowHideNoEvents() bool { return e.showHideNoEvents }

func (e *Engine) PlaySpeed() float64 { return e.playSpeed }

func (e *Engine) SetPlaySpeed(speed float64) {
	if speed > 0 {
		e.playSpeed = speed
	}
}
