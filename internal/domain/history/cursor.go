package history

import (
	"sort"

	"github.com/apex/log"
)

const defaultAdjacent = 5

// Step is the outcome of moving the cursor by one event.
type Step struct {
	// Event is the event consumed going forward or undone going backward.
	Event Event `json:"event"`
	// Report is the device snapshot after the move; HasReport is false when
	// the device has no report left on its stack.
	Report    Report `json:"report"`
	HasReport bool   `json:"has_report"`
}

type progressEntry struct {
	event Event
	delta alertDelta
}

// Cursor plays a timeline forward and backward while keeping, per device, a
// stack of report snapshots. Every forward move records what it changed so
// the matching backward move restores the previous state exactly. A Cursor
// is not safe for concurrent use.
type Cursor struct {
	ordered []Event
	sorted  []Event
	origin  int64
	logger  log.Interface

	progress         []progressEntry
	reports          map[int64][]Report
	currentTimestamp int64
	anomalies        int
}

func NewCursor(tl Timeline, origin int64, logger log.Interface) *Cursor {
	if logger == nil {
		logger = log.Log
	}
	return &Cursor{
		ordered:          tl.Ordered,
		sorted:           tl.Events,
		origin:           origin,
		logger:           logger,
		reports:          map[int64][]Report{},
		currentTimestamp: origin,
	}
}

// Position is the number of events played so far.
func (c *Cursor) Position() int { return len(c.progress) }

func (c *Cursor) Len() int { return len(c.ordered) }

// Anomalies counts events skipped because their device had no report yet.
func (c *Cursor) Anomalies() int { return c.anomalies }

func (c *Cursor) CurrentTimestamp() int64 { return c.currentTimestamp }

// SetCurrentTimestamp moves the reference point of NextReport and
// PreviousReport without playing any event.
func (c *Cursor) SetCurrentTimestamp(ts int64) { c.currentTimestamp = ts }

func (c *Cursor) CurrentEvent() (Event, bool) {
	if len(c.progress) == 0 {
		return Event{}, false
	}
	return c.ordered[len(c.progress)-1], true
}

// PeekNext returns the event the next forward step would play.
func (c *Cursor) PeekNext() (Event, bool) {
	if len(c.progress) >= len(c.ordered) {
		return Event{}, false
	}
	return c.ordered[len(c.progress)], true
}

// Next plays the next event. Reports push a new snapshot that inherits the
// alerts of the previous snapshot of the device; alert events update the top
// snapshot of their device. Events of a device without a report are skipped,
// as are hidden events when skipHidden is set.
func (c *Cursor) Next(skipHidden bool) (Step, bool) {
	for {
		evt, ok := c.PeekNext()
		if !ok {
			return Step{}, false
		}
		entry := progressEntry{event: evt}
		step := Step{Event: evt}

		if evt.Kind == KindReport {
			step.Report, step.HasReport = c.pushReport(evt), true
		} else if top := c.top(evt.DeviceID); top != nil {
			entry.delta = top.apply(evt)
			step.Report, step.HasReport = top.Clone(), true
		} else {
			c.dangling(evt)
		}

		c.progress = append(c.progress, entry)
		c.currentTimestamp = evt.Timestamp

		if !step.HasReport || (skipHidden && !evt.Show) {
			continue
		}
		return step, true
	}
}

// Prev undoes the last played event and returns the device snapshot that is
// current afterwards.
func (c *Cursor) Prev(skipHidden bool) (Step, bool) {
	for {
		if len(c.progress) == 0 {
			return Step{}, false
		}
		entry := c.progress[len(c.progress)-1]
		c.progress = c.progress[:len(c.progress)-1]
		// visibility may have changed since the event was played
		evt := c.ordered[len(c.progress)]
		step := Step{Event: evt}
		dangling := false

		if evt.Kind == KindReport {
			c.popReport(evt.DeviceID)
			if top := c.top(evt.DeviceID); top != nil {
				step.Report, step.HasReport = top.Clone(), true
			}
		} else if top := c.top(evt.DeviceID); top != nil {
			top.undo(entry.delta)
			step.Report, step.HasReport = top.Clone(), true
		} else {
			// already counted when it was played
			dangling = true
		}

		if current, ok := c.CurrentEvent(); ok {
			c.currentTimestamp = current.Timestamp
		} else {
			c.currentTimestamp = c.origin
		}

		if dangling || (skipHidden && !evt.Show) {
			continue
		}
		return step, true
	}
}

// SeekTo plays forward or backward until the last played event is the last
// one at or before ts. It returns the number of events moved.
func (c *Cursor) SeekTo(ts int64) int {
	moved := 0
	for {
		next, ok := c.PeekNext()
		if !ok || next.Timestamp > ts {
			break
		}
		c.forwardOne()
		moved++
	}
	for {
		current, ok := c.CurrentEvent()
		if !ok || current.Timestamp <= ts {
			break
		}
		c.backwardOne()
		moved++
	}
	c.currentTimestamp = ts
	return moved
}

func (c *Cursor) forwardOne() {
	evt := c.ordered[len(c.progress)]
	entry := progressEntry{event: evt}
	if evt.Kind == KindReport {
		c.pushReport(evt)
	} else if top := c.top(evt.DeviceID); top != nil {
		entry.delta = top.apply(evt)
	} else {
		c.dangling(evt)
	}
	c.progress = append(c.progress, entry)
}

func (c *Cursor) backwardOne() {
	entry := c.progress[len(c.progress)-1]
	c.progress = c.progress[:len(c.progress)-1]
	if entry.event.Kind == KindReport {
		c.popReport(entry.event.DeviceID)
	} else if top := c.top(entry.event.DeviceID); top != nil {
		top.undo(entry.delta)
	}
}

// NextReport returns the first event strictly after the current timestamp,
// the first visible one when skipHidden is set. The cursor does not move.
func (c *Cursor) NextReport(skipHidden bool) (Event, bool) {
	i := sort.Search(len(c.ordered), func(i int) bool {
		return c.ordered[i].Timestamp > c.currentTimestamp
	})
	for ; i < len(c.ordered); i++ {
		if !skipHidden || c.ordered[i].Show {
			return c.ordered[i], true
		}
	}
	return Event{}, false
}

// PreviousReport returns the nearest event strictly before the current
// timestamp, the nearest visible one when skipHidden is set.
func (c *Cursor) PreviousReport(skipHidden bool) (Event, bool) {
	i := sort.Search(len(c.ordered), func(i int) bool {
		return c.ordered[i].Timestamp >= c.currentTimestamp
	})
	for i--; i >= 0; i-- {
		if !skipHidden || c.ordered[i].Show {
			return c.ordered[i], true
		}
	}
	return Event{}, false
}

// FirstReportTimestamp is the timestamp of the first playable event.
func (c *Cursor) FirstReportTimestamp() (int64, bool) {
	if len(c.ordered) == 0 {
		return 0, false
	}
	return c.ordered[0].Timestamp, true
}

// AdjacentEvents returns up to 2n events around the position of the current
// event timestamp in the time-sorted sequence. n <= 0 means 5.
func (c *Cursor) AdjacentEvents(n int) []Event {
	if n <= 0 {
		n = defaultAdjacent
	}
	current, ok := c.CurrentEvent()
	if !ok {
		return []Event{}
	}
	index := sort.Search(len(c.sorted), func(i int) bool {
		return c.sorted[i].Timestamp >= current.Timestamp
	})
	lo, hi := index-n, index+n
	if lo < 0 {
		lo = 0
	}
	if hi > len(c.sorted) {
		hi = len(c.sorted)
	}
	out := make([]Event, hi-lo)
	copy(out, c.sorted[lo:hi])
	return out
}

// CurrentReport is the top snapshot of the device of the current event.
func (c *Cursor) CurrentReport() (Report, bool) {
	current, ok := c.CurrentEvent()
	if !ok {
		return Report{}, false
	}
	top := c.top(current.DeviceID)
	if top == nil {
		return Report{}, false
	}
	return top.Clone(), true
}

// PastReport is the snapshot below the top of the device stack, only when
// the current event is a report.
func (c *Cursor) PastReport() (Report, bool) {
	current, ok := c.CurrentEvent()
	if !ok || current.Kind != KindReport {
		return Report{}, false
	}
	stack := c.reports[current.DeviceID]
	if len(stack) < 2 {
		return Report{}, false
	}
	return stack[len(stack)-2].Clone(), true
}

// DeviceReport is the top snapshot of one device.
func (c *Cursor) DeviceReport(deviceID int64) (Report, bool) {
	top := c.top(deviceID)
	if top == nil {
		return Report{}, false
	}
	return top.Clone(), true
}

// PastDeviceReports returns a copy of every device stack.
func (c *Cursor) PastDeviceReports() map[int64][]Report {
	out := make(map[int64][]Report, len(c.reports))
	for deviceID, stack := range c.reports {
		copied := make([]Report, len(stack))
		for i, r := range stack {
			copied[i] = r.Clone()
		}
		out[deviceID] = copied
	}
	return out
}

func (c *Cursor) top(deviceID int64) *Report {
	stack := c.reports[deviceID]
	if len(stack) == 0 {
		return nil
	}
	return &stack[len(stack)-1]
}

func (c *Cursor) pushReport(evt Event) Report {
	snapshot := Report{Event: evt}
	if prev := c.top(evt.DeviceID); prev != nil {
		snapshot.Alerts = prev.Alerts.Clone()
	}
	c.reports[evt.DeviceID] = append(c.reports[evt.DeviceID], snapshot)
	return snapshot.Clone()
}

func (c *Cursor) popReport(deviceID int64) {
	stack := c.reports[deviceID]
	if len(stack) == 0 {
		return
	}
	stack[len(stack)-1] = Report{}
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(c.reports, deviceID)
		return
	}
	c.reports[deviceID] = stack
}

func (c *Cursor) dangling(evt Event) {
	c.anomalies++
	c.logger.WithFields(log.Fields{
		"device_id": evt.DeviceID,
		"event":     evt.Kind,
		"index":     evt.Index,
		"timestamp": evt.Timestamp,
	}).Warn("could not find the corresponding report for event")
}
