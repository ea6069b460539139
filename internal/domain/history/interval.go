package history

import "sort"

// AlertInterval is one active period of an alert identity. Start is nil when
// the alert was already active before the loaded window, End is nil while
// the alert is still open.
type AlertInterval struct {
	AlertID       int64  `json:"alertId"`
	DeviceID      int64  `json:"deviceId"`
	Kind          Kind   `json:"kind"`
	VehicleTypeID int64  `json:"vehicleTypeId,omitempty"`
	Start         *int64 `json:"start,omitempty"`
	End           *int64 `json:"end,omitempty"`
}

// ActiveAt reports whether ts falls in [Start, End). Left-truncated intervals
// are never active.
func (iv AlertInterval) ActiveAt(ts int64) bool {
	if iv.Start == nil || *iv.Start > ts {
		return false
	}
	return iv.End == nil || *iv.End > ts
}

// Intervals maps alert kind to alert id to interval.
type Intervals map[Kind]map[int64]*AlertInterval

// TrackIntervals folds every alert group, in row order, into one interval per
// alert identity. A start is only recorded when no interval exists yet, so a
// second start after a close does not open a new interval.
func TrackIntervals(byKind map[Kind][]Event) Intervals {
	out := Intervals{}
	for kind, events := range byKind {
		if !kind.IsAlert() || len(events) == 0 {
			continue
		}
		group := out[kind]
		if group == nil {
			group = map[int64]*AlertInterval{}
			out[kind] = group
		}
		for _, evt := range events {
			existing := group[evt.AlertID]
			ts := evt.Timestamp
			switch {
			case existing == nil && evt.AlertStarted:
				group[evt.AlertID] = newInterval(kind, evt, &ts, nil)
			case existing != nil && !evt.AlertStarted:
				merged := *existing
				merged.End = &ts
				group[evt.AlertID] = &merged
			case existing == nil && !evt.AlertStarted:
				group[evt.AlertID] = newInterval(kind, evt, nil, &ts)
			}
		}
	}
	return out
}

func newInterval(kind Kind, evt Event, start, end *int64) *AlertInterval {
	iv := &AlertInterval{
		AlertID:  evt.AlertID,
		DeviceID: evt.DeviceID,
		Kind:     kind,
		Start:    start,
		End:      end,
	}
	if kind == KindVehicle {
		iv.VehicleTypeID = evt.VehicleAlertTypeID
	}
	return iv
}

// ActiveAt returns the intervals of deviceID active at ts, ordered by kind
// then alert id.
func (in Intervals) ActiveAt(deviceID, ts int64) []AlertInterval {
	var out []AlertInterval
	for _, group := range in {
		for _, iv := range group {
			if iv.DeviceID == deviceID && iv.ActiveAt(ts) {
				out = append(out, *iv)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].AlertID < out[j].AlertID
	})
	return out
}

// ActiveKinds returns the alert kinds with at least one active interval for
// deviceID at ts.
func (in Intervals) ActiveKinds(deviceID, ts int64) []Kind {
	var out []Kind
	for _, iv := range in.ActiveAt(deviceID, ts) {
		if len(out) == 0 || out[len(out)-1] != iv.Kind {
			out = append(out, iv.Kind)
		}
	}
	return out
}

// List flattens the intervals of one kind ordered by alert id.
func (in Intervals) List(kind Kind) []AlertInterval {
	group := in[kind]
	out := make([]AlertInterval, 0, len(group))
	for _, iv := range group {
		out = append(out, *iv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertID < out[j].AlertID })
	return out
}
