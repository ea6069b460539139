package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidAlertKind = errors.New("invalid alert kind")

// AlertSlot is the state of one alert entry on a report.
type AlertSlot struct {
	Started       bool  `json:"alert_started"`
	VehicleTypeID int64 `json:"vehicleTypeId,omitempty"`
}

// KindAlerts holds the alerts of one kind on a report. Flag-shaped kinds use
// Flag, keyed kinds use Keyed; the other field stays nil.
type KindAlerts struct {
	Flag  *AlertSlot
	Keyed map[int64]AlertSlot
}

// Active reports whether the flag is started or any keyed entry is.
func (k KindAlerts) Active() bool {
	if k.Flag != nil && k.Flag.Started {
		return true
	}
	for _, slot := range k.Keyed {
		if slot.Started {
			return true
		}
	}
	return false
}

func (k KindAlerts) clone() KindAlerts {
	out := KindAlerts{}
	if k.Flag != nil {
		flag := *k.Flag
		out.Flag = &flag
	}
	if k.Keyed != nil {
		out.Keyed = make(map[int64]AlertSlot, len(k.Keyed))
		for id, slot := range k.Keyed {
			out.Keyed[id] = slot
		}
	}
	return out
}

func (k KindAlerts) MarshalJSON() ([]byte, error) {
	if k.Keyed != nil {
		return json.Marshal(k.Keyed)
	}
	if k.Flag != nil {
		return json.Marshal(k.Flag)
	}
	return []byte("null"), nil
}

// Alerts is the per-kind alert state carried by a report.
type Alerts map[Kind]KindAlerts

func (a Alerts) Clone() Alerts {
	if a == nil {
		return nil
	}
	out := make(Alerts, len(a))
	for kind, ka := range a {
		out[kind] = ka.clone()
	}
	return out
}

// alertDelta records what one alert event changed on a snapshot so the change
// can be reverted exactly.
type alertDelta struct {
	applied   bool
	allocated bool
	kind      Kind
	sub       int64
	hadKind   bool
	hadSlot   bool
	prev      AlertSlot
}

// apply writes the open/close state of evt into the alerts of r.
func (r *Report) apply(evt Event) alertDelta {
	shape := evt.Kind.Shape()
	if shape == ShapeNone {
		return alertDelta{}
	}
	d := alertDelta{applied: true, kind: evt.Kind}
	if r.Alerts == nil {
		r.Alerts = Alerts{}
		d.allocated = true
	}

	ka, ok := r.Alerts[evt.Kind]
	d.hadKind = ok
	switch shape {
	case ShapeFlag:
		if ka.Flag != nil {
			d.hadSlot = true
			d.prev = *ka.Flag
		}
		ka.Flag = &AlertSlot{Started: evt.AlertStarted}
	case ShapeKeyed:
		d.sub = evt.SubID()
		if ka.Keyed == nil {
			ka.Keyed = map[int64]AlertSlot{}
		}
		slot, exists := ka.Keyed[d.sub]
		if exists {
			d.hadSlot = true
			d.prev = slot
		}
		slot.Started = evt.AlertStarted
		if evt.Kind == KindVehicle {
			slot.VehicleTypeID = evt.VehicleAlertTypeID
		}
		ka.Keyed[d.sub] = slot
	}
	r.Alerts[evt.Kind] = ka
	return d
}

// undo reverts a delta returned by apply on the same report.
func (r *Report) undo(d alertDelta) {
	if !d.applied {
		return
	}
	if d.allocated {
		r.Alerts = nil
		return
	}
	if !d.hadKind {
		delete(r.Alerts, d.kind)
		return
	}
	ka := r.Alerts[d.kind]
	switch d.kind.Shape() {
	case ShapeFlag:
		if d.hadSlot {
			prev := d.prev
			ka.Flag = &prev
		} else {
			ka.Flag = nil
		}
	case ShapeKeyed:
		if d.hadSlot {
			ka.Keyed[d.sub] = d.prev
		} else {
			delete(ka.Keyed, d.sub)
		}
	}
	r.Alerts[d.kind] = ka
}

// mergeActive marks every interval in active as started on the alerts.
func (a Alerts) mergeActive(active []AlertInterval) {
	for _, iv := range active {
		ka := a[iv.Kind]
		switch iv.Kind.Shape() {
		case ShapeFlag:
			ka.Flag = &AlertSlot{Started: true}
		case ShapeKeyed:
			if ka.Keyed == nil {
				ka.Keyed = map[int64]AlertSlot{}
			}
			slot := ka.Keyed[iv.AlertID]
			slot.Started = true
			if iv.Kind == KindVehicle {
				slot.VehicleTypeID = iv.VehicleTypeID
			}
			ka.Keyed[iv.AlertID] = slot
		default:
			continue
		}
		a[iv.Kind] = ka
	}
}

// HasAlert reports whether kind is active on the report. Keyed kinds are
// active when any entry is started.
func HasAlert(r Report, kind Kind) (bool, error) {
	if !kind.IsAlert() {
		return false, fmt.Errorf("%w: %q", ErrInvalidAlertKind, kind)
	}
	ka, ok := r.Alerts[kind]
	if !ok {
		return false, nil
	}
	return ka.Active(), nil
}

// HasAlertCheckForReport is HasAlert for a report that may be missing, as
// returned by the lookups of synthesized reports.
func HasAlertCheckForReport(r *Report, kind Kind) (bool, error) {
	if !kind.IsAlert() {
		return false, fmt.Errorf("%w: %q", ErrInvalidAlertKind, kind)
	}
	if r == nil {
		return false, nil
	}
	return HasAlert(*r, kind)
}

// VehicleAlertTypeIDs lists the vehicle alert types started on the report.
func VehicleAlertTypeIDs(r Report) []int64 {
	ka, ok := r.Alerts[KindVehicle]
	if !ok {
		return nil
	}
	seen := map[int64]struct{}{}
	for _, slot := range ka.Keyed {
		if slot.Started {
			seen[slot.VehicleTypeID] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
