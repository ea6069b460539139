package history

import "github.com/apex/log"

// Report is a device report snapshot with the alerts active at its
// timestamp.
type Report struct {
	Event
	Alerts Alerts `json:"alerts,omitempty"`
}

// Clone returns a copy that shares no alert state with r.
func (r Report) Clone() Report {
	r.Alerts = r.Alerts.Clone()
	return r
}

// SynthesizeReports produces one report per event: reports are copied as-is,
// other events borrow their owning report through report_id. Every output
// carries the alerts active for its device at the event timestamp.
func SynthesizeReports(events []Event, intervals Intervals, logger log.Interface) []Report {
	owners := firstReportsByID(events)
	out := make([]Report, 0, len(events))
	for _, evt := range events {
		var r Report
		if evt.Kind == KindReport {
			r = Report{Event: evt}
		} else if owner, ok := owners[evt.ReportID]; ok && evt.ReportID != 0 {
			r = Report{Event: owner}
		} else {
			logger.WithFields(log.Fields{
				"device_id": evt.DeviceID,
				"event":     evt.Kind,
				"report_id": evt.ReportID,
				"timestamp": evt.Timestamp,
			}).Warn("no report found for event")
			r = Report{Event: Event{Kind: KindReport, ID: evt.DeviceID, DeviceID: evt.DeviceID, Show: evt.Show}}
		}
		r.Alerts = alertsAt(intervals, evt.DeviceID, evt.Timestamp)
		r.Timestamp = evt.Timestamp
		out = append(out, r)
	}
	return out
}

// alertsAt builds the alert map of deviceID at ts; nil when nothing is
// active.
func alertsAt(intervals Intervals, deviceID, ts int64) Alerts {
	active := intervals.ActiveAt(deviceID, ts)
	if len(active) == 0 {
		return nil
	}
	alerts := Alerts{}
	alerts.mergeActive(active)
	return alerts
}

func firstReportsByID(events []Event) map[int64]Event {
	out := map[int64]Event{}
	for _, evt := range events {
		if evt.Kind != KindReport {
			continue
		}
		if _, ok := out[evt.ReportID]; !ok {
			out[evt.ReportID] = evt
		}
	}
	return out
}
