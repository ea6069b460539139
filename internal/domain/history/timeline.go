package history

import "sort"

// Query is the loaded time range and device selection.
type Query struct {
	Devices []int64 `json:"devices"`
	Start   int64   `json:"start"`
	End     int64   `json:"end"`
}

// Timeline is the set of derived sequences built from the decoded groups.
type Timeline struct {
	// Events is sorted by timestamp and drives boundary and adjacency lookups.
	Events []Event
	// Ordered is sorted by (timestamp, kind) and is what the cursor plays.
	Ordered     []Event
	ByKind      map[Kind][]Event
	ByTimestamp map[int64][]Event
	// ReportsByID keeps the first report of each report id.
	ReportsByID map[int64]Event
}

// BuildTimeline merges the groups into one time-ordered sequence, trims a
// single leading event older than the query start, drops events of devices
// that are not visible and annotates the survivors.
func BuildTimeline(byKind map[Kind][]Event, q Query, visible func(deviceID int64) bool) Timeline {
	sorted := sortedEvents(byKind, q.Start)

	events := make([]Event, 0, len(sorted))
	for _, evt := range sorted {
		if visible(evt.DeviceID) {
			events = append(events, evt)
		}
	}
	for i := range events {
		events[i].Index = i
		events[i].ID = events[i].DeviceID
		events[i].Show = true
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].Kind < ordered[j].Kind
	})

	filtered := make(map[Kind][]Event, len(byKind))
	for kind := range byKind {
		filtered[kind] = []Event{}
	}
	reports := map[int64]Event{}
	for _, evt := range events {
		filtered[evt.Kind] = append(filtered[evt.Kind], evt)
		if _, seen := reports[evt.ReportID]; evt.Kind == KindReport && !seen {
			reports[evt.ReportID] = evt
		}
	}

	byTimestamp := make(map[int64][]Event)
	for _, evt := range events {
		byTimestamp[evt.Timestamp] = append(byTimestamp[evt.Timestamp], evt)
	}

	return Timeline{
		Events:      events,
		Ordered:     ordered,
		ByKind:      filtered,
		ByTimestamp: byTimestamp,
		ReportsByID: reports,
	}
}

// sortedEvents concatenates the groups in kind-name order, stable-sorts them
// by timestamp and drops the first event when it precedes start. Only that
// one event is dropped even if more precede start.
func sortedEvents(byKind map[Kind][]Event, start int64) []Event {
	kinds := make([]Kind, 0, len(byKind))
	total := 0
	for kind, group := range byKind {
		kinds = append(kinds, kind)
		total += len(group)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	all := make([]Event, 0, total)
	for _, kind := range kinds {
		all = append(all, byKind[kind]...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })

	if len(all) > 0 && all[0].Timestamp < start {
		all = all[1:]
	}
	return all
}

// devicesWithEvents returns the devices having at least one event inside
// [q.Start, q.End].
func devicesWithEvents(events []Event, q Query) map[int64]bool {
	out := map[int64]bool{}
	for _, evt := range events {
		if evt.Timestamp >= q.Start && evt.Timestamp <= q.End {
			out[evt.DeviceID] = true
		}
	}
	return out
}
