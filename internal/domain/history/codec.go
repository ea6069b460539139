package history

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Rows is one event group of the columnar wire payload: field names are sent
// once in Template and every row of Data is positional.
type Rows struct {
	Template []string `json:"template"`
	Data     [][]any  `json:"data"`
}

// Payload maps an event kind name to its rows.
type Payload map[string]Rows

// Len returns the number of rows across all groups.
func (p Payload) Len() int {
	n := 0
	for _, rows := range p {
		n += len(rows.Data)
	}
	return n
}

// DecodeRows expands the columnar payload into events grouped by kind. Row
// order inside a group is preserved. A row shorter than its template leaves
// the trailing fields at their zero value.
func DecodeRows(p Payload) map[Kind][]Event {
	out := make(map[Kind][]Event, len(p))
	for name, rows := range p {
		kind := Kind(name)
		events := make([]Event, 0, len(rows.Data))
		for _, row := range rows.Data {
			evt := Event{Kind: kind}
			for i, field := range rows.Template {
				var v any
				if i < len(row) {
					v = row[i]
				}
				evt.set(field, v)
			}
			events = append(events, evt)
		}
		out[kind] = events
	}
	return out
}

func (e *Event) set(field string, v any) {
	switch field {
	case FieldEvent:
		// the group name is authoritative
	case FieldDeviceID:
		e.DeviceID = asInt64(v)
	case FieldTimestamp:
		e.Timestamp = asInt64(v)
	case FieldReportID:
		e.ReportID = asInt64(v)
	case FieldAlertID:
		e.AlertID = asInt64(v)
	case FieldAlertStarted:
		e.AlertStarted = asBool(v)
	case FieldGeofenceID:
		e.GeofenceID = asInt64(v)
	case FieldCargoAlertTypeID:
		e.CargoAlertTypeID = asInt64(v)
	case FieldVehicleAlertTypeID:
		e.VehicleAlertTypeID = asInt64(v)
	default:
		if v == nil {
			return
		}
		if e.Fields == nil {
			e.Fields = map[string]any{}
		}
		e.Fields[field] = v
	}
}

// EncodeRows is the inverse of DecodeRows: events are grouped by kind in
// their input order and every group gets one template covering the typed
// columns of the kind plus the union of extra field names.
func EncodeRows(events []Event) Payload {
	grouped := map[Kind][]Event{}
	order := []Kind{}
	for _, evt := range events {
		if _, ok := grouped[evt.Kind]; !ok {
			order = append(order, evt.Kind)
		}
		grouped[evt.Kind] = append(grouped[evt.Kind], evt)
	}

	out := make(Payload, len(grouped))
	for _, kind := range order {
		group := grouped[kind]
		template := templateFor(kind)
		extra := extraFieldNames(group)
		template = append(template, extra...)

		data := make([][]any, 0, len(group))
		for _, evt := range group {
			row := make([]any, 0, len(template))
			for _, field := range template {
				row = append(row, evt.get(field))
			}
			data = append(data, row)
		}
		out[string(kind)] = Rows{Template: template, Data: data}
	}
	return out
}

func extraFieldNames(events []Event) []string {
	seen := map[string]struct{}{}
	for _, evt := range events {
		for name := range evt.Fields {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e Event) get(field string) any {
	switch field {
	case FieldDeviceID:
		return e.DeviceID
	case FieldTimestamp:
		return e.Timestamp
	case FieldReportID:
		return e.ReportID
	case FieldAlertID:
		return e.AlertID
	case FieldAlertStarted:
		return e.AlertStarted
	case FieldGeofenceID:
		return e.GeofenceID
	case FieldCargoAlertTypeID:
		return e.CargoAlertTypeID
	case FieldVehicleAlertTypeID:
		return e.VehicleAlertTypeID
	default:
		return e.Fields[field]
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return int64(f)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(s, 64)
		return int64(f)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		return s == "true" || s == "1" || s == "t"
	case nil:
		return false
	default:
		return asInt64(v) != 0
	}
}
