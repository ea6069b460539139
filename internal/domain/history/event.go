package history

// Kind names an event group of the history payload.
type Kind string

const (
	KindReport    Kind = "report"
	KindEmergency Kind = "emergency"
	KindSpeed     Kind = "speed"
	KindGeofence  Kind = "geofence"
	KindCargo     Kind = "cargo"
	KindNonReport Kind = "non_report"
	KindVehicle   Kind = "vehicle"
)

// AlertKinds lists every alert kind in kind-name order.
var AlertKinds = []Kind{KindCargo, KindEmergency, KindGeofence, KindNonReport, KindSpeed, KindVehicle}

// Shape is the layout an alert kind takes inside a report.
type Shape int

const (
	ShapeNone Shape = iota
	// ShapeFlag kinds carry a single started flag per report.
	ShapeFlag
	// ShapeKeyed kinds carry one entry per sub-identifier.
	ShapeKeyed
)

func (k Kind) Shape() Shape {
	switch k {
	case KindEmergency, KindNonReport:
		return ShapeFlag
	case KindGeofence, KindSpeed, KindCargo, KindVehicle:
		return ShapeKeyed
	default:
		return ShapeNone
	}
}

func (k Kind) IsAlert() bool {
	return k.Shape() != ShapeNone
}

// Wire column names.
const (
	FieldEvent              = "event"
	FieldDeviceID           = "device_id"
	FieldTimestamp          = "event_timestamp"
	FieldReportID           = "report_id"
	FieldAlertID            = "alert_id"
	FieldAlertStarted       = "alert_started"
	FieldGeofenceID         = "geofence_id"
	FieldCargoAlertTypeID   = "cargo_alert_type_id"
	FieldVehicleAlertTypeID = "vehicle_alert_type_id"
)

// Event is one decoded history row. Events are treated as immutable once the
// timeline annotated them; Fields is shared between copies and never written.
type Event struct {
	Kind               Kind           `json:"event"`
	ID                 int64          `json:"id"`
	DeviceID           int64          `json:"device_id"`
	Timestamp          int64          `json:"event_timestamp"`
	ReportID           int64          `json:"report_id,omitempty"`
	AlertID            int64          `json:"alert_id,omitempty"`
	AlertStarted       bool           `json:"alert_started"`
	GeofenceID         int64          `json:"geofence_id,omitempty"`
	CargoAlertTypeID   int64          `json:"cargo_alert_type_id,omitempty"`
	VehicleAlertTypeID int64          `json:"vehicle_alert_type_id,omitempty"`
	Fields             map[string]any `json:"fields,omitempty"`
	Show               bool           `json:"show"`
	Index              int            `json:"index"`
}

// SubID returns the identifier a keyed alert kind files this event under.
func (e Event) SubID() int64 {
	switch e.Kind {
	case KindGeofence, KindSpeed:
		return e.GeofenceID
	case KindCargo:
		return e.CargoAlertTypeID
	case KindVehicle:
		return e.VehicleAlertTypeID
	default:
		return 0
	}
}

func templateFor(kind Kind) []string {
	base := []string{FieldDeviceID, FieldTimestamp, FieldReportID}
	switch kind {
	case KindReport:
		return base
	case KindEmergency, KindNonReport:
		return append(base, FieldAlertID, FieldAlertStarted)
	case KindGeofence, KindSpeed:
		return append(base, FieldAlertID, FieldAlertStarted, FieldGeofenceID)
	case KindCargo:
		return append(base, FieldAlertID, FieldAlertStarted, FieldCargoAlertTypeID)
	case KindVehicle:
		return append(base, FieldAlertID, FieldAlertStarted, FieldVehicleAlertTypeID)
	default:
		return append(base, FieldAlertID, FieldAlertStarted)
	}
}
