package normalize

import (
	"github.com/google/uuid"

	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
)

// EventRecord is the canonical shape published to the "events" topic.
type EventRecord struct {
	ID        string  `json:"id"`
	IMEI      string  `json:"imei"`
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
	SerialNo  *uint32 `json:"serial_no,omitempty"`
}

// LocationRecord is the canonical shape published to the "location" topic.
type LocationRecord struct {
	ID          string  `json:"id"`
	IMEI        string  `json:"imei"`
	DeviceTime  string  `json:"device_time"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Speed       float64 `json:"speed"`
	Course      float64 `json:"course"`
	Satellites  int     `json:"satellites"`
	GPSTracking bool    `json:"gps_tracking"`
	GPSAccuracy string  `json:"gps_accuracy,omitempty"`
	Timestamp   int64   `json:"timestamp"`
	SerialNo    *uint32 `json:"serial_no,omitempty"`

	HDOP            float64 `json:"hdop,omitempty"`
	Altitude        float64 `json:"alt,omitempty"`
	Odometer        float64 `json:"odometer,omitempty"`
	TotalDistance   float64 `json:"total_distance,omitempty"`
	Temperature     string  `json:"temperature,omitempty"`
	VoltageInput    float64 `json:"voltage_input,omitempty"`
	VoltageInputRaw string  `json:"voltage_input_raw,omitempty"`
	GPSBatteryLevel float64 `json:"gps_battery_level,omitempty"`
}

// StatusRecord is the canonical shape published to the "status" topic.
type StatusRecord struct {
	ID                string          `json:"id"`
	IMEI              string          `json:"imei"`
	VoltageLevel      int             `json:"voltage_level"`
	GSMSignalStrength int             `json:"gsm_signal_strength"`
	Ignition          bool            `json:"ignition"`
	Charge            bool            `json:"charge"`
	Activated         bool            `json:"activated"`
	GPSTracking       bool            `json:"gps_tracking"`
	Events            map[string]bool `json:"events,omitempty"`
	Language          string          `json:"language,omitempty"`
	ExternalVoltage   *float64        `json:"external_voltage,omitempty"`
	Timestamp         int64           `json:"timestamp"`
	SerialNo          *uint32         `json:"serial_no,omitempty"`
}

// Records is the full set of outbound records a single decoded packet
// produces. Any field may be nil: a location frame with no fix produces
// an Event (INVALID_LOCATION) and no Location, plus a Status when the
// frame carries one (GT02, TK103); a plain status frame with no alarm
// produces a Status but no Event.
type Records struct {
	Events   []EventRecord
	Location *LocationRecord
	Status   *StatusRecord
}

// Build converts a decoded packet into its canonical outbound records.
// imei and serialNo come from the owning session, not the packet, since a
// packet decoded before login carries no identity to publish under.
func Build(pkt *packet.Packet, imei string, serialNo uint32, hasSerial bool) Records {
	var recs Records
	var serialPtr *uint32
	if hasSerial {
		s := serialNo
		serialPtr = &s
	}

	switch pkt.Kind {
	case packet.KindLogin:
		recs.Events = append(recs.Events, EventRecord{ID: uuid.NewString(), IMEI: imei, Status: "ONLINE", SerialNo: serialPtr})

	case packet.KindLocation, packet.KindAlarm:
		if pkt.Location != nil && pkt.Location.GPSTracking {
			loc := pkt.Location
			recs.Location = &LocationRecord{
				ID:              uuid.NewString(),
				IMEI:            imei,
				DeviceTime:      loc.DeviceTime.Format("2006-01-02 15:04:05"),
				Lat:             loc.Lat,
				Lng:             loc.Lng,
				Speed:           loc.Speed,
				Course:          loc.Course,
				Satellites:      loc.Satellites,
				GPSTracking:     loc.GPSTracking,
				GPSAccuracy:     loc.GPSAccuracy,
				SerialNo:        serialPtr,
				HDOP:            loc.HDOP,
				Altitude:        loc.Altitude,
				Odometer:        loc.Odometer,
				TotalDistance:   loc.TotalDistance,
				Temperature:     loc.Temperature,
				VoltageInput:    loc.VoltageInput,
				VoltageInputRaw: loc.VoltageInputRaw,
				GPSBatteryLevel: loc.GPSBatteryLevel,
			}
		} else {
			recs.Events = append(recs.Events, EventRecord{ID: uuid.NewString(), IMEI: imei, Status: "INVALID_LOCATION", SerialNo: serialPtr})
		}
		if pkt.Status != nil {
			appendStatus(&recs, pkt.Status, imei, serialPtr)
		}

	case packet.KindStatus, packet.KindAnalog:
		if pkt.Status != nil {
			appendStatus(&recs, pkt.Status, imei, serialPtr)
		}
	}

	return recs
}

func appendStatus(recs *Records, st *packet.Status, imei string, serialPtr *uint32) {
	recs.Status = &StatusRecord{
		ID:                uuid.NewString(),
		IMEI:              imei,
		VoltageLevel:      st.VoltageLevel,
		GSMSignalStrength: st.GSMSignalStrength,
		Ignition:          st.Ignition,
		Charge:            st.Charge,
		Activated:         st.Activated,
		GPSTracking:       st.GPSTracking,
		Events:            st.Events,
		Language:          st.Language,
		ExternalVoltage:   st.ExternalVoltage,
		SerialNo:          serialPtr,
	}
	if st.EventStatus != "" {
		recs.Events = append(recs.Events, EventRecord{ID: uuid.NewString(), IMEI: imei, Status: st.EventStatus, SerialNo: serialPtr})
	}
}

// Offline builds the single OFFLINE event a session publishes on termination.
func Offline(imei string, serialNo uint32, hasSerial bool) EventRecord {
	var serialPtr *uint32
	if hasSerial {
		s := serialNo
		serialPtr = &s
	}
	return EventRecord{ID: uuid.NewString(), IMEI: imei, Status: "OFFLINE", SerialNo: serialPtr}
}
