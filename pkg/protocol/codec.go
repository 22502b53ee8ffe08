package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// weightRecordSize is the wire size of one measurement record:
// float32 LE weight followed by uint32 LE timestamp.
const weightRecordSize = 8

// Notification is one decoded frame from the data characteristic.
type Notification struct {
	Type ResponseType

	// Measurements holds the decoded records of a weight-measurement frame.
	Measurements []Measurement

	// Payload is the raw command-specific payload of a command-response
	// frame (bytes from offset 2 onward). Interpretation depends on the
	// most recently dispatched command; see DecodeBatteryVoltage and
	// DecodeInfoString.
	Payload []byte
}

// EncodeCommand produces the 1-byte command frame for the control
// characteristic.
func EncodeCommand(cmd Command) []byte {
	return []byte{byte(cmd)}
}

// DecodeNotification parses a notification frame. Malformed frames return an
// error; callers at the notification boundary are expected to drop such
// frames rather than fail the stream.
//
// Weight-measurement frames declare their payload length in byte 1 and carry
// repeated 8-byte records from offset 2. Only complete records are decoded:
// a trailing partial record, whether from a short buffer or a misaligned
// declared length, is silently discarded.
func DecodeNotification(frame []byte) (*Notification, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty notification frame")
	}

	n := &Notification{Type: ResponseType(frame[0])}

	switch n.Type {
	case ResponseWeightMeasurement:
		if len(frame) < 2 {
			return nil, fmt.Errorf("weight frame missing length byte")
		}
		end := 2 + int(frame[1])
		if end > len(frame) {
			end = len(frame)
		}
		for off := 2; off+weightRecordSize <= end; off += weightRecordSize {
			n.Measurements = append(n.Measurements, Measurement{
				Weight:    math.Float32frombits(binary.LittleEndian.Uint32(frame[off:])),
				Timestamp: binary.LittleEndian.Uint32(frame[off+4:]),
			})
		}

	case ResponseCommand:
		if len(frame) > 2 {
			n.Payload = frame[2:]
		}

	case ResponseRFDPeak, ResponseRFDPeakSeries, ResponseLowPowerWarning:
		// Recognized but carrying nothing this client decodes.

	default:
		return nil, fmt.Errorf("unknown response type %d", frame[0])
	}

	return n, nil
}

// EncodeWeightMeasurements builds a weight-measurement notification frame
// containing the given records. Used by device simulators and tests; the
// real device is the only producer in production.
func EncodeWeightMeasurements(ms []Measurement) []byte {
	payload := len(ms) * weightRecordSize
	frame := make([]byte, 2, 2+payload)
	frame[0] = byte(ResponseWeightMeasurement)
	frame[1] = byte(payload)
	for _, m := range ms {
		var rec [weightRecordSize]byte
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(m.Weight))
		binary.LittleEndian.PutUint32(rec[4:], m.Timestamp)
		frame = append(frame, rec[:]...)
	}
	return frame
}

// DecodeBatteryVoltage interprets a command-response payload as the battery
// voltage in millivolts (uint32 LE).
func DecodeBatteryVoltage(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("battery voltage payload too short: %d bytes", len(payload))
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// DecodeInfoString interprets a command-response payload as a UTF-8 string
// (firmware version, error information).
func DecodeInfoString(payload []byte) string {
	return string(payload)
}
