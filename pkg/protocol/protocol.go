// Package protocol implements the Tindeq Progressor wire protocol: the
// single-byte command opcodes written to the control characteristic and the
// framed notifications delivered on the data characteristic.
package protocol

import "fmt"

// Progressor GATT service and characteristic UUIDs.
//
// DataCharUUID is the notify characteristic carrying measurement and
// command-response frames; ControlCharUUID is the single write characteristic
// accepting opcodes.
const (
	ServiceUUID     = "7e4e1701-1ea6-40c9-9dcc-13d34ffead57"
	DataCharUUID    = "7e4e1702-1ea6-40c9-9dcc-13d34ffead57"
	ControlCharUUID = "7e4e1703-1ea6-40c9-9dcc-13d34ffead57"
)

// DefaultNamePrefix is the advertised local-name prefix of Progressor devices.
const DefaultNamePrefix = "Progressor"

// Command is a single-byte Progressor opcode. Commands carry no payload.
type Command byte

const (
	CmdTareScale              Command = 100
	CmdStartWeightMeasurement Command = 101
	CmdStopWeightMeasurement  Command = 102
	CmdStartPeakRFD           Command = 103
	CmdStartPeakRFDSeries     Command = 104
	CmdAddCalibrationPoint    Command = 105
	CmdSaveCalibration        Command = 106
	CmdGetAppVersion          Command = 107
	CmdGetErrorInfo           Command = 108
	CmdClearErrorInfo         Command = 109
	CmdEnterSleep             Command = 110
	CmdGetBatteryVoltage      Command = 111
)

var commandNames = map[Command]string{
	CmdTareScale:              "tare_scale",
	CmdStartWeightMeasurement: "start_weight_measurement",
	CmdStopWeightMeasurement:  "stop_weight_measurement",
	CmdStartPeakRFD:           "start_peak_rfd",
	CmdStartPeakRFDSeries:     "start_peak_rfd_series",
	CmdAddCalibrationPoint:    "add_calibration_point",
	CmdSaveCalibration:        "save_calibration",
	CmdGetAppVersion:          "get_app_version",
	CmdGetErrorInfo:           "get_error_information",
	CmdClearErrorInfo:         "clear_error_information",
	CmdEnterSleep:             "enter_sleep",
	CmdGetBatteryVoltage:      "get_battery_voltage",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown_command(%d)", byte(c))
}

// Valid reports whether c is part of the Progressor command set.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// ResponseType is the first byte of every notification frame.
type ResponseType byte

const (
	ResponseCommand           ResponseType = 0
	ResponseWeightMeasurement ResponseType = 1
	ResponseRFDPeak           ResponseType = 2
	ResponseRFDPeakSeries     ResponseType = 3
	ResponseLowPowerWarning   ResponseType = 4
)

func (r ResponseType) String() string {
	switch r {
	case ResponseCommand:
		return "command_response"
	case ResponseWeightMeasurement:
		return "weight_measurement"
	case ResponseRFDPeak:
		return "rfd_peak"
	case ResponseRFDPeakSeries:
		return "rfd_peak_series"
	case ResponseLowPowerWarning:
		return "low_power_warning"
	default:
		return fmt.Sprintf("unknown_response(%d)", byte(r))
	}
}

// Measurement is a single force sample produced by the device.
//
// Weight is in kilograms. Timestamp is the device's own microsecond clock;
// it is never reinterpreted against wall time by this package.
type Measurement struct {
	Weight    float32 `json:"weight"`
	Timestamp uint32  `json:"timestamp"`
}

// DeviceInfo accumulates the responses of the info commands over one
// connection session. Fields are nil until the corresponding response has
// been received; the struct is merged incrementally, never clobbered.
type DeviceInfo struct {
	FirmwareVersion *string `json:"firmware_version,omitempty"`
	BatteryVoltage  *uint32 `json:"battery_voltage_mv,omitempty"`
	ErrorInfo       *string `json:"error_info,omitempty"`
}
