package grbl

import (
	"fmt"
	"strconv"
)

// errorMessages maps Grbl v1.1 numeric error codes to their human-readable
// meaning, per the upstream error_code_map.h table.
var errorMessages = map[int]string{
	1:  "G-code words consist of a letter and a value. Letter was not found",
	2:  "Numeric value format is not valid or missing an expected value",
	3:  "Grbl '$' system command was not recognized or supported",
	4:  "Negative value received for an expected positive value",
	5:  "Homing cycle is not enabled via settings",
	6:  "Minimum step pulse time must be greater than 3usec",
	7:  "EEPROM read failed, reset and restored to default values",
	8:  "Grbl '$' command cannot be used unless Grbl is IDLE",
	9:  "G-code locked out during alarm or jog state",
	10: "Soft limits cannot be enabled without homing also enabled",
	11: "Max characters per line exceeded, line was not processed",
	12: "Grbl '$' setting value exceeds the maximum step rate supported",
	13: "Safety door detected as opened and door state initiated",
	14: "Build info or startup line exceeded EEPROM line length limit",
	15: "Jog target exceeds machine travel, command ignored",
	16: "Jog command with no '=' or contains prohibited g-code",
	17: "Laser mode requires PWM output, M4 laser disable with no spindle PWM",
	20: "Unsupported or invalid g-code command found in block",
	21: "More than one g-code command from same modal group in block",
	22: "Feed rate has not yet been set or is undefined",
	23: "G-code command in block requires an integer value",
	24: "Two G-code commands that both require the use of the XYZ axis words",
	25: "A G-code word was repeated in the block",
	26: "A G-code command implicitly or explicitly requires XYZ axis words",
	27: "N line number value is not within the valid range",
	28: "A G-code command was sent, but is missing some required P or L value",
	29: "Grbl supports six work coordinate systems G54-G59, G59.1 unsupported",
	30: "The G53 command requires G0/G1 motion mode to be active",
	31: "There are unused axis words in the block and G80 motion mode cancel",
	32: "A G2 or G3 arc was commanded but there are no XYZ axis words in the plane",
	33: "The motion command has an invalid target",
	34: "A G2/G3 arc, invalid geometry, center/radius definition failure",
	35: "A G2/G3 arc curve, missing the required IJK offsets",
	36: "There are unused/extraneous value words found in block",
	37: "The G43.1 dynamic tool length offset is not assigned to configured axis",
	38: "Tool number greater than max supported value",
}

// alarmMessages maps Grbl v1.1 numeric alarm codes to their human-readable
// meaning.
var alarmMessages = map[int]string{
	1: "Hard limit triggered, machine position is likely lost",
	2: "G-code motion target exceeds machine travel, axis moves canceled",
	3: "Reset while in motion, machine position is likely lost",
	4: "Probe fail, probe not in expected initial state before probing cycle",
	5: "Probe fail, probe did not contact the workpiece within programmed distance",
	6: "Homing fail, reset during active homing cycle",
	7: "Homing fail, safety door opened during active homing cycle",
	8: "Homing fail, pull off travel failed to clear limit switch",
	9: "Homing fail, could not clear limit switch when pulling off",
}

// DecodeError renders a numeric error code as "error:N (message)", falling
// back to the bare code when the code is unknown.
func DecodeError(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return fmt.Sprintf("error:%d (%s)", code, msg)
	}
	return fmt.Sprintf("error:%d", code)
}

// DecodeAlarm renders an ALARM payload (as parsed into Response.AlarmCode)
// as "ALARM:N (message)". A non-numeric payload (grblHAL sends named
// alarms) is passed through unchanged with the ALARM: prefix restored.
func DecodeAlarm(raw string) string {
	code, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Sprintf("ALARM:%s", raw)
	}
	if msg, ok := alarmMessages[code]; ok {
		return fmt.Sprintf("ALARM:%d (%s)", code, msg)
	}
	return fmt.Sprintf("ALARM:%d", code)
}
