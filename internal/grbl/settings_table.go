package grbl

import (
	"fmt"
	"strconv"
	"strings"
)

// SettingInfo names a Grbl $N setting and its unit, for annotating
// raw `$N=value` lines emitted upstream.
type SettingInfo struct {
	Name string
	Unit string
}

// settingsTable covers the commonly-documented Grbl v1.1 settings.
var settingsTable = map[int]SettingInfo{
	0:   {"Step pulse time", "microseconds"},
	1:   {"Step idle delay", "milliseconds"},
	2:   {"Step pulse invert", "mask"},
	3:   {"Step direction invert", "mask"},
	4:   {"Invert step enable pin", "boolean"},
	5:   {"Invert limit pins", "boolean"},
	6:   {"Invert probe pin", "boolean"},
	10:  {"Status report options", "mask"},
	11:  {"Junction deviation", "mm"},
	12:  {"Arc tolerance", "mm"},
	13:  {"Report in inches", "boolean"},
	20:  {"Soft limits enable", "boolean"},
	21:  {"Hard limits enable", "boolean"},
	22:  {"Homing cycle enable", "boolean"},
	23:  {"Homing direction invert", "mask"},
	24:  {"Homing locate feed rate", "mm/min"},
	25:  {"Homing search seek rate", "mm/min"},
	26:  {"Homing switch debounce delay", "milliseconds"},
	27:  {"Homing switch pull-off distance", "mm"},
	30:  {"Maximum spindle speed", "RPM"},
	31:  {"Minimum spindle speed", "RPM"},
	32:  {"Laser mode enable", "boolean"},
	100: {"X-axis travel resolution", "step/mm"},
	101: {"Y-axis travel resolution", "step/mm"},
	102: {"Z-axis travel resolution", "step/mm"},
	110: {"X-axis maximum rate", "mm/min"},
	111: {"Y-axis maximum rate", "mm/min"},
	112: {"Z-axis maximum rate", "mm/min"},
	120: {"X-axis acceleration", "mm/sec^2"},
	121: {"Y-axis acceleration", "mm/sec^2"},
	122: {"Z-axis acceleration", "mm/sec^2"},
	130: {"X-axis maximum travel", "mm"},
	131: {"Y-axis maximum travel", "mm"},
	132: {"Z-axis maximum travel", "mm"},
}

// AnnotateSetting renders a "$N=value" line with the setting's human
// name and unit appended, when the code is known. name is the raw
// SettingName field from a parsed Response (e.g. "$100"); unknown or
// unparseable codes are returned unchanged.
func AnnotateSetting(name, value string) string {
	code, err := strconv.Atoi(strings.TrimPrefix(name, "$"))
	if err != nil {
		return name + "=" + value
	}
	info, ok := settingsTable[code]
	if !ok {
		return name + "=" + value
	}
	return fmt.Sprintf("%s=%s (%s, %s)", name, value, info.Name, info.Unit)
}
