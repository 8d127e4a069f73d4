package serialport

import "strings"

/* Substrings that a USB serial adapter driver typically puts in the device
 * name. Used for the auto-detect heuristic only, an explicit port name always
 * wins. */
var usbAdapterHints = []string{
	"ttyUSB",
	"ttyACM",
	"usbserial",
	"usbmodem",
	"wchusbserial",
	"COM",
}

// ListPorts returns the serial ports currently known to the OS
func ListPorts() ([]string, error) {
	return getPortsList()
}

// FindRobotPort returns the first port that looks like a USB serial adapter.
// The second return value is false when no candidate was found.
func FindRobotPort() (string, bool) {
	ports, err := getPortsList()
	if err != nil {
		return "", false
	}

	for _, name := range ports {
		for _, hint := range usbAdapterHints {
			if strings.Contains(name, hint) {
				return name, true
			}
		}
	}

	return "", false
}
