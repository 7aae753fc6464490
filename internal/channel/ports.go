package channel

import "go.bug.st/serial"

// DefaultPort is offered when no serial ports are detected.
const DefaultPort = "COM1"

// DefaultBaudRate is the rate preselected by the host.
const DefaultBaudRate = 1000000

// StandardBaudRates lists the rates offered by the host's selector.
var StandardBaudRates = []int{
	300, 1200, 2400, 4800, 9600, 19200,
	38400, 57600, 74880, 115200, 230400,
	250000, 500000, 1000000, 2000000,
}

// ListPorts returns the detected serial port names, or DefaultPort when
// enumeration fails or finds nothing.
func ListPorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil || len(ports) == 0 {
		return []string{DefaultPort}
	}
	return ports
}
