// Package device models the air-conditioner command and its delivery over
// MQTT to the Tasmota IR bridge.
package device

import "fmt"

// Temperature bounds accepted by the unit, in Celsius.
const (
	TempMin = 16
	TempMax = 32
)

// Topic is the Tasmota IR-HVAC command topic.
const Topic = "tasmota/cmnd/IRHVAC"

// QoSExactlyOnce requests the broker's highest delivery guarantee for
// climate commands.
const QoSExactlyOnce byte = 2

// Command is the variable part of an air-conditioner command: everything
// else in the vendor payload is fixed for this unit.
type Command struct {
	PowerOn     bool `json:"power_on"`
	Temperature int  `json:"temperature"`
}

// Validate rejects temperatures the unit cannot accept. Commands must be
// validated before any payload is published.
func (c Command) Validate() error {
	if c.Temperature < TempMin || c.Temperature > TempMax {
		return fmt.Errorf("temperature %d out of range [%d,%d]", c.Temperature, TempMin, TempMax)
	}
	return nil
}

// IRHVACPayload is the Tasmota IRHVAC command object. Only Power and Temp
// vary per command; the rest identifies the unit and its fixed mode.
type IRHVACPayload struct {
	Vendor   string `json:"Vendor"`
	Model    int    `json:"Model"`
	Command  string `json:"Command"`
	Mode     string `json:"Mode"`
	Power    string `json:"Power"`
	Celsius  string `json:"Celsius"`
	Temp     int    `json:"Temp"`
	FanSpeed string `json:"FanSpeed"`
	SwingV   string `json:"SwingV"`
	SwingH   string `json:"SwingH"`
}

// Payload builds the vendor command object for this command.
func (c Command) Payload() IRHVACPayload {
	power := "Off"
	if c.PowerOn {
		power = "On"
	}
	return IRHVACPayload{
		Vendor:   "HITACHI_AC344",
		Model:    -1,
		Command:  "Control",
		Mode:     "Cool",
		Power:    power,
		Celsius:  "On",
		Temp:     c.Temperature,
		FanSpeed: "Auto",
		SwingV:   "Auto",
		SwingH:   "Auto",
	}
}
