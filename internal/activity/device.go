package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"homebot/internal/device"
	"homebot/internal/homeassistant"
)

// Home Assistant entity ids for the sensors this bot can read.
const (
	innerDoorEntity       = "binary_sensor.1f_inner_door_contact"
	bedroomPresenceEntity = "binary_sensor.athom_presence_sensor_9bd330_occupancy"
)

// StateReader reads an entity's current state from Home Assistant.
type StateReader interface {
	GetState(ctx context.Context, entityID string) (homeassistant.State, error)
}

// DeviceActivities executes device commands and sensor reads.
type DeviceActivities struct {
	publisher device.Publisher
	states    StateReader
	logger    *slog.Logger
}

func NewDeviceActivities(publisher device.Publisher, states StateReader, logger *slog.Logger) *DeviceActivities {
	return &DeviceActivities{publisher: publisher, states: states, logger: logger}
}

// ControlAirConditioner validates the command and publishes its vendor
// payload to the IR bridge. Success means the broker accepted the publish,
// not that the unit confirmed.
func (a *DeviceActivities) ControlAirConditioner(ctx context.Context, cmd device.Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(cmd.Payload())
	if err != nil {
		return "", fmt.Errorf("marshal aircon payload: %w", err)
	}
	if err := a.publisher.Publish(ctx, device.Topic, device.QoSExactlyOnce, payload); err != nil {
		return "", err
	}
	a.logger.Info("aircon command published", "power_on", cmd.PowerOn, "temperature", cmd.Temperature)
	if cmd.PowerOn {
		return fmt.Sprintf("air conditioner turned on, cooling to %d degrees", cmd.Temperature), nil
	}
	return "air conditioner turned off", nil
}

// CheckInnerDoor reports the inner door contact state as-is.
func (a *DeviceActivities) CheckInnerDoor(ctx context.Context) (string, error) {
	state, err := a.states.GetState(ctx, innerDoorEntity)
	if err != nil {
		return "", err
	}
	return state.State, nil
}

// CheckBedroomPresence reports whether someone is in the bedroom: the
// sensor's "on"/"off" becomes "yes"/"no", anything else passes through.
func (a *DeviceActivities) CheckBedroomPresence(ctx context.Context) (string, error) {
	state, err := a.states.GetState(ctx, bedroomPresenceEntity)
	if err != nil {
		return "", err
	}
	switch state.State {
	case "on":
		return "yes", nil
	case "off":
		return "no", nil
	default:
		return state.State, nil
	}
}
