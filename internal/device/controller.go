package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicecontrol/internal/observability"
)

var ErrUnsupportedAction = errors.New("unsupported device action")

const levelStep = 10.0

// Publisher pushes a command to the device transport. A nil Publisher means
// the deployment runs without a broker; state is still tracked.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Controller applies actions to devices: it computes the next state,
// publishes it to the device's command topic and persists the result.
type Controller struct {
	repo      *Repository
	publisher Publisher
	logger    *observability.Logger
}

func NewController(repo *Repository, publisher Publisher, logger *observability.Logger) *Controller {
	return &Controller{repo: repo, publisher: publisher, logger: logger}
}

// Control executes action on the owner's device and returns the resulting
// state. Level actions clamp to the 0..100 range.
func (c *Controller) Control(ctx context.Context, ownerID, deviceID, action string, value *float64) (Device, error) {
	d, err := c.repo.GetByDeviceID(ctx, ownerID, deviceID)
	if err != nil {
		return Device{}, err
	}

	state := d.State
	if state == nil {
		state = map[string]any{}
	}

	switch action {
	case "on":
		state["power"] = true
	case "off":
		state["power"] = false
	case "toggle":
		power, _ := state["power"].(bool)
		state["power"] = !power
	case "set":
		if value == nil {
			return Device{}, fmt.Errorf("%w: set requires a value", ErrUnsupportedAction)
		}
		state["level"] = clampLevel(*value)
		state["power"] = true
	case "increase":
		state["level"] = clampLevel(currentLevel(state) + levelStep)
		state["power"] = true
	case "decrease":
		state["level"] = clampLevel(currentLevel(state) - levelStep)
	default:
		return Device{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}

	if c.publisher != nil {
		topic := fmt.Sprintf("devices/%s/set", d.DeviceID)
		if err := c.publisher.Publish(ctx, topic, state); err != nil {
			c.logger.Warn("device_publish_failed", map[string]any{
				"device_id": d.DeviceID,
				"error":     err.Error(),
			})
			if uerr := c.repo.UpdateState(ctx, ownerID, deviceID, state, StatusError); uerr != nil {
				return Device{}, uerr
			}
			return Device{}, fmt.Errorf("publish device command: %w", err)
		}
	}

	if err := c.repo.UpdateState(ctx, ownerID, deviceID, state, StatusOnline); err != nil {
		return Device{}, err
	}

	d.State = state
	d.Status = StatusOnline
	now := time.Now().UTC()
	d.LastSeen = &now

	return d, nil
}

func currentLevel(state map[string]any) float64 {
	switch v := state["level"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func clampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
