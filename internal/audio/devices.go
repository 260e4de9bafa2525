// Package audio handles input-device discovery, PCM capture, and live level
// metering for the practice client.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns available Pulse input sources with default and
// availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("prepmate"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves the configured input preference against live devices.
func SelectDevice(ctx context.Context, preferred string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectFromList(devices, preferred)
}

// selectFromList picks the preferred device when usable, otherwise falls back
// to the default source with a warning.
func selectFromList(devices []Device, preferred string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	preferred = strings.TrimSpace(strings.ToLower(preferred))

	var defaultDevice *Device
	var match *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if match == nil && preferred != "" && preferred != "default" && deviceMatches(*dev, preferred) {
			match = dev
		}
	}

	if preferred == "" || preferred == "default" {
		match = defaultDevice
		if match == nil {
			return Selection{}, errors.New("default audio source is unavailable")
		}
	} else if match == nil {
		return Selection{}, fmt.Errorf("audio input %q did not match any device", preferred)
	}

	if match.Available && !match.Muted {
		return Selection{Device: *match}, nil
	}

	reason := "unavailable"
	if match.Muted {
		reason = "muted"
	}
	if defaultDevice == nil || defaultDevice.ID == match.ID {
		return Selection{}, fmt.Errorf("audio input %q is %s and no usable fallback exists", match.ID, reason)
	}
	if !defaultDevice.Available || defaultDevice.Muted {
		return Selection{}, fmt.Errorf("audio input %q is %s and the default source is unusable", match.ID, reason)
	}

	return Selection{
		Device:   *defaultDevice,
		Warning:  fmt.Sprintf("audio input %q is %s; falling back to %q", match.ID, reason, defaultDevice.ID),
		Fallback: true,
	}, nil
}

// deviceMatches reports whether a search term matches a device id or
// description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
