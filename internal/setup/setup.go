// Package setup handles interactive first-run configuration: picking
// the display backend, naming the touch output and optionally pinning
// the touch input device.
package setup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/spf13/viper"

	"github.com/touchmapd/touchmapd/internal/config"
	"github.com/touchmapd/touchmapd/internal/device"
	"github.com/touchmapd/touchmapd/internal/logger"
	"github.com/touchmapd/touchmapd/internal/permission"
)

// DeviceInfo describes one evdev pointer device.
type DeviceInfo struct {
	Path        string
	Name        string
	ID          int64
	Absolute    bool
	Descriptive string
}

// ListPointerDevices returns every evdev device that can act as a
// pointer: absolute X/Y axes (touchscreens, tablets) or relative X/Y
// with mouse buttons.
func ListPointerDevices() ([]DeviceInfo, error) {
	evdevices, err := evdev.ListInputDevices("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	var devices []DeviceInfo
	for _, dev := range evdevices {
		absolute, ok := pointerKind(dev)
		if !ok {
			continue
		}

		id := int64(-1)
		if node, valid := device.ParseNode(dev.Fn); valid {
			id = int64(node)
		}
		info := DeviceInfo{
			Path:     dev.Fn,
			Name:     dev.Name,
			ID:       id,
			Absolute: absolute,
		}
		kind := "relative"
		if absolute {
			kind = "absolute"
		}
		info.Descriptive = fmt.Sprintf("%s (%s, %s)", dev.Name, dev.Fn, kind)
		devices = append(devices, info)
	}

	return devices, nil
}

// pointerKind reports whether dev is a pointer and whether it reports
// absolute coordinates.
func pointerKind(dev *evdev.InputDevice) (absolute, ok bool) {
	if absAxes, present := dev.CapabilitiesFlat[evdev.EV_ABS]; present {
		hasX, hasY := false, false
		for _, axis := range absAxes {
			if axis == evdev.ABS_X {
				hasX = true
			}
			if axis == evdev.ABS_Y {
				hasY = true
			}
		}
		if hasX && hasY {
			return true, true
		}
	}

	if relAxes, present := dev.CapabilitiesFlat[evdev.EV_REL]; present {
		hasX, hasY := false, false
		for _, axis := range relAxes {
			if axis == evdev.REL_X {
				hasX = true
			}
			if axis == evdev.REL_Y {
				hasY = true
			}
		}
		if hasX && hasY {
			for _, btn := range dev.CapabilitiesFlat[evdev.EV_KEY] {
				if btn == evdev.BTN_LEFT || btn == evdev.BTN_RIGHT || btn == evdev.BTN_MIDDLE {
					return false, true
				}
			}
		}
	}

	return false, false
}

// Wizard walks the user through configuration and saves the result.
type Wizard struct {
	checker *permission.SystemChecker
}

// NewWizard creates a setup wizard.
func NewWizard() *Wizard {
	return &Wizard{checker: permission.NewSystemChecker()}
}

// Run executes the interactive setup.
func (w *Wizard) Run() error {
	if !w.checker.IsTrusted() {
		w.checker.RequestTrust()
		return fmt.Errorf("insufficient permissions to access input devices")
	}

	cfg := config.Get()

	backend := cfg.Display.Backend
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Display geometry source").
				Description("How touchmapd learns where the touch display sits").
				Options(
					huh.NewOption("wlr-randr (query the compositor)", "wlr-randr"),
					huh.NewOption("static (fixed frames from the config file)", "static"),
				).
				Value(&backend),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	switch backend {
	case "wlr-randr":
		if err := w.promptTouchOutput(cfg); err != nil {
			return err
		}
	case "static":
		if err := w.promptStaticFrames(cfg); err != nil {
			return err
		}
	}

	if err := w.promptTouchDevice(cfg); err != nil {
		return err
	}

	viper.Set("display.backend", backend)
	if err := config.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logger.Infof("Configuration saved to %s", config.GetConfigPath())
	return nil
}

func (w *Wizard) promptTouchOutput(cfg *config.Config) error {
	touchOutput := cfg.Display.TouchOutput
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Touch display output name").
				Description("As reported by wlr-randr, e.g. DSI-1").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("output name is required")
					}
					return nil
				}).
				Value(&touchOutput),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	viper.Set("display.touch_output", strings.TrimSpace(touchOutput))
	return nil
}

func (w *Wizard) promptStaticFrames(cfg *config.Config) error {
	ref := fmt.Sprintf("%gx%g", cfg.Display.Reference.Width, cfg.Display.Reference.Height)
	touch := fmt.Sprintf("%g,%g,%gx%g", cfg.Display.Touch.X, cfg.Display.Touch.Y,
		cfg.Display.Touch.Width, cfg.Display.Touch.Height)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Reference display size").
				Description("WxH in points, e.g. 3024x1964").
				Validate(validateSize).
				Value(&ref),
			huh.NewInput().
				Title("Touch display frame").
				Description("X,Y,WxH in panel coordinates, e.g. 232,-720,2560x720").
				Validate(validateFrame).
				Value(&touch),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	refW, refH, _ := parseSize(ref)
	viper.Set("display.reference.x", 0.0)
	viper.Set("display.reference.y", 0.0)
	viper.Set("display.reference.width", refW)
	viper.Set("display.reference.height", refH)

	x, y, tw, th, _ := parseFrame(touch)
	viper.Set("display.touch.x", x)
	viper.Set("display.touch.y", y)
	viper.Set("display.touch.width", tw)
	viper.Set("display.touch.height", th)
	return nil
}

func (w *Wizard) promptTouchDevice(cfg *config.Config) error {
	devices, err := ListPointerDevices()
	if err != nil {
		logger.Warnf("Could not list input devices: %v", err)
		return nil
	}
	if len(devices) == 0 {
		logger.Warn("No pointer devices found, the touch device will be learned at runtime")
		return nil
	}

	options := make([]huh.Option[string], 0, len(devices)+1)
	options = append(options, huh.NewOption("Learn automatically from the first calibrated touch", ""))
	for _, dev := range devices {
		options = append(options, huh.NewOption(dev.Descriptive, dev.Path))
	}

	selected := cfg.Input.TouchDevice
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Touch input device").
				Description("Pin the device or let touchmapd learn it").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	viper.Set("input.touch_device", selected)
	return nil
}

func validateSize(s string) error {
	_, _, err := parseSize(s)
	return err
}

func parseSize(s string) (w, h float64, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WxH")
	}
	if w, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid width %q", parts[0])
	}
	if h, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid height %q", parts[1])
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size must be positive")
	}
	return w, h, nil
}

func validateFrame(s string) error {
	_, _, _, _, err := parseFrame(s)
	return err
}

func parseFrame(s string) (x, y, w, h float64, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 3)
	if len(parts) != 3 {
		return 0, 0, 0, 0, fmt.Errorf("expected X,Y,WxH")
	}
	if x, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid x %q", parts[0])
	}
	if y, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid y %q", parts[1])
	}
	if w, h, err = parseSize(parts[2]); err != nil {
		return 0, 0, 0, 0, err
	}
	return x, y, w, h, nil
}
