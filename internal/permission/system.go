package permission

import (
	"os"
	"path/filepath"

	"github.com/touchmapd/touchmapd/internal/logger"
)

// SystemChecker probes the access the evdev/uinput backend needs:
// read access to at least one /dev/input/event* node and write access
// to /dev/uinput. RequestTrust cannot pop a prompt the way a desktop
// permission API would; it prints the setup instructions once and the
// gate keeps polling until a udev rule or group change takes effect.
type SystemChecker struct {
	InputGlob  string
	UinputPath string
}

// NewSystemChecker creates a checker against the real device nodes.
func NewSystemChecker() *SystemChecker {
	return &SystemChecker{
		InputGlob:  "/dev/input/event*",
		UinputPath: "/dev/uinput",
	}
}

// IsTrusted reports whether the daemon can read input events and post
// synthetic ones.
func (c *SystemChecker) IsTrusted() bool {
	f, err := os.OpenFile(c.UinputPath, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()

	nodes, err := filepath.Glob(c.InputGlob)
	if err != nil || len(nodes) == 0 {
		return false
	}
	for _, node := range nodes {
		in, err := os.Open(node)
		if err == nil {
			in.Close()
			return true
		}
	}
	return false
}

// RequestTrust emits the access instructions. Issued once by the gate.
func (c *SystemChecker) RequestTrust() {
	logger.Warn("Missing access to input devices")
	logger.Warnf("Grant read access to %s and write access to %s,", c.InputGlob, c.UinputPath)
	logger.Warn("typically by adding your user to the 'input' group and installing a uinput udev rule:")
	logger.Warn(`  echo 'KERNEL=="uinput", MODE="0660", GROUP="input"' | sudo tee /etc/udev/rules.d/99-touchmapd.rules`)
	logger.Warn("  sudo usermod -aG input $USER  (then log out and back in)")
}
