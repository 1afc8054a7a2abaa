package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// xvfbReady bounds the wait for the display socket.
const xvfbReady = 5 * time.Second

// xvfb is the virtual display a headful Chrome draws on.
type xvfb struct {
	name string
	cmd  *exec.Cmd
}

// startXvfb runs Xvfb on display and waits until it accepts clients.
func startXvfb(ctx context.Context, display string) (*xvfb, error) {
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("browser: xvfb %s: %w", display, err)
	}
	d := &xvfb{name: display, cmd: cmd}

	socket := "/tmp/.X11-unix/X" + strings.TrimPrefix(display, ":")
	deadline := time.NewTimer(xvfbReady)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(socket); err == nil {
			return d, nil
		}
		select {
		case <-ctx.Done():
			d.stop()
			return nil, ctx.Err()
		case <-deadline.C:
			d.stop()
			return nil, fmt.Errorf("browser: xvfb %s: no socket after %s", display, xvfbReady)
		case <-tick.C:
		}
	}
}

func (d *xvfb) stop() {
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.cmd.Wait()
	}
}
