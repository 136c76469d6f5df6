package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

// Display numbers start here; low numbers are usually taken by real X
// servers on the host.
const firstDisplayNumber = 100

// displayStartupDelay gives the X server time to create its socket
// before the renderer connects.
const displayStartupDelay = 500 * time.Millisecond

var (
	displayMu   sync.Mutex
	nextDisplay = firstDisplayNumber
)

func allocateDisplayNumber() int {
	displayMu.Lock()
	defer displayMu.Unlock()
	n := nextDisplay
	nextDisplay++
	return n
}

// Display is one virtual X server owned by a single render job.
// Concurrent jobs each hold their own display so renderer instances
// never share server state.
type Display struct {
	number int
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// StartDisplay launches a virtual X server on a fresh display number.
// The caller must Release it when the job finishes.
func StartDisplay(ctx context.Context, xvfbPath string) (*Display, error) {
	if xvfbPath == "" {
		xvfbPath = "Xvfb"
	}
	number := allocateDisplayNumber()

	dctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(dctx, xvfbPath,
		fmt.Sprintf(":%d", number),
		"-screen", "0", "1024x768x24",
		"-nolisten", "tcp")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, types.NewAppError(types.ErrTool, "virtual display failed to start", err)
	}

	// The server has no readiness signal; a short settle is enough in
	// practice and a connect failure surfaces in the renderer anyway.
	select {
	case <-time.After(displayStartupDelay):
	case <-dctx.Done():
		cancel()
		return nil, types.NewAppErrorWithDetails(types.ErrTool, "virtual display interrupted", stderr.String(), dctx.Err())
	}

	logger.Info("virtual display started", logger.Int("display", number))
	return &Display{number: number, cmd: cmd, cancel: cancel}, nil
}

// Number returns the allocated display number.
func (d *Display) Number() int { return d.number }

// Env returns the DISPLAY assignment for child processes.
func (d *Display) Env() string {
	return fmt.Sprintf("DISPLAY=:%d", d.number)
}

// Release stops the X server. Safe to call once per display; the
// process is killed through its context and reaped.
func (d *Display) Release() {
	if d == nil || d.cancel == nil {
		return
	}
	d.cancel()
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Wait()
	}
	logger.Info("virtual display released", logger.Int("display", d.number))
}
