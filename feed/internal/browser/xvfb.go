// CLAUDE:SUMMARY Starts and stops an Xvfb display backing the visible sign-in surface on display-less hosts.
package browser

import (
	"fmt"
	"os/exec"
	"time"
)

// startXvfb launches Xvfb on the configured display. The sign-in window
// renders there; operators reach it through a VNC bridge on the same
// display.
func (s *rodSurface) startXvfb() error {
	if s.xvfb != nil {
		return nil
	}

	display := s.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1280x900x24", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	s.xvfb = cmd

	// Xvfb accepts connections shortly after exec.
	time.Sleep(500 * time.Millisecond)

	s.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func (s *rodSurface) stopXvfb() {
	if s.xvfb == nil {
		return
	}
	if s.xvfb.Process != nil {
		s.xvfb.Process.Kill()
		s.xvfb.Wait()
	}
	s.cfg.Logger.Info("browser: xvfb stopped")
	s.xvfb = nil
}
