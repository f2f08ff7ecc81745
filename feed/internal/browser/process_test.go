package browser

import (
	"os"
	"os/exec"
	"testing"
	"time"
)

func startSleep(t *testing.T, d string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", d)
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep binary unavailable: %v", err)
	}
	return cmd
}

func TestWaitExit_ProcessExits(t *testing.T) {
	cmd := startSleep(t, "0.1")
	go cmd.Wait() // reap, as the launcher does

	if !waitExit(cmd.Process.Pid, 5*time.Second, 10*time.Millisecond) {
		t.Fatal("waitExit: process reported running after it exited")
	}
}

func TestWaitExit_TimesOut(t *testing.T) {
	cmd := startSleep(t, "30")
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	start := time.Now()
	if waitExit(cmd.Process.Pid, 50*time.Millisecond, 10*time.Millisecond) {
		t.Fatal("waitExit: reported exit for a running process")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("waitExit overran its deadline: %v", elapsed)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("current process reported dead")
	}
	if processAlive(0) || processAlive(-1) {
		t.Error("non-positive pid reported alive")
	}
}
