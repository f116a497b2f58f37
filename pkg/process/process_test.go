package process

import (
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestAlive(t *testing.T) {
	for _, pid := range []int{0, -1, -123} {
		t.Run(fmt.Sprintf("invalid process (%d)", pid), func(t *testing.T) {
			if Alive(pid) {
				t.Errorf("PID %d should not be alive", pid)
			}
		})
	}
	t.Run("current process", func(t *testing.T) {
		if pid := os.Getpid(); !Alive(pid) {
			t.Errorf("current PID (%d) should be alive", pid)
		}
	})
	t.Run("exited process", func(t *testing.T) {
		cmd := exec.Command("true")
		if err := cmd.Run(); err != nil {
			t.Skipf("cannot run helper process: %v", err)
		}
		exitedPID := cmd.ProcessState.Pid()
		if Alive(exitedPID) {
			t.Errorf("PID %d should not be alive", exitedPID)
		}
	})
}
