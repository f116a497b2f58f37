package process

import "golang.org/x/sys/windows"

// stillActive is the exit code GetExitCodeProcess returns for a process
// that has not exited.
const stillActive = 259

// Alive returns true if process with a given pid is running.
func Alive(pid int) bool {
	if pid < 1 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	var c uint32
	err = windows.GetExitCodeProcess(h, &c)
	_ = windows.CloseHandle(h)
	if err != nil {
		return false
	}
	return c == stillActive
}
