//go:build linux

package sink

import "golang.org/x/sys/unix"

// realtimeNice is the nice value of the thread running the loop.
const realtimeNice = -10

// raisePriority raises the priority of the current thread. Run locks the
// goroutine to its thread before calling it.
func raisePriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), realtimeNice)
}
