package hostservice

import (
	"os"
	"runtime"
	"strconv"
	"sync"

	"infoton/internal/errs"
)

// debugLocks gates the lock-order recorder off in production builds; the
// teacher pays for zap's caller-capture only in debug builds in the same
// spirit (cheap in the hot path, informative when turned on).
var debugLocks = os.Getenv("HOST_DEBUG_LOCKS") == "1"

// lockGuard enforces spec §5's rule that a scheduler may hold at most one
// peer's inbound lock at a time: before entering a HostService's
// critical section, the calling goroutine records which lock it holds;
// if it tries to enter a second one without releasing the first, that is
// the lock-cycle bug the rule exists to prevent.
type lockGuard struct {
	mu   sync.Mutex
	held map[int64]string
}

var globalLockGuard = &lockGuard{held: make(map[int64]string)}

// Acquire records name as held by the calling goroutine and returns a
// release function. It is a no-op unless HOST_DEBUG_LOCKS=1.
func (g *lockGuard) Acquire(name string) func() {
	if !debugLocks {
		return func() {}
	}
	gid := goroutineID()
	g.mu.Lock()
	if prev, ok := g.held[gid]; ok && prev != name {
		g.mu.Unlock()
		panic(errs.ErrLockCycle(prev, name))
	}
	g.held[gid] = name
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.held, gid)
		g.mu.Unlock()
	}
}

// goroutineID parses the running goroutine's id out of a minimal stack
// trace. Only used under the debug flag; never on the hot path in a
// production build.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if len(buf) < len(prefix) {
		return 0
	}
	buf = buf[len(prefix):]
	end := 0
	for end < len(buf) && buf[end] >= '0' && buf[end] <= '9' {
		end++
	}
	id, _ := strconv.ParseInt(string(buf[:end]), 10, 64)
	return id
}
