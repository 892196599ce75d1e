// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// ContainerParallelEnv overrides the container semaphore capacity.
const ContainerParallelEnv = "LAUNCHKIT_TEST_CONTAINER_PARALLEL"

// ContainerSemaphore returns a process-wide buffered channel that limits
// concurrent image builds and container runs in integration tests. Acquire
// a slot by sending, release by receiving:
//
//	sem := testutil.ContainerSemaphore()
//	sem <- struct{}{}
//	defer func() { <-sem }()
//
// The capacity is LAUNCHKIT_TEST_CONTAINER_PARALLEL when set, otherwise
// min(GOMAXPROCS, 2). Podman hangs rather than failing when too many builds
// run at once on small CI runners.
var ContainerSemaphore = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism(os.Getenv(ContainerParallelEnv)))
})

// containerParallelism parses an override, falling back to min(GOMAXPROCS, 2).
func containerParallelism(override string) int {
	if override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			return n
		}
	}
	return min(runtime.GOMAXPROCS(0), 2)
}
