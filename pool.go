// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tfrecord

import (
	"runtime"
	"sync"
)

// poolChunk is the number of consecutive indices a worker takes per queue
// acquisition.
const poolChunk = 8

// kernel is invoked once for every index in [0, blockDim).
type kernel func(threadIdx, blockDim int)

// threadPool is a fixed-width pool of workers executing a parallel-for over
// an integer range. A single dispatch is in flight at a time; parallelFor
// blocks the caller until every index has executed.
//
// The pool owns its workers for its full lifetime. A kernel submitted to
// parallelFor is borrowed for the duration of that call only.
type threadPool struct {
	mu         sync.Mutex
	queueCheck *sync.Cond
	emptyQueue *sync.Cond

	kernel   kernel
	blockDim int

	// tasksWaiting is the next index to hand out. The dispatch is fully
	// handed out when tasksWaiting == blockDim, and complete when
	// additionally activeWorkers == 0.
	tasksWaiting  int
	activeWorkers int

	terminating bool
	workers     sync.WaitGroup
}

// newThreadPool starts a pool of min(GOMAXPROCS-1, maxWorkers) workers, with
// a floor of one.
func newThreadPool(maxWorkers int) *threadPool {
	count := runtime.GOMAXPROCS(0) - 1
	if count < 1 {
		count = 1
	}
	if maxWorkers >= 1 && count > maxWorkers {
		count = maxWorkers
	}

	p := &threadPool{}
	p.queueCheck = sync.NewCond(&p.mu)
	p.emptyQueue = sync.NewCond(&p.mu)
	for i := 0; i < count; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

// parallelFor runs k once for every index in [0, blockDim) across the pool
// and returns when all indices have executed. Calls must be serialized by
// the caller.
func (p *threadPool) parallelFor(k kernel, blockDim int) {
	if blockDim <= 0 {
		return
	}

	p.mu.Lock()
	if p.terminating {
		p.mu.Unlock()
		return
	}
	p.kernel = k
	p.blockDim = blockDim
	p.tasksWaiting = 0
	p.queueCheck.Broadcast()
	p.mu.Unlock()

	p.wait()
}

// wait blocks until the current dispatch has fully drained.
func (p *threadPool) wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.tasksWaiting != p.blockDim || p.activeWorkers != 0 {
		if p.terminating {
			return
		}
		p.emptyQueue.Wait()
	}
}

func (p *threadPool) worker() {
	defer p.workers.Done()
	for {
		task, n, k, blockDim := p.popTasks()
		if task < 0 {
			return
		}

		for i := 0; i < n; i++ {
			k(task+i, blockDim)
		}

		p.mu.Lock()
		p.activeWorkers--
		if p.activeWorkers == 0 && p.tasksWaiting == p.blockDim {
			p.emptyQueue.Broadcast()
		}
		p.mu.Unlock()
	}
}

// popTasks dequeues up to poolChunk consecutive indices, sleeping while the
// queue is drained. The kernel and block dimension are captured under the
// lock so teardown cannot race with an executing chunk. It returns a
// negative index when the pool is being torn down.
func (p *threadPool) popTasks() (int, int, kernel, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.tasksWaiting == p.blockDim {
		if p.terminating {
			return -1, 0, nil, 0
		}
		p.queueCheck.Wait()
	}

	p.activeWorkers++
	task := p.tasksWaiting
	n := p.blockDim - task
	if n > poolChunk {
		n = poolChunk
	}
	p.tasksWaiting += n
	return task, n, p.kernel, p.blockDim
}

// close terminates all workers and joins them. Safe to call from any state
// and more than once.
func (p *threadPool) close() {
	p.mu.Lock()
	p.tasksWaiting = 0
	p.blockDim = 0
	p.terminating = true
	p.queueCheck.Broadcast()
	p.emptyQueue.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()
}
