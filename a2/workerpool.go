package a2

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/akita/v4/sim"
)

// workCell is one slot of the bounded MPMC queue: a sequence number
// used to detect whether the slot currently holds a pushed-but-not-
// popped item, plus the payload itself.
type workCell struct {
	sequence uint64
	task     taskBatch
}

// taskBatch is a contiguous run of operators from one rank, assigned
// to a single worker invocation. A nil Ops slice is the shutdown
// sentinel (§4.7 "enqueue one null work item per worker").
type taskBatch struct {
	Ops []*Operator
}

// workQueue is a bounded lock-free MPMC ring buffer, capacity a power
// of two, built on a CAS over each cell's sequence number (the
// classic single-array bounded MPMC design: a producer claims a cell
// once its sequence equals the enqueue position, a consumer claims it
// once the sequence equals position+1).
type workQueue struct {
	mask  uint64
	cells []workCell

	enqueuePos uint64 // next position a producer will attempt
	dequeuePos uint64 // next position a consumer will attempt
}

// newWorkQueue allocates a queue of capacity, rounded to the next
// power of two.
func newWorkQueue(capacity int) *workQueue {
	n := 1
	for n < capacity {
		n <<= 1
	}

	q := &workQueue{
		mask:  uint64(n - 1),
		cells: make([]workCell, n),
	}
	for i := range q.cells {
		q.cells[i].sequence = uint64(i)
	}

	return q
}

// tryEnqueue attempts a non-blocking push; ok is false if the queue is full.
func (q *workQueue) tryEnqueue(t taskBatch) (ok bool) {
	pos := atomic.LoadUint64(&q.enqueuePos)

	for {
		cell := &q.cells[pos&q.mask]
		seq := atomic.LoadUint64(&cell.sequence)

		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.enqueuePos, pos, pos+1) {
				cell.task = t
				atomic.StoreUint64(&cell.sequence, pos+1)
				return true
			}
			pos = atomic.LoadUint64(&q.enqueuePos)
		case diff < 0:
			return false
		default:
			pos = atomic.LoadUint64(&q.enqueuePos)
		}
	}
}

// tryDequeue attempts a non-blocking pop; ok is false if the queue is empty.
func (q *workQueue) tryDequeue() (t taskBatch, ok bool) {
	pos := atomic.LoadUint64(&q.dequeuePos)

	for {
		cell := &q.cells[pos&q.mask]
		seq := atomic.LoadUint64(&cell.sequence)

		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.dequeuePos, pos, pos+1) {
				t = cell.task
				atomic.StoreUint64(&cell.sequence, pos+q.mask+1)
				return t, true
			}
			pos = atomic.LoadUint64(&q.dequeuePos)
		case diff < 0:
			return taskBatch{}, false
		default:
			pos = atomic.LoadUint64(&q.dequeuePos)
		}
	}
}

// semaphore is a minimal counting semaphore built on a buffered
// channel, standing in for the two coordination points of §4.7
// (tasksPending, tasksDone).
type semaphore chan struct{}

func newSemaphore() semaphore { return make(semaphore, 1<<20) }

func (s semaphore) signal() { s <- struct{}{} }
func (s semaphore) wait()   { <-s }

// WorkerPool is a fixed set of long-lived goroutines draining a
// shared bounded MPMC queue, used by EndEventParallel to step one rank's
// operators in parallel (§4.7, §5). No operator may suspend, so each
// task batch is a bounded, self-contained CPU computation.
type WorkerPool struct {
	sim.HookableBase

	queue        *workQueue
	tasksPending semaphore
	tasksDone    semaphore

	wg sync.WaitGroup
}

func (p *WorkerPool) stepBatch(ops []*Operator) {
	for _, op := range ops {
		op.Step()
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosOperatorStep, Item: op})
	}
}

// NewWorkerPool starts numWorkers goroutines draining a queue of the
// given capacity (rounded up to a power of two).
func NewWorkerPool(numWorkers, queueCapacity int) *WorkerPool {
	p := &WorkerPool{
		queue:        newWorkQueue(queueCapacity),
		tasksPending: newSemaphore(),
		tasksDone:    newSemaphore(),
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.workerLoop()
	}

	return p
}

func (p *WorkerPool) workerLoop() {
	defer p.wg.Done()

	for {
		p.tasksPending.wait()

		batch, ok := p.queue.tryDequeue()
		for !ok {
			batch, ok = p.queue.tryDequeue()
		}

		if batch.Ops == nil {
			p.tasksDone.signal()
			return
		}

		p.stepBatch(batch.Ops)

		p.tasksDone.signal()
	}
}

// StepRank partitions ops (all of one rank, per the AnalysisGraph's
// sort) into fixed-size batches, enqueues them, then drains the same
// queue itself until the batch count is satisfied — the rank boundary
// is a hard barrier: StepRank does not return until every batch has
// completed.
func (p *WorkerPool) StepRank(ops []*Operator, batchSize int) {
	if len(ops) == 0 {
		return
	}
	if batchSize <= 0 {
		batchSize = 6
	}

	numBatches := 0
	for i := 0; i < len(ops); i += batchSize {
		end := i + batchSize
		if end > len(ops) {
			end = len(ops)
		}

		batch := taskBatch{Ops: ops[i:end]}
		for !p.queue.tryEnqueue(batch) {
		}
		p.tasksPending.signal()
		numBatches++
	}

	// Help drain while waiting for the rank to finish: the main
	// thread is itself a consumer, matching §4.7's "itself drains
	// work from the same queue until empty".
	for i := 0; i < numBatches; i++ {
		if batch, ok := p.queue.tryDequeue(); ok && batch.Ops != nil {
			p.stepBatch(batch.Ops)
			p.tasksDone.signal()
		}
	}

	for i := 0; i < numBatches; i++ {
		p.tasksDone.wait()
	}
}

// Shutdown enqueues one null work item per worker, signals them, and
// waits for every worker goroutine to exit (§4.7 "workers are joined
// on end_run").
func (p *WorkerPool) Shutdown(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		for !p.queue.tryEnqueue(taskBatch{Ops: nil}) {
		}
		p.tasksPending.signal()
	}

	p.wg.Wait()
}
