package gatt

import (
	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/runloop"
)

// pendingWrite is owned exclusively by the queue from submit until popped.
type pendingWrite struct {
	reg     Register
	payload []byte
}

// OperationQueue serializes register reads and writes against one connected
// peripheral. The wire channel confirms out of band and tolerates only one
// outstanding operation, so the queue enforces strict FIFO order within each
// kind and gives writes absolute priority over reads: reads are serviced
// only while the write sequence is empty. Indefinite write pressure can
// therefore starve reads entirely; that tradeoff is accepted.
//
// All methods must be called on the owning loop. Completion handling never
// drains the next operation inline: the drain step is posted back onto the
// loop so reentrant confirmations cannot grow the call stack or interleave
// with caller submissions.
type OperationQueue struct {
	loop      *runloop.Loop
	transport Transport
	logger    *logrus.Logger

	writes []pendingWrite
	reads  []Register

	// idle is true iff both sequences are empty and nothing is outstanding
	// on the transport.
	idle bool

	// observer receives values from successful reads, before the pop.
	observer func(reg Register, value []byte)
}

// NewOperationQueue creates an idle queue dispatching onto transport.
func NewOperationQueue(loop *runloop.Loop, transport Transport, logger *logrus.Logger) *OperationQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &OperationQueue{
		loop:      loop,
		transport: transport,
		logger:    logger,
		idle:      true,
	}
}

// SetValueObserver registers the callback that receives register values from
// successful reads.
func (q *OperationQueue) SetValueObserver(fn func(reg Register, value []byte)) {
	q.observer = fn
}

// Idle reports whether the queue has no queued and no outstanding operation.
func (q *OperationQueue) Idle() bool {
	return q.idle
}

// PendingWrites returns the number of queued writes, including any
// outstanding head.
func (q *OperationQueue) PendingWrites() int {
	return len(q.writes)
}

// PendingReads returns the number of queued reads, including any outstanding
// head.
func (q *OperationQueue) PendingReads() int {
	return len(q.reads)
}

// SubmitWrite appends a register write. If the queue is idle the write is
// dispatched immediately; otherwise it waits its turn.
func (q *OperationQueue) SubmitWrite(reg Register, payload []byte) {
	q.writes = append(q.writes, pendingWrite{reg: reg, payload: payload})

	if q.idle {
		q.idle = false
		q.dispatchNextWrite()
	}
}

// SubmitRead appends a register read. If the queue is idle the read is
// dispatched immediately; otherwise it waits until the write sequence has
// fully drained.
func (q *OperationQueue) SubmitRead(reg Register) {
	q.reads = append(q.reads, reg)

	if q.idle {
		q.idle = false
		q.dispatchNextRead()
	}
}

// WriteConfirmed handles the transport's completion for the outstanding
// write. On success the head is popped; on failure it stays in place and the
// posted drain step redispatches it. Must be called on the loop.
func (q *OperationQueue) WriteConfirmed(reg Register, ok bool) {
	if len(q.writes) > 0 && q.writes[0].reg == reg && ok {
		q.writes = q.writes[1:]
	}
	q.loop.Post(q.drainNext)
}

// ReadConfirmed handles the transport's completion for the outstanding read.
// On success the observed value is delivered to the observer and the head is
// popped, as one posted unit that precedes the posted drain step. Must be
// called on the loop.
func (q *OperationQueue) ReadConfirmed(reg Register, value []byte, ok bool) {
	if len(q.reads) > 0 && q.reads[0] == reg && ok {
		q.loop.Post(func() {
			if q.observer != nil {
				q.observer(reg, value)
			}
			if len(q.reads) > 0 && q.reads[0] == reg {
				q.reads = q.reads[1:]
			}
		})
	}
	q.loop.Post(q.drainNext)
}

// drainNext (re)dispatches the head of the write sequence, falling back to
// the read sequence only when no writes remain.
func (q *OperationQueue) drainNext() {
	switch {
	case len(q.writes) > 0:
		q.dispatchNextWrite()
	case len(q.reads) > 0:
		q.dispatchNextRead()
	default:
		q.idle = true
	}
}

// dispatchNextWrite hands the head write to the transport. The head is not
// popped here: it stays until its confirmation succeeds. A local dispatch
// rejection is logged and otherwise ignored; the queue stalls at the same
// head until the next drain event.
func (q *OperationQueue) dispatchNextWrite() {
	head := q.writes[0]
	if err := q.transport.WriteRegister(head.reg, head.payload); err != nil {
		q.logger.WithFields(logrus.Fields{
			"register": head.reg,
			"error":    err,
		}).Error("Unable to dispatch register write")
	}
}

// dispatchNextRead hands the head read to the transport, with the same
// rejection policy as dispatchNextWrite.
func (q *OperationQueue) dispatchNextRead() {
	head := q.reads[0]
	if err := q.transport.ReadRegister(head); err != nil {
		q.logger.WithFields(logrus.Fields{
			"register": head,
			"error":    err,
		}).Error("Unable to dispatch register read")
	}
}
