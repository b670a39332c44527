// Package dispatcher gives every role (acceptor, proposer, learner,
// client) a single-owner actor loop to run its state machine on, so
// that state mutated by message handling is never touched from more
// than one goroutine. It is grounded on the teacher's
// network.ConnectionManager actor loop: a msackman/chancell
// ChanCellTail/ChanCellHead pair backing a buffered mailbox, with a
// dedicated goroutine draining it until a shutdown message arrives.
package dispatcher

import (
	"github.com/go-kit/kit/log"
	cc "github.com/msackman/chancell"

	"github.com/nbro/multi-paxos/status"
)

// Task is one piece of work enqueued onto an Executor's mailbox. It
// runs on the Executor's own goroutine, so it may freely touch state
// the rest of the role's code never shares with any other goroutine.
type Task func()

type shutdownTask struct {
	done chan struct{}
}

type mailboxMsg interface{}

// Executor is a single-goroutine mailbox: EnqueueFuncAsync/
// EnqueueFuncSync post work, the internal actorLoop goroutine runs it serially in
// FIFO order, and Shutdown drains and stops it.
type Executor struct {
	logger            log.Logger
	cellTail          *cc.ChanCellTail
	enqueueQueryInner func(mailboxMsg, *cc.ChanCell, cc.CurCellConsumer) (bool, cc.CurCellConsumer)
	mailboxChan       <-chan mailboxMsg
}

// NewExecutor creates and starts an Executor. name appears in every
// log line the actor loop itself emits.
func NewExecutor(name string, logger log.Logger) *Executor {
	ex := &Executor{
		logger: log.With(logger, "executor", name),
	}

	var head *cc.ChanCellHead
	head, ex.cellTail = cc.NewChanCellTail(
		func(n int, cell *cc.ChanCell) {
			mailboxChan := make(chan mailboxMsg, n)
			cell.Open = func() { ex.mailboxChan = mailboxChan }
			cell.Close = func() { close(mailboxChan) }
			ex.enqueueQueryInner = func(msg mailboxMsg, curCell *cc.ChanCell, cont cc.CurCellConsumer) (bool, cc.CurCellConsumer) {
				if curCell == cell {
					select {
					case mailboxChan <- msg:
						return true, nil
					default:
						return false, nil
					}
				}
				return false, cont
			}
		})

	go ex.actorLoop(head)
	return ex
}

type enqueueCapture struct {
	ex  *Executor
	msg mailboxMsg
}

func (c *enqueueCapture) ccc(cell *cc.ChanCell) (bool, cc.CurCellConsumer) {
	return c.ex.enqueueQueryInner(c.msg, cell, c.ccc)
}

func (ex *Executor) enqueue(msg mailboxMsg) bool {
	c := &enqueueCapture{ex: ex, msg: msg}
	return ex.cellTail.WithCell(c.ccc)
}

// EnqueueFuncAsync posts t to run on the Executor's goroutine and
// returns immediately without waiting for it to run.
func (ex *Executor) EnqueueFuncAsync(t Task) bool {
	return ex.enqueue(mailboxMsg(t))
}

// EnqueueFuncSync posts t and blocks until it has completed (or the
// Executor is shut down first, in which case it returns false).
func (ex *Executor) EnqueueFuncSync(t Task) bool {
	done := make(chan struct{})
	wrapped := Task(func() {
		defer close(done)
		t()
	})
	if !ex.enqueue(mailboxMsg(wrapped)) {
		return false
	}
	select {
	case <-done:
		return true
	case <-ex.cellTail.Terminated:
		return false
	}
}

// Status enqueues sc to be filled in by the Executor's own goroutine
// via emit, blocking the caller until the actor loop has processed it.
func (ex *Executor) Status(sc *status.StatusConsumer, emit func(*status.StatusConsumer)) {
	ex.EnqueueFuncSync(func() { emit(sc) })
}

func (ex *Executor) actorLoop(head *cc.ChanCellHead) {
	var (
		mailboxChan <-chan mailboxMsg
		mailboxCell *cc.ChanCell
	)
	chanFun := func(cell *cc.ChanCell) { mailboxChan, mailboxCell = ex.mailboxChan, cell }
	head.WithCell(chanFun)

	terminate := false
	for !terminate {
		if msg, ok := <-mailboxChan; ok {
			switch m := msg.(type) {
			case Task:
				m()
			case shutdownTask:
				terminate = true
				close(m.done)
			default:
				ex.logger.Log("msg", "dropping unrecognised mailbox message", "value", msg)
			}
		} else {
			head.Next(mailboxCell, chanFun)
		}
	}
	ex.cellTail.Terminate()
}

// Shutdown drains the mailbox and stops the actor loop, blocking until
// it has actually exited.
func (ex *Executor) Shutdown() {
	done := make(chan struct{})
	if ex.enqueue(shutdownTask{done: done}) {
		<-done
	}
	<-ex.cellTail.Terminated
}
