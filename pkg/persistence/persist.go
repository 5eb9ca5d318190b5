package persistence

import (
	"context"
	"fmt"

	"docassist/pkg/form"
)

// Worker applies queued writes on a single goroutine so request handlers
// never wait on SQLite.
type Worker struct {
	ops      *DatabaseOperations
	requests chan *Request
	done     chan struct{}
}

// NewWorker creates a worker with a queue of size buffer.
func NewWorker(ops *DatabaseOperations, buffer int) *Worker {
	return &Worker{
		ops:      ops,
		requests: make(chan *Request, buffer),
		done:     make(chan struct{}),
	}
}

// Channel is where callers enqueue requests.
func (w *Worker) Channel() chan<- *Request {
	return w.requests
}

// Done is closed once Run has drained the queue and returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run processes requests until ctx is cancelled, then drains what is left.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case req := <-w.requests:
			w.handle(context.WithoutCancel(ctx), req)
		case <-ctx.Done():
			for {
				select {
				case req := <-w.requests:
					w.handle(context.WithoutCancel(ctx), req)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, req *Request) {
	err := w.apply(ctx, req)
	if err != nil {
		dbLogger.Error("%s failed: %v", req.Operation, err)
	}
	if req.Response != nil {
		req.Response <- err
	}
}

func (w *Worker) apply(ctx context.Context, req *Request) error {
	switch req.Operation {
	case OpInsertGeneration:
		gen, ok := req.Data.(*Generation)
		if !ok {
			return fmt.Errorf("%s: unexpected data %T", req.Operation, req.Data)
		}
		return w.ops.InsertGeneration(ctx, gen)
	case OpSaveFormSession:
		snap, ok := req.Data.(*FormSessionSnapshot)
		if !ok {
			return fmt.Errorf("%s: unexpected data %T", req.Operation, req.Data)
		}
		return w.ops.SaveFormSession(ctx, snap.ID, snap.State)
	case OpDeleteFormSession:
		id, ok := req.Data.(string)
		if !ok {
			return fmt.Errorf("%s: unexpected data %T", req.Operation, req.Data)
		}
		return w.ops.DeleteFormSession(ctx, id)
	default:
		return fmt.Errorf("unknown persistence operation %q", req.Operation)
	}
}

// FormSessionSnapshot is the payload of OpSaveFormSession.
type FormSessionSnapshot struct {
	ID    string
	State form.State
}

// PersistGeneration queues gen for insertion (fire-and-forget).
func PersistGeneration(gen *Generation, persistenceChannel chan<- *Request) {
	if persistenceChannel == nil || gen == nil {
		return
	}
	persistenceChannel <- &Request{Operation: OpInsertGeneration, Data: gen}
}

// QueuedStore is a form.Store whose writes go through a Worker. Reads hit
// the database directly.
type QueuedStore struct {
	ops      *DatabaseOperations
	requests chan<- *Request
}

func NewQueuedStore(ops *DatabaseOperations, w *Worker) *QueuedStore {
	return &QueuedStore{ops: ops, requests: w.Channel()}
}

func (s *QueuedStore) SaveFormSession(_ context.Context, id string, state form.State) error {
	s.requests <- &Request{Operation: OpSaveFormSession, Data: &FormSessionSnapshot{ID: id, State: state}}
	return nil
}

func (s *QueuedStore) LoadFormSessions(ctx context.Context) (map[string]form.State, error) {
	return s.ops.LoadFormSessions(ctx)
}

func (s *QueuedStore) DeleteFormSession(_ context.Context, id string) error {
	s.requests <- &Request{Operation: OpDeleteFormSession, Data: id}
	return nil
}

var _ form.Store = (*QueuedStore)(nil)
