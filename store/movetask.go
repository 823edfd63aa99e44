package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tabeth/memq/logging"
	"github.com/tabeth/memq/metrics"
	"github.com/tabeth/memq/models"
)

// Message move task statuses.
const (
	TaskRunning   = "RUNNING"
	TaskCompleted = "COMPLETED"
	TaskCancelled = "CANCELLED"
	TaskFailed    = "FAILED"
)

const (
	maxMoveRate       = 500
	maxListMoveTasks  = 10
	defaultListLength = 1
)

type moveTask struct {
	handle          string
	sourceArn       string
	sourceName      string
	destinationArn  string
	destinationName string
	maxPerSecond    int
	startedAt       time.Time
	toMove          int64
	moved           atomic.Int64
	cancel          context.CancelFunc

	// guarded by moveTasks.mu
	status        string
	failureReason string
}

// moveTasks tracks every move task ever started, in start order.
type moveTasks struct {
	mu       sync.Mutex
	all      []*moveTask
	byHandle map[string]*moveTask

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func newMoveTasks() *moveTasks {
	ctx, stop := context.WithCancel(context.Background())
	return &moveTasks{
		byHandle: make(map[string]*moveTask),
		ctx:      ctx,
		stop:     stop,
	}
}

// transition moves a running task to a terminal status. It returns false if
// the task already left RUNNING.
func (m *moveTasks) transition(t *moveTask, status, reason string) bool {
	m.mu.Lock()
	if t.status != TaskRunning {
		m.mu.Unlock()
		return false
	}
	t.status = status
	t.failureReason = reason
	m.mu.Unlock()

	t.cancel()
	metrics.MoveTasksRunning.Dec()
	logging.WithFields(logging.Fields{
		"event":  "move_task_" + status,
		"task":   t.handle,
		"source": t.sourceName,
		"moved":  t.moved.Load(),
		"reason": reason,
	}).Info("message move task finished")
	return true
}

func (m *moveTasks) running(t *moveTask) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t.status == TaskRunning
}

// failTouching fails every running task reading from or writing to queue.
func (m *moveTasks) failTouching(queue, reason string) {
	m.mu.Lock()
	var affected []*moveTask
	for _, t := range m.all {
		if t.status == TaskRunning && (t.sourceName == queue || t.destinationName == queue) {
			affected = append(affected, t)
		}
	}
	m.mu.Unlock()
	for _, t := range affected {
		m.transition(t, TaskFailed, reason)
	}
}

func (m *moveTasks) shutdown() {
	m.stop()
	m.wg.Wait()
}

// StartMessageMoveTask starts moving the available messages of the source
// queue in the background. Each message goes to destinationArn when given,
// otherwise to the queue it was dead-lettered from, otherwise to the source
// queue's own dead-letter target.
func (s *MemoryStore) StartMessageMoveTask(ctx context.Context, sourceArn, destinationArn string, maxPerSecond int) (string, error) {
	if sourceArn == "" {
		return "", missingParameter("SourceArn")
	}
	sourceName := arnQueueName(sourceArn)
	if sourceName == "" {
		return "", invalidParameter("Value %s for parameter SourceArn is invalid.", sourceArn)
	}
	src, err := s.lookup(sourceName)
	if err != nil {
		return "", newError(KindNotFound, ErrResourceNotFound.Code, "The resource that you specified for the SourceArn parameter doesn't exist.")
	}

	var destinationName string
	if destinationArn != "" {
		destinationName = arnQueueName(destinationArn)
		if destinationName == "" {
			return "", invalidParameter("Value %s for parameter DestinationArn is invalid.", destinationArn)
		}
		if destinationName == sourceName {
			return "", invalidParameter("Value %s for parameter DestinationArn is invalid. Reason: Source queue and destination queue must be different.", destinationArn)
		}
		if _, err := s.lookup(destinationName); err != nil {
			return "", newError(KindNotFound, ErrResourceNotFound.Code, "The resource that you specified for the DestinationArn parameter doesn't exist.")
		}
	}

	if maxPerSecond == 0 {
		maxPerSecond = s.opts.DefaultMoveRate
	}
	if maxPerSecond < 1 || maxPerSecond > maxMoveRate {
		return "", invalidParameter("Value %d for parameter MaxNumberOfMessagesPerSecond is invalid. Reason: must be between 1 and 500.", maxPerSecond)
	}

	now := s.clock.Now()
	src.mu.Lock()
	available, _, _ := src.counts(now)
	src.mu.Unlock()

	s.tasks.mu.Lock()
	for _, t := range s.tasks.all {
		if t.sourceName == sourceName && t.status == TaskRunning {
			s.tasks.mu.Unlock()
			return "", ErrMoveTaskAlreadyRunning
		}
	}
	taskCtx, cancel := context.WithCancel(s.tasks.ctx)
	t := &moveTask{
		handle:          uuid.NewString(),
		sourceArn:       sourceArn,
		sourceName:      sourceName,
		destinationArn:  destinationArn,
		destinationName: destinationName,
		maxPerSecond:    maxPerSecond,
		startedAt:       now,
		toMove:          int64(available),
		cancel:          cancel,
		status:          TaskRunning,
	}
	s.tasks.all = append(s.tasks.all, t)
	s.tasks.byHandle[t.handle] = t
	s.tasks.wg.Add(1)
	s.tasks.mu.Unlock()

	metrics.MoveTasksRunning.Inc()
	logging.WithFields(logging.Fields{
		"event":       "move_task_started",
		"task":        t.handle,
		"source":      sourceName,
		"destination": destinationName,
		"to_move":     available,
	}).Info("message move task started")

	go s.runMoveTask(taskCtx, t)
	return t.handle, nil
}

// runMoveTask moves one message per limiter token until the snapshot count
// is reached or the source has no available message left. Cancellation is
// observed between moves only.
func (s *MemoryStore) runMoveTask(ctx context.Context, t *moveTask) {
	defer s.tasks.wg.Done()
	limiter := rate.NewLimiter(rate.Limit(t.maxPerSecond), 1)
	for {
		if t.moved.Load() >= t.toMove {
			s.tasks.transition(t, TaskCompleted, "")
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			// No-op when the task was already cancelled by the caller.
			s.tasks.transition(t, TaskCancelled, "engine shut down")
			return
		}
		if !s.tasks.running(t) {
			return
		}
		more, err := s.moveOne(t)
		if err != nil {
			s.tasks.transition(t, TaskFailed, err.Error())
			return
		}
		if !more {
			s.tasks.transition(t, TaskCompleted, "")
			return
		}
	}
}

// moveOne transfers the oldest available message of the task's source.
// It reports false when the source has nothing left to move.
func (s *MemoryStore) moveOne(t *moveTask) (bool, error) {
	src, err := s.lookup(t.sourceName)
	if err != nil {
		return false, fmt.Errorf("source queue %s does not exist", t.sourceName)
	}

	now := s.clock.Now()
	src.mu.Lock()
	var candidate *message
	for e := src.messages.Front(); e != nil; {
		next := e.Next()
		m := e.Value.(*message)
		if src.sweep(m, now) && m.available(now) {
			candidate = m
			break
		}
		e = next
	}
	if candidate == nil {
		src.mu.Unlock()
		return false, nil
	}
	id := candidate.id
	destName := t.destinationName
	if destName == "" {
		destName = arnQueueName(candidate.deadLetterSourceArn)
	}
	if destName == "" {
		destName = src.redriveTarget()
	}
	src.mu.Unlock()

	if destName == "" {
		return false, fmt.Errorf("no destination for message %s", id)
	}
	if destName == src.name {
		return false, fmt.Errorf("message %s would be moved to its own queue", id)
	}
	dest, err := s.lookup(destName)
	if err != nil {
		return false, fmt.Errorf("destination queue %s does not exist", destName)
	}

	unlock := lockPair(src, dest)
	defer unlock()
	if src.deleted {
		return false, fmt.Errorf("source queue %s does not exist", src.name)
	}
	if dest.deleted {
		return false, fmt.Errorf("destination queue %s does not exist", dest.name)
	}
	now = s.clock.Now()
	m, ok := src.byID[id]
	if !ok || !m.available(now) {
		// Claimed or deleted by a consumer in the meantime.
		return true, nil
	}
	if dest.fifo && m.groupID == "" {
		return false, fmt.Errorf("message %s has no MessageGroupId and cannot be moved to FIFO queue %s", id, dest.name)
	}

	src.remove(m)
	m.receiptHandle = ""
	m.receiveCount = 0
	m.firstReceivedAt = time.Time{}
	m.visibleAt = now
	m.deadLetterSourceArn = ""
	if dest.fifo {
		m.sequenceNumber = dest.nextSequenceNumber()
	}
	dest.push(m)
	dest.wake()

	t.moved.Add(1)
	metrics.MessagesMoved.Inc()
	return true, nil
}

// CancelMessageMoveTask stops a running task and returns how many messages it moved.
func (s *MemoryStore) CancelMessageMoveTask(ctx context.Context, taskHandle string) (int64, error) {
	if taskHandle == "" {
		return 0, missingParameter("TaskHandle")
	}
	s.tasks.mu.Lock()
	t, ok := s.tasks.byHandle[taskHandle]
	s.tasks.mu.Unlock()
	if !ok {
		return 0, newError(KindNotFound, ErrResourceNotFound.Code, "Task does not exist.")
	}
	if !s.tasks.transition(t, TaskCancelled, "") {
		return 0, ErrFailedPrecondition
	}
	return t.moved.Load(), nil
}

// ListMessageMoveTasks returns the tasks of a source queue, most recent first.
func (s *MemoryStore) ListMessageMoveTasks(ctx context.Context, sourceArn string, maxResults int) ([]models.ListMessageMoveTasksResultEntry, error) {
	if sourceArn == "" {
		return nil, missingParameter("SourceArn")
	}
	sourceName := arnQueueName(sourceArn)
	if sourceName == "" {
		return nil, invalidParameter("Value %s for parameter SourceArn is invalid.", sourceArn)
	}
	if _, err := s.lookup(sourceName); err != nil {
		return nil, newError(KindNotFound, ErrResourceNotFound.Code, "The resource that you specified for the SourceArn parameter doesn't exist.")
	}
	if maxResults == 0 {
		maxResults = defaultListLength
	}
	if maxResults < 1 || maxResults > maxListMoveTasks {
		return nil, invalidParameter("Value %d for parameter MaxResults is invalid. Reason: must be between 1 and 10.", maxResults)
	}

	s.tasks.mu.Lock()
	defer s.tasks.mu.Unlock()
	results := []models.ListMessageMoveTasksResultEntry{}
	for i := len(s.tasks.all) - 1; i >= 0 && len(results) < maxResults; i-- {
		t := s.tasks.all[i]
		if t.sourceName != sourceName {
			continue
		}
		entry := models.ListMessageMoveTasksResultEntry{
			ApproximateNumberOfMessagesMoved:  t.moved.Load(),
			ApproximateNumberOfMessagesToMove: t.toMove,
			DestinationArn:                    t.destinationArn,
			FailureReason:                     t.failureReason,
			MaxNumberOfMessagesPerSecond:      t.maxPerSecond,
			SourceArn:                         t.sourceArn,
			StartedTimestamp:                  t.startedAt.UnixMilli(),
			Status:                            t.status,
		}
		if t.status == TaskRunning {
			entry.TaskHandle = t.handle
		}
		results = append(results, entry)
	}
	return results, nil
}
