package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/tabeth/memq/metrics"
	"github.com/tabeth/memq/models"
)

// message is a stored message. Its lifecycle state is never stored; it is
// derived from receiptHandle and visibleAt against the clock:
//
//	InFlight   receiptHandle != "" && visibleAt > now
//	Delayed    no live claim && visibleAt > now
//	Available  visibleAt <= now
type message struct {
	id               string
	body             string
	attributes       map[string]models.MessageAttributeValue
	systemAttributes map[string]models.MessageSystemAttributeValue

	md5OfBody             string
	md5OfAttributes       *string
	md5OfSystemAttributes *string

	senderID        string
	sentAt          time.Time
	visibleAt       time.Time
	receiptHandle   string
	receiveCount    int
	firstReceivedAt time.Time

	// FIFO only.
	groupID        string
	dedupID        string
	sequenceNumber string

	deadLetterSourceArn string

	elem *list.Element
}

func (m *message) inFlight(now time.Time) bool {
	return m.receiptHandle != "" && m.visibleAt.After(now)
}

func (m *message) available(now time.Time) bool {
	return !m.visibleAt.After(now)
}

type dedupEntry struct {
	key            string
	messageID      string
	sequenceNumber string
	expiresAt      time.Time
}

// queue holds the state of one queue. name, url, arn, fifo, ordinal and
// createdAt never change after creation; everything else is guarded by mu.
type queue struct {
	name      string
	url       string
	arn       string
	fifo      bool
	ordinal   uint64
	createdAt time.Time

	mu         sync.Mutex
	modifiedAt time.Time
	attrs      map[string]string
	cfg        queueConfig
	tags       map[string]string

	messages *list.List
	byID     map[string]*message
	byHandle map[string]*message

	lastPurge  time.Time
	purgeEpoch uint64
	deleted    bool

	sequence   uint64
	dedup      map[string]*list.Element
	dedupOrder *list.List

	notify chan struct{}
}

func newQueue(name, url, arn string, fifo bool, ordinal uint64, now time.Time, attrs, tags map[string]string) *queue {
	q := &queue{
		name:       name,
		url:        url,
		arn:        arn,
		fifo:       fifo,
		ordinal:    ordinal,
		createdAt:  now,
		modifiedAt: now,
		attrs:      attrs,
		cfg:        parseConfig(attrs),
		tags:       make(map[string]string, len(tags)),
		messages:   list.New(),
		byID:       make(map[string]*message),
		byHandle:   make(map[string]*message),
		dedup:      make(map[string]*list.Element),
		dedupOrder: list.New(),
		notify:     make(chan struct{}),
	}
	for k, v := range tags {
		q.tags[k] = v
	}
	return q
}

// wake releases every long-poll waiter. Callers hold q.mu.
func (q *queue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// push appends m in arrival order. Callers hold q.mu.
func (q *queue) push(m *message) {
	m.elem = q.messages.PushBack(m)
	q.byID[m.id] = m
}

// remove drops m from every index. Callers hold q.mu.
func (q *queue) remove(m *message) {
	if m.elem != nil {
		q.messages.Remove(m.elem)
		m.elem = nil
	}
	delete(q.byID, m.id)
	if m.receiptHandle != "" {
		delete(q.byHandle, m.receiptHandle)
	}
}

// release forgets the current claim of m. Callers hold q.mu.
func (q *queue) release(m *message) {
	if m.receiptHandle != "" {
		delete(q.byHandle, m.receiptHandle)
		m.receiptHandle = ""
	}
}

// sweep applies lazy expiry to m: it drops messages past the retention
// period and forgets claims whose visibility timeout has passed. It reports
// whether m is still stored. Callers hold q.mu.
func (q *queue) sweep(m *message, now time.Time) bool {
	if now.Sub(m.sentAt) >= time.Duration(q.cfg.retentionSeconds)*time.Second {
		q.remove(m)
		metrics.MessagesExpired.WithLabelValues(q.name).Inc()
		return false
	}
	if m.receiptHandle != "" && m.available(now) {
		q.release(m)
	}
	return true
}

// liveClaim returns the message currently claimed with handle, or nil when
// the handle is unknown or its claim has expired. Callers hold q.mu.
func (q *queue) liveClaim(handle string, now time.Time) *message {
	m, ok := q.byHandle[handle]
	if !ok {
		return nil
	}
	if !m.inFlight(now) {
		q.release(m)
		return nil
	}
	return m
}

// counts returns the number of available, in-flight and delayed messages.
// Callers hold q.mu.
func (q *queue) counts(now time.Time) (available, inFlight, delayed int) {
	for e := q.messages.Front(); e != nil; {
		next := e.Next()
		m := e.Value.(*message)
		if q.sweep(m, now) {
			switch {
			case m.inFlight(now):
				inFlight++
			case m.available(now):
				available++
			default:
				delayed++
			}
		}
		e = next
	}
	return available, inFlight, delayed
}

// clear removes every message. Callers hold q.mu.
func (q *queue) clear() {
	q.messages.Init()
	q.byID = make(map[string]*message)
	q.byHandle = make(map[string]*message)
}

// redriveTarget returns the dead-letter queue name configured on q, if any.
// Callers hold q.mu.
func (q *queue) redriveTarget() string {
	if q.cfg.redrive == nil {
		return ""
	}
	return arnQueueName(q.cfg.redrive.DeadLetterTargetArn)
}

func (q *queue) nextSequenceNumber() string {
	q.sequence++
	return formatSequenceNumber(q.sequence)
}

// lockPair locks a and b in creation order so that two goroutines moving
// messages in opposite directions cannot deadlock. b may be nil or equal to a.
func lockPair(a, b *queue) func() {
	if b == nil || a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if second.ordinal < first.ordinal {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
