package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabeth/memq/logging"
	"github.com/tabeth/memq/metrics"
	"github.com/tabeth/memq/models"
)

const (
	maxReceiveMessages   = 10
	maxWaitTimeSeconds   = 20
	maxVisibilityTimeout = 43200
)

// validMessageSystemAttributeNames is a set of the allowed system attribute names for messages.
var validMessageSystemAttributeNames = map[string]bool{
	"All":                              true,
	"SenderId":                         true,
	"SentTimestamp":                    true,
	"ApproximateReceiveCount":          true,
	"ApproximateFirstReceiveTimestamp": true,
	"SequenceNumber":                   true,
	"MessageDeduplicationId":           true,
	"MessageGroupId":                   true,
	"AWSTraceHeader":                   true,
	"DeadLetterQueueSourceArn":         true,
}

type receiveParams struct {
	max               int
	wait              *int
	visibility        *int
	allSystem         bool
	systemNames       map[string]bool
	messageAttributes []string
}

func newReceiveParams(req *models.ReceiveMessageRequest) (*receiveParams, error) {
	p := &receiveParams{max: 1, systemNames: make(map[string]bool)}
	if req.MaxNumberOfMessages != nil {
		p.max = *req.MaxNumberOfMessages
		if p.max < 1 || p.max > maxReceiveMessages {
			return nil, invalidParameter("Value %d for parameter MaxNumberOfMessages is invalid. Reason: Must be between 1 and 10, if provided.", p.max)
		}
	}
	if req.WaitTimeSeconds != nil {
		if *req.WaitTimeSeconds < 0 || *req.WaitTimeSeconds > maxWaitTimeSeconds {
			return nil, invalidParameter("Value %d for parameter WaitTimeSeconds is invalid. Reason: Must be >= 0 and <= 20, if provided.", *req.WaitTimeSeconds)
		}
		p.wait = req.WaitTimeSeconds
	}
	if req.VisibilityTimeout != nil {
		if *req.VisibilityTimeout < 0 || *req.VisibilityTimeout > maxVisibilityTimeout {
			return nil, invalidParameter("Value %d for parameter VisibilityTimeout is invalid. Reason: Must be between 0 and 43200, if provided.", *req.VisibilityTimeout)
		}
		p.visibility = req.VisibilityTimeout
	}

	names := append(append([]string{}, req.AttributeNames...), req.MessageSystemAttributeNames...)
	for _, n := range names {
		if !validMessageSystemAttributeNames[n] {
			return nil, invalidAttributeName(n)
		}
		if n == "All" {
			p.allSystem = true
		}
		p.systemNames[n] = true
	}
	p.messageAttributes = req.MessageAttributeNames
	return p, nil
}

func (p *receiveParams) wantsSystem(name string) bool {
	return p.allSystem || p.systemNames[name]
}

func (p *receiveParams) wantsAttribute(name string) bool {
	for _, n := range p.messageAttributes {
		switch {
		case n == "All" || n == ".*":
			return true
		case strings.HasSuffix(n, ".*"):
			if strings.HasPrefix(name, strings.TrimSuffix(n, "*")) {
				return true
			}
		case n == name:
			return true
		}
	}
	return false
}

type scanResult struct {
	messages    []models.ResponseMessage
	notify      <-chan struct{}
	nextVisible time.Time
	epoch       uint64
	deleted     bool
}

// ReceiveMessage claims up to MaxNumberOfMessages available messages, oldest
// first, long polling for up to WaitTimeSeconds when none is available.
func (s *MemoryStore) ReceiveMessage(ctx context.Context, queueName string, req *models.ReceiveMessageRequest) (*models.ReceiveMessageResponse, error) {
	p, err := newReceiveParams(req)
	if err != nil {
		return nil, err
	}
	q, err := s.lookup(queueName)
	if err != nil {
		return nil, err
	}

	start := s.clock.Now()
	res := s.receiveOnce(q, p)
	if res.deleted {
		return nil, ErrQueueDoesNotExist
	}
	wait := q.waitSeconds(p)
	if len(res.messages) > 0 || wait == 0 {
		return &models.ReceiveMessageResponse{Messages: res.messages}, nil
	}

	epoch := res.epoch
	deadline := start.Add(time.Duration(wait) * time.Second)
	defer func() {
		metrics.ReceiveWaitDuration.Observe(s.clock.Since(start).Seconds())
	}()
	for {
		now := s.clock.Now()
		d := deadline.Sub(now)
		if d <= 0 {
			return &models.ReceiveMessageResponse{}, nil
		}
		if !res.nextVisible.IsZero() && res.nextVisible.Sub(now) < d {
			d = res.nextVisible.Sub(now)
		}

		timer := s.clock.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-res.notify:
		case <-timer.Chan():
		}
		timer.Stop()

		res = s.receiveOnce(q, p)
		if res.deleted || res.epoch != epoch {
			// Deleted or purged while waiting.
			return &models.ReceiveMessageResponse{}, nil
		}
		if len(res.messages) > 0 {
			return &models.ReceiveMessageResponse{Messages: res.messages}, nil
		}
	}
}

func (q *queue) waitSeconds(p *receiveParams) int {
	if p.wait != nil {
		return *p.wait
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg.waitTimeSeconds
}

// receiveOnce runs one scan of q with its dead-letter queue locked alongside,
// so that redrive is atomic with respect to both queues.
func (s *MemoryStore) receiveOnce(q *queue, p *receiveParams) scanResult {
	for {
		q.mu.Lock()
		target := q.redriveTarget()
		q.mu.Unlock()

		var dlq *queue
		if target != "" {
			dlq, _ = s.lookup(target)
		}

		unlock := lockPair(q, dlq)
		if q.redriveTarget() != target {
			// The policy changed between the two lock acquisitions.
			unlock()
			continue
		}
		res := s.scan(q, dlq, p)
		unlock()
		return res
	}
}

// scan claims messages from q. Callers hold q.mu and, when non-nil, dlq.mu.
func (s *MemoryStore) scan(q, dlq *queue, p *receiveParams) scanResult {
	res := scanResult{notify: q.notify, epoch: q.purgeEpoch, deleted: q.deleted}
	if q.deleted {
		return res
	}
	now := s.clock.Now()

	maxReceive := 0
	if dlq != nil && !dlq.deleted && dlq.fifo == q.fifo && q.cfg.redrive != nil && dlq.cfg.redriveAllow.allows(q.arn) {
		maxReceive = q.cfg.redrive.MaxReceiveCount
	}
	visibility := q.cfg.visibilityTimeout
	if p.visibility != nil {
		visibility = *p.visibility
	}

	var locked, skipped map[string]bool
	if q.fifo {
		locked = q.lockedGroups(now)
		skipped = make(map[string]bool)
	}

	for e := q.messages.Front(); e != nil && len(res.messages) < p.max; {
		next := e.Next()
		m := e.Value.(*message)
		e = next

		if !q.sweep(m, now) {
			continue
		}
		if !m.available(now) {
			if q.fifo {
				skipped[m.groupID] = true
			}
			if res.nextVisible.IsZero() || m.visibleAt.Before(res.nextVisible) {
				res.nextVisible = m.visibleAt
			}
			continue
		}
		if q.fifo && (locked[m.groupID] || skipped[m.groupID]) {
			continue
		}

		if maxReceive > 0 && m.receiveCount+1 > maxReceive {
			s.redrive(q, dlq, m, now)
			continue
		}

		m.receiptHandle = uuid.NewString()
		q.byHandle[m.receiptHandle] = m
		m.receiveCount++
		if m.firstReceivedAt.IsZero() {
			m.firstReceivedAt = now
		}
		m.visibleAt = now.Add(time.Duration(visibility) * time.Second)
		res.messages = append(res.messages, project(m, p))
	}

	if n := len(res.messages); n > 0 {
		metrics.MessagesReceived.WithLabelValues(q.name).Add(float64(n))
	}
	return res
}

// redrive transfers m from q to its dead-letter queue. Callers hold both locks.
func (s *MemoryStore) redrive(q, dlq *queue, m *message, now time.Time) {
	q.remove(m)
	m.receiptHandle = ""
	m.receiveCount = 0
	m.firstReceivedAt = time.Time{}
	m.visibleAt = now
	m.deadLetterSourceArn = q.arn
	if dlq.fifo {
		m.sequenceNumber = dlq.nextSequenceNumber()
	}
	dlq.push(m)
	dlq.wake()

	metrics.MessagesRedriven.WithLabelValues(q.name).Inc()
	logging.WithFields(logging.Fields{
		"event":      "redrive",
		"queue":      q.name,
		"dlq":        dlq.name,
		"message_id": m.id,
	}).Debug("message moved to dead-letter queue")
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// project builds the client view of a freshly claimed message.
func project(m *message, p *receiveParams) models.ResponseMessage {
	out := models.ResponseMessage{
		MessageId:     m.id,
		ReceiptHandle: m.receiptHandle,
		Body:          m.body,
		MD5OfBody:     m.md5OfBody,
	}

	system := map[string]string{}
	add := func(name, value string) {
		if value != "" && p.wantsSystem(name) {
			system[name] = value
		}
	}
	add("SenderId", m.senderID)
	add("SentTimestamp", millis(m.sentAt))
	add("ApproximateReceiveCount", strconv.Itoa(m.receiveCount))
	add("ApproximateFirstReceiveTimestamp", millis(m.firstReceivedAt))
	add("SequenceNumber", m.sequenceNumber)
	add("MessageDeduplicationId", m.dedupID)
	add("MessageGroupId", m.groupID)
	add("DeadLetterQueueSourceArn", m.deadLetterSourceArn)
	if th, ok := m.systemAttributes[traceHeaderAttribute]; ok && th.StringValue != nil {
		add(traceHeaderAttribute, *th.StringValue)
	}
	if len(system) > 0 {
		out.Attributes = system
	}

	if len(p.messageAttributes) > 0 && len(m.attributes) > 0 {
		selected := make(map[string]models.MessageAttributeValue)
		for name, v := range m.attributes {
			if p.wantsAttribute(name) {
				selected[name] = v
			}
		}
		if len(selected) > 0 {
			out.MessageAttributes = selected
			out.MD5OfMessageAttributes = md5OfAttributes(selected)
		}
	}
	return out
}

// DeleteMessage removes the message currently claimed with receiptHandle.
func (s *MemoryStore) DeleteMessage(ctx context.Context, queueName string, receiptHandle string) error {
	q, err := s.lookup(queueName)
	if err != nil {
		return err
	}
	return s.deleteMessage(q, receiptHandle)
}

func (s *MemoryStore) deleteMessage(q *queue, receiptHandle string) error {
	if receiptHandle == "" {
		return missingParameter("ReceiptHandle")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return ErrQueueDoesNotExist
	}
	m := q.liveClaim(receiptHandle, s.clock.Now())
	if m == nil {
		return ErrInvalidReceiptHandle
	}
	q.remove(m)
	// A delete may unlock the next message of a FIFO group.
	q.wake()
	metrics.MessagesDeleted.WithLabelValues(q.name).Inc()
	return nil
}

// ChangeMessageVisibility moves the visibility deadline of a live claim.
// A timeout of 0 releases the message immediately.
func (s *MemoryStore) ChangeMessageVisibility(ctx context.Context, queueName string, receiptHandle string, visibilityTimeout int) error {
	q, err := s.lookup(queueName)
	if err != nil {
		return err
	}
	return s.changeVisibility(q, receiptHandle, visibilityTimeout)
}

func (s *MemoryStore) changeVisibility(q *queue, receiptHandle string, visibilityTimeout int) error {
	if receiptHandle == "" {
		return missingParameter("ReceiptHandle")
	}
	if visibilityTimeout < 0 || visibilityTimeout > maxVisibilityTimeout {
		return invalidParameter("Value %d for parameter VisibilityTimeout is invalid. Reason: Must be between 0 and 43200.", visibilityTimeout)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return ErrQueueDoesNotExist
	}
	now := s.clock.Now()
	m := q.liveClaim(receiptHandle, now)
	if m == nil {
		return ErrInvalidReceiptHandle
	}
	m.visibleAt = now.Add(time.Duration(visibilityTimeout) * time.Second)
	if visibilityTimeout == 0 {
		q.release(m)
	}
	q.wake()
	return nil
}
