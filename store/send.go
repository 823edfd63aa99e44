package store

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tabeth/memq/metrics"
	"github.com/tabeth/memq/models"
)

const (
	maxMessageAttributes = 10
	maxDelaySeconds      = 900
	traceHeaderAttribute = "AWSTraceHeader"
)

var messageAttributeNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// isValidMessageAttributeName validates the format of a custom message attribute name against SQS rules.
func isValidMessageAttributeName(name string) bool {
	if name == "" || len(name) > 256 {
		return false
	}
	// Custom attributes cannot start with "aws." or "amazon.".
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "aws.") || strings.HasPrefix(lower, "amazon.") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return false
	}
	return messageAttributeNameRegex.MatchString(name)
}

// isValidMessageBody reports whether body only uses the characters SQS
// accepts: #x9 | #xA | #xD | #x20 to #xD7FF | #xE000 to #xFFFD | #x10000 to #x10FFFF.
func isValidMessageBody(body string) bool {
	if !utf8.ValidString(body) {
		return false
	}
	for _, r := range body {
		switch {
		case r == 0x9, r == 0xA, r == 0xD:
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

func validateMessageAttributes(attributes map[string]models.MessageAttributeValue) error {
	if len(attributes) > maxMessageAttributes {
		return invalidParameter("Number of message attributes [%d] exceeds the allowed maximum [%d].", len(attributes), maxMessageAttributes)
	}
	for name, attr := range attributes {
		if !isValidMessageAttributeName(name) {
			return invalidParameter("Message attribute name '%s' is invalid.", name)
		}
		if err := validateAttributeValue(name, attr.DataType, attr.StringValue, attr.BinaryValue); err != nil {
			return err
		}
	}
	return nil
}

func validateAttributeValue(name, dataType string, stringValue *string, binaryValue []byte) error {
	base, _, _ := strings.Cut(dataType, ".")
	switch base {
	case "String":
		if stringValue == nil || *stringValue == "" {
			return invalidParameter("Message attribute '%s' must contain a non-empty value of message attribute type '%s'.", name, dataType)
		}
	case "Number":
		if stringValue == nil {
			return invalidParameter("Message attribute '%s' must contain a non-empty value of message attribute type '%s'.", name, dataType)
		}
		if _, err := strconv.ParseFloat(*stringValue, 64); err != nil {
			return invalidParameter("Can't cast the value of message attribute '%s' to a number.", name)
		}
	case "Binary":
		if len(binaryValue) == 0 {
			return invalidParameter("Message attribute '%s' must contain a non-empty value of message attribute type '%s'.", name, dataType)
		}
	case "":
		return invalidParameter("DataType of message attribute '%s' is required.", name)
	default:
		return invalidParameter("The type of message attribute '%s' is invalid. You must use only the following supported type prefixes: Binary, Number, String.", name)
	}
	return nil
}

func validateSystemAttributes(attributes map[string]models.MessageSystemAttributeValue) error {
	for name, attr := range attributes {
		if name != traceHeaderAttribute {
			return invalidParameter("'%s' is not a valid message system attribute.", name)
		}
		if attr.DataType != "String" {
			return invalidParameter("DataType of AWSTraceHeader must be String.")
		}
		if attr.StringValue == nil || *attr.StringValue == "" {
			return invalidParameter("Message system attribute '%s' must contain a non-empty value.", name)
		}
	}
	return nil
}

// messageSize is the size SQS counts against MaximumMessageSize and the batch limit.
func messageSize(body string, attributes map[string]models.MessageAttributeValue) int {
	size := len(body)
	for name, attr := range attributes {
		size += len(name) + len(attr.DataType) + len(attr.BinaryValue)
		if attr.StringValue != nil {
			size += len(*attr.StringValue)
		}
	}
	return size
}

// SendMessage appends a message to the queue, subject to FIFO deduplication.
func (s *MemoryStore) SendMessage(ctx context.Context, queueName string, req *models.SendMessageRequest) (*models.SendMessageResponse, error) {
	q, err := s.lookup(queueName)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, q, req)
}

func (s *MemoryStore) send(ctx context.Context, q *queue, req *models.SendMessageRequest) (*models.SendMessageResponse, error) {
	if req.MessageBody == "" {
		return nil, missingParameter("MessageBody")
	}
	if !isValidMessageBody(req.MessageBody) {
		return nil, ErrInvalidMessageContents
	}
	if req.DelaySeconds != nil && (*req.DelaySeconds < 0 || *req.DelaySeconds > maxDelaySeconds) {
		return nil, invalidParameter("Value %d for parameter DelaySeconds is invalid. Reason: must be between 0 and 900, if provided.", *req.DelaySeconds)
	}
	if err := validateMessageAttributes(req.MessageAttributes); err != nil {
		return nil, err
	}
	if err := validateSystemAttributes(req.MessageSystemAttributes); err != nil {
		return nil, err
	}
	senderID := s.identity(ctx).AccountID

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return nil, ErrQueueDoesNotExist
	}
	if size := messageSize(req.MessageBody, req.MessageAttributes); size > q.cfg.maxMessageSize {
		return nil, invalidParameter("One or more parameters are invalid. Reason: Message must be shorter than %d bytes.", q.cfg.maxMessageSize)
	}

	now := s.clock.Now()
	m := &message{
		id:                    uuid.NewString(),
		body:                  req.MessageBody,
		attributes:            req.MessageAttributes,
		systemAttributes:      req.MessageSystemAttributes,
		md5OfBody:             md5Hex([]byte(req.MessageBody)),
		md5OfAttributes:       md5OfAttributes(req.MessageAttributes),
		md5OfSystemAttributes: md5OfSystemAttributes(req.MessageSystemAttributes),
		senderID:              senderID,
		sentAt:                now,
	}
	delay := q.cfg.delaySeconds

	var dedupKey string
	if q.fifo {
		if req.DelaySeconds != nil && *req.DelaySeconds != 0 {
			return nil, invalidParameter("Value %d for parameter DelaySeconds is invalid. Reason: The request include parameter that is not valid for this queue type.", *req.DelaySeconds)
		}
		if req.MessageGroupId == nil {
			return nil, missingParameter("MessageGroupId")
		}
		if err := validateFifoID("MessageGroupId", *req.MessageGroupId); err != nil {
			return nil, err
		}
		m.groupID = *req.MessageGroupId

		switch {
		case req.MessageDeduplicationId != nil:
			if err := validateFifoID("MessageDeduplicationId", *req.MessageDeduplicationId); err != nil {
				return nil, err
			}
			m.dedupID = *req.MessageDeduplicationId
		case q.cfg.contentBasedDedup:
			m.dedupID = contentDedupID(req.MessageBody)
		default:
			return nil, invalidParameter("The queue should either have ContentBasedDeduplication enabled or MessageDeduplicationId provided explicitly.")
		}

		dedupKey = q.dedupKey(m.groupID, m.dedupID)
		if dup := q.findDuplicate(dedupKey, now); dup != nil {
			metrics.MessagesDeduplicated.WithLabelValues(q.name).Inc()
			return &models.SendMessageResponse{
				MessageId:                    dup.messageID,
				MD5OfMessageBody:             m.md5OfBody,
				MD5OfMessageAttributes:       m.md5OfAttributes,
				MD5OfMessageSystemAttributes: m.md5OfSystemAttributes,
				SequenceNumber:               models.Ptr(dup.sequenceNumber),
			}, nil
		}
		m.sequenceNumber = q.nextSequenceNumber()
	} else {
		if req.MessageDeduplicationId != nil {
			return nil, invalidParameter("MessageDeduplicationId is supported only for FIFO queues.")
		}
		if req.MessageGroupId != nil {
			if err := validateFifoID("MessageGroupId", *req.MessageGroupId); err != nil {
				return nil, err
			}
			m.groupID = *req.MessageGroupId
		}
		if req.DelaySeconds != nil {
			delay = int(*req.DelaySeconds)
		}
	}

	m.visibleAt = now.Add(time.Duration(delay) * time.Second)
	q.push(m)
	if q.fifo {
		q.recordSend(dedupKey, m, s.opts.DedupWindow, now)
	}
	q.wake()
	metrics.MessagesSent.WithLabelValues(q.name).Inc()

	resp := &models.SendMessageResponse{
		MessageId:                    m.id,
		MD5OfMessageBody:             m.md5OfBody,
		MD5OfMessageAttributes:       m.md5OfAttributes,
		MD5OfMessageSystemAttributes: m.md5OfSystemAttributes,
	}
	if q.fifo {
		resp.SequenceNumber = models.Ptr(m.sequenceNumber)
	}
	return resp, nil
}
