package store

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// Settable queue attributes.
const (
	attrDelaySeconds                  = "DelaySeconds"
	attrMaximumMessageSize            = "MaximumMessageSize"
	attrMessageRetentionPeriod        = "MessageRetentionPeriod"
	attrReceiveMessageWaitTimeSeconds = "ReceiveMessageWaitTimeSeconds"
	attrVisibilityTimeout             = "VisibilityTimeout"
	attrFifoQueue                     = "FifoQueue"
	attrContentBasedDeduplication     = "ContentBasedDeduplication"
	attrDeduplicationScope            = "DeduplicationScope"
	attrFifoThroughputLimit           = "FifoThroughputLimit"
	attrRedrivePolicy                 = "RedrivePolicy"
	attrRedriveAllowPolicy            = "RedriveAllowPolicy"
	attrPolicy                        = "Policy"
	attrKmsMasterKeyID                = "KmsMasterKeyId"
	attrKmsDataKeyReusePeriodSeconds  = "KmsDataKeyReusePeriodSeconds"
	attrSqsManagedSseEnabled          = "SqsManagedSseEnabled"
)

// Read-only attributes computed on every GetQueueAttributes call.
const (
	attrQueueArn                              = "QueueArn"
	attrCreatedTimestamp                      = "CreatedTimestamp"
	attrLastModifiedTimestamp                 = "LastModifiedTimestamp"
	attrApproximateNumberOfMessages           = "ApproximateNumberOfMessages"
	attrApproximateNumberOfMessagesNotVisible = "ApproximateNumberOfMessagesNotVisible"
	attrApproximateNumberOfMessagesDelayed    = "ApproximateNumberOfMessagesDelayed"
)

var fifoOnlyAttributes = []string{attrContentBasedDeduplication, attrDeduplicationScope, attrFifoThroughputLimit}

var computedAttributes = map[string]bool{
	attrQueueArn:                              true,
	attrCreatedTimestamp:                      true,
	attrLastModifiedTimestamp:                 true,
	attrApproximateNumberOfMessages:           true,
	attrApproximateNumberOfMessagesNotVisible: true,
	attrApproximateNumberOfMessagesDelayed:    true,
}

type intRange struct{ min, max int }

var intAttributes = map[string]intRange{
	attrDelaySeconds:                  {0, 900},
	attrMaximumMessageSize:            {1024, 262144},
	attrMessageRetentionPeriod:        {60, 1209600},
	attrReceiveMessageWaitTimeSeconds: {0, 20},
	attrVisibilityTimeout:             {0, 43200},
	attrKmsDataKeyReusePeriodSeconds:  {60, 86400},
}

// Attributes that an empty value removes instead of setting.
var clearableAttributes = map[string]bool{
	attrRedrivePolicy:      true,
	attrRedriveAllowPolicy: true,
	attrPolicy:             true,
	attrKmsMasterKeyID:     true,
}

// defaultAttributes returns the effective attributes of a queue nobody configured.
func defaultAttributes(fifo bool) map[string]string {
	attrs := map[string]string{
		attrDelaySeconds:                  "0",
		attrMaximumMessageSize:            "262144",
		attrMessageRetentionPeriod:        "345600",
		attrReceiveMessageWaitTimeSeconds: "0",
		attrVisibilityTimeout:             "30",
	}
	if fifo {
		attrs[attrFifoQueue] = "true"
		attrs[attrContentBasedDeduplication] = "false"
		attrs[attrDeduplicationScope] = "messageGroup"
		attrs[attrFifoThroughputLimit] = "perQueue"
	}
	return attrs
}

// effectiveValue returns what a queue reports for name, falling back to the
// implicit default for attributes it does not render.
func effectiveValue(attrs map[string]string, name string, fifo bool) string {
	if v, ok := attrs[name]; ok {
		return v
	}
	switch name {
	case attrFifoQueue:
		return strconv.FormatBool(fifo)
	case attrSqsManagedSseEnabled:
		return "false"
	}
	return ""
}

type redrivePolicy struct {
	DeadLetterTargetArn string `json:"deadLetterTargetArn"`
	MaxReceiveCount     int    `json:"maxReceiveCount"`
}

type redriveAllowPolicy struct {
	RedrivePermission string   `json:"redrivePermission"`
	SourceQueueArns   []string `json:"sourceQueueArns,omitempty"`
}

// allows reports whether a queue with sourceArn may dead-letter into the
// queue carrying this policy. A nil policy allows everything.
func (p *redriveAllowPolicy) allows(sourceArn string) bool {
	if p == nil {
		return true
	}
	switch p.RedrivePermission {
	case "denyAll":
		return false
	case "byQueue":
		for _, arn := range p.SourceQueueArns {
			if arn == sourceArn {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// queueConfig is the parsed form of a queue's effective attributes.
type queueConfig struct {
	delaySeconds      int
	maxMessageSize    int
	retentionSeconds  int
	waitTimeSeconds   int
	visibilityTimeout int
	contentBasedDedup bool
	queueScopedDedup  bool
	redrive           *redrivePolicy
	redriveAllow      *redriveAllowPolicy
}

// parseConfig assumes attrs has already been normalized.
func parseConfig(attrs map[string]string) queueConfig {
	atoi := func(name string) int {
		n, _ := strconv.Atoi(attrs[name])
		return n
	}
	cfg := queueConfig{
		delaySeconds:      atoi(attrDelaySeconds),
		maxMessageSize:    atoi(attrMaximumMessageSize),
		retentionSeconds:  atoi(attrMessageRetentionPeriod),
		waitTimeSeconds:   atoi(attrReceiveMessageWaitTimeSeconds),
		visibilityTimeout: atoi(attrVisibilityTimeout),
		contentBasedDedup: attrs[attrContentBasedDeduplication] == "true",
		queueScopedDedup:  attrs[attrDeduplicationScope] == "queue",
	}
	if raw, ok := attrs[attrRedrivePolicy]; ok {
		var p redrivePolicy
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			cfg.redrive = &p
		}
	}
	if raw, ok := attrs[attrRedriveAllowPolicy]; ok {
		var p redriveAllowPolicy
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			cfg.redriveAllow = &p
		}
	}
	return cfg
}

// normalizeAttributes validates attribute values and returns them in the
// canonical form used for storage and idempotency checks. An empty value for
// a clearable attribute is kept as "" so callers can tell removal apart.
func normalizeAttributes(attributes map[string]string, fifo bool) (map[string]string, error) {
	out := make(map[string]string, len(attributes))
	for name, val := range attributes {
		if computedAttributes[name] {
			return nil, invalidAttributeName(name)
		}
		norm, err := normalizeAttribute(name, val)
		if err != nil {
			return nil, err
		}
		out[name] = norm
	}

	if !fifo {
		if v, ok := out[attrFifoQueue]; ok && v == "true" {
			return nil, invalidParameter("FifoQueue attribute is 'true' but queue name does not end in .fifo.")
		}
		for _, name := range fifoOnlyAttributes {
			if _, ok := out[name]; ok {
				return nil, invalidParameter("%s is only valid for FIFO queues.", name)
			}
		}
	}
	return out, nil
}

func normalizeAttribute(name, val string) (string, error) {
	if r, ok := intAttributes[name]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < r.min || n > r.max {
			return "", invalidParameter("Invalid value for the parameter %s. Reason: must be an integer between %d and %d.", name, r.min, r.max)
		}
		return strconv.Itoa(n), nil
	}

	switch name {
	case attrFifoQueue, attrContentBasedDeduplication, attrSqsManagedSseEnabled:
		switch strings.ToLower(val) {
		case "true", "false":
			return strings.ToLower(val), nil
		}
		return "", invalidParameter("Invalid value for the parameter %s. Reason: must be 'true' or 'false'.", name)
	case attrDeduplicationScope:
		if val != "messageGroup" && val != "queue" {
			return "", invalidParameter("Invalid value for the parameter DeduplicationScope. Reason: must be 'messageGroup' or 'queue'.")
		}
		return val, nil
	case attrFifoThroughputLimit:
		if val != "perQueue" && val != "perMessageGroupId" {
			return "", invalidParameter("Invalid value for the parameter FifoThroughputLimit. Reason: must be 'perQueue' or 'perMessageGroupId'.")
		}
		return val, nil
	case attrRedrivePolicy:
		if val == "" {
			return "", nil
		}
		p, err := parseRedrivePolicy(val)
		if err != nil {
			return "", err
		}
		b, _ := json.Marshal(p)
		return string(b), nil
	case attrRedriveAllowPolicy:
		if val == "" {
			return "", nil
		}
		p, err := parseRedriveAllowPolicy(val)
		if err != nil {
			return "", err
		}
		b, _ := json.Marshal(p)
		return string(b), nil
	case attrPolicy:
		if val == "" {
			return "", nil
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(val)); err != nil {
			return "", invalidParameter("Invalid value for the parameter Policy. Reason: must be a valid JSON document.")
		}
		return buf.String(), nil
	case attrKmsMasterKeyID:
		return val, nil
	}
	return "", invalidAttributeName(name)
}

func parseRedrivePolicy(val string) (*redrivePolicy, error) {
	var raw struct {
		DeadLetterTargetArn string          `json:"deadLetterTargetArn"`
		MaxReceiveCount     json.RawMessage `json:"maxReceiveCount"`
	}
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		return nil, invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: Redrive policy is not a valid JSON map.", val)
	}
	if raw.DeadLetterTargetArn == "" {
		return nil, invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: Redrive policy does not contain mandatory attribute: deadLetterTargetArn.", val)
	}
	if arnQueueName(raw.DeadLetterTargetArn) == "" {
		return nil, invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: Invalid value for deadLetterTargetArn.", val)
	}

	// maxReceiveCount is accepted both as a JSON number and as a string.
	s := strings.Trim(string(raw.MaxReceiveCount), `"`)
	count, err := strconv.Atoi(s)
	if err != nil || count < 1 || count > 1000 {
		return nil, invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: Invalid value for maxReceiveCount: %s, valid values are from 1 to 1000 both inclusive.", val, s)
	}
	return &redrivePolicy{DeadLetterTargetArn: raw.DeadLetterTargetArn, MaxReceiveCount: count}, nil
}

func parseRedriveAllowPolicy(val string) (*redriveAllowPolicy, error) {
	var p redriveAllowPolicy
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, invalidParameter("Value %s for parameter RedriveAllowPolicy is invalid. Reason: Redrive allow policy is not a valid JSON map.", val)
	}
	switch p.RedrivePermission {
	case "allowAll", "denyAll":
		if len(p.SourceQueueArns) > 0 {
			return nil, invalidParameter("Value %s for parameter RedriveAllowPolicy is invalid. Reason: sourceQueueArns is only allowed with redrivePermission byQueue.", val)
		}
	case "byQueue":
		if len(p.SourceQueueArns) < 1 || len(p.SourceQueueArns) > 10 {
			return nil, invalidParameter("Value %s for parameter RedriveAllowPolicy is invalid. Reason: byQueue requires between 1 and 10 sourceQueueArns.", val)
		}
		sort.Strings(p.SourceQueueArns)
	default:
		return nil, invalidParameter("Value %s for parameter RedriveAllowPolicy is invalid. Reason: redrivePermission must be allowAll, denyAll or byQueue.", val)
	}
	return &p, nil
}

// checkThroughputLimit enforces the dependency between the two FIFO throughput attributes.
func checkThroughputLimit(attrs map[string]string) error {
	if attrs[attrFifoThroughputLimit] == "perMessageGroupId" && attrs[attrDeduplicationScope] == "queue" {
		return invalidParameter("FifoThroughputLimit can be set to perMessageGroupId only when DeduplicationScope is messageGroup.")
	}
	return nil
}

// arnQueueName extracts the queue name from an SQS ARN, or returns "".
func arnQueueName(s string) string {
	parsed, err := arn.Parse(s)
	if err != nil || parsed.Service != "sqs" || strings.Contains(parsed.Resource, ":") {
		return ""
	}
	return parsed.Resource
}

func formatArn(region, accountID, name string) string {
	return arn.ARN{
		Partition: "aws",
		Service:   "sqs",
		Region:    region,
		AccountID: accountID,
		Resource:  name,
	}.String()
}
