package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tabeth/memq/logging"
	"github.com/tabeth/memq/metrics"
)

// SQS queue name validation regex, based on the official AWS SQS documentation.
// A queue name can have up to 80 characters.
// Valid values: alphanumeric characters, hyphens (-), and underscores (_).
// For FIFO queues, the name must end with the .fifo suffix.
var queueNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,80}$`)

const (
	fifoSuffix       = ".fifo"
	maxListResults   = 1000
	defaultURLScheme = "http"
)

// Options configures a MemoryStore.
type Options struct {
	// Clock drives every visibility, delay, retention and dedup decision.
	Clock clockwork.Clock
	// Region, AccountID and Host are used when the context carries no Identity.
	Region    string
	AccountID string
	Host      string

	PurgeCooldown   time.Duration
	DedupWindow     time.Duration
	MaxBatchEntries int
	MaxBatchBytes   int
	DefaultMoveRate int
}

// DefaultOptions returns the options matching the SQS service limits.
func DefaultOptions() Options {
	return Options{
		Clock:           clockwork.NewRealClock(),
		Region:          "us-east-1",
		AccountID:       "000000000000",
		Host:            "localhost:8080",
		PurgeCooldown:   60 * time.Second,
		DedupWindow:     5 * time.Minute,
		MaxBatchEntries: 10,
		MaxBatchBytes:   262144,
		DefaultMoveRate: 500,
	}
}

// MemoryStore is an in-memory implementation of Store.
// The registry lock is never acquired while a queue lock is held.
type MemoryStore struct {
	opts  Options
	clock clockwork.Clock

	mu      sync.RWMutex
	queues  map[string]*queue
	ordinal uint64

	tasks *moveTasks
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty engine.
func NewMemoryStore(opts Options) *MemoryStore {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		opts:   opts,
		clock:  opts.Clock,
		queues: make(map[string]*queue),
		tasks:  newMoveTasks(),
	}
}

// Close cancels running move tasks and waits for them to stop.
func (s *MemoryStore) Close() {
	s.tasks.shutdown()
}

func (s *MemoryStore) identity(ctx context.Context) Identity {
	id, _ := IdentityFromContext(ctx)
	if id.Scheme == "" {
		id.Scheme = defaultURLScheme
	}
	if id.Host == "" {
		id.Host = s.opts.Host
	}
	if id.AccountID == "" {
		id.AccountID = s.opts.AccountID
	}
	if id.Region == "" {
		id.Region = s.opts.Region
	}
	return id
}

// lookup returns the named queue. It takes the registry read lock.
func (s *MemoryStore) lookup(name string) (*queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[name]
	if !ok {
		return nil, ErrQueueDoesNotExist
	}
	return q, nil
}

func validateQueueName(name string) (fifo bool, err error) {
	base := name
	if strings.HasSuffix(name, fifoSuffix) {
		fifo = true
		base = strings.TrimSuffix(name, fifoSuffix)
	}
	if len(name) > 80 || !queueNameRegex.MatchString(base) {
		return false, invalidParameter("Can only include alphanumeric characters, hyphens, or underscores. 1 to 80 in length.")
	}
	return fifo, nil
}

// checkRedriveTarget verifies that a dead-letter target exists, is not the
// queue itself and has the same type. It must be called without queue locks.
func (s *MemoryStore) checkRedriveTarget(name string, fifo bool, attrs map[string]string) error {
	raw, ok := attrs[attrRedrivePolicy]
	if !ok || raw == "" {
		return nil
	}
	p, err := parseRedrivePolicy(raw)
	if err != nil {
		return err
	}
	target := arnQueueName(p.DeadLetterTargetArn)
	if target == name {
		return invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: a queue cannot be its own dead-letter queue.", raw)
	}
	dlq, err := s.lookup(target)
	if err != nil {
		return invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: Dead letter target does not exist.", raw)
	}
	if dlq.fifo != fifo {
		return invalidParameter("Value %s for parameter RedrivePolicy is invalid. Reason: Dead-letter target owner should be same queue type.", raw)
	}
	return nil
}

// CreateQueue creates a queue, or returns the URL of an existing queue whose
// effective attributes match every requested value.
func (s *MemoryStore) CreateQueue(ctx context.Context, name string, attributes map[string]string, tags map[string]string) (string, error) {
	fifo, err := validateQueueName(name)
	if err != nil {
		return "", err
	}
	requested, err := normalizeAttributes(attributes, fifo)
	if err != nil {
		return "", err
	}
	if fifo && requested[attrFifoQueue] != "true" {
		return "", invalidParameter("Queue name ends in .fifo but FifoQueue attribute is not 'true'.")
	}
	for k, v := range requested {
		if v == "" && clearableAttributes[k] {
			delete(requested, k)
		}
	}

	effective := defaultAttributes(fifo)
	for k, v := range requested {
		effective[k] = v
	}
	if !fifo {
		delete(effective, attrFifoQueue)
	}
	if err := checkThroughputLimit(effective); err != nil {
		return "", err
	}
	if err := s.checkRedriveTarget(name, fifo, requested); err != nil {
		return "", err
	}

	id := s.identity(ctx)
	s.mu.Lock()
	if existing, ok := s.queues[name]; ok {
		s.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		for k, v := range requested {
			if effectiveValue(existing.attrs, k, existing.fifo) != v {
				return "", ErrQueueNameExists
			}
		}
		return existing.url, nil
	}
	s.ordinal++
	url := fmt.Sprintf("%s://%s/%s/%s", id.Scheme, id.Host, id.AccountID, name)
	q := newQueue(name, url, formatArn(id.Region, id.AccountID, name), fifo, s.ordinal, s.clock.Now(), effective, tags)
	s.queues[name] = q
	s.mu.Unlock()

	metrics.Queues.Inc()
	logging.WithFields(logging.Fields{
		"event": "create_queue",
		"queue": name,
		"fifo":  fifo,
	}).Info("queue created")
	return url, nil
}

// DeleteQueue removes the queue and its messages, wakes its long pollers and
// fails move tasks that read from or write to it.
func (s *MemoryStore) DeleteQueue(ctx context.Context, name string) error {
	s.mu.Lock()
	q, ok := s.queues[name]
	if !ok {
		s.mu.Unlock()
		return ErrQueueDoesNotExist
	}
	delete(s.queues, name)
	s.mu.Unlock()

	q.mu.Lock()
	q.deleted = true
	q.clear()
	q.wake()
	q.mu.Unlock()

	s.tasks.failTouching(name, "queue "+name+" was deleted")
	metrics.Queues.Dec()
	logging.WithFields(logging.Fields{
		"event": "delete_queue",
		"queue": name,
	}).Info("queue deleted")
	return nil
}

// GetQueueURL returns the URL the queue was created with.
func (s *MemoryStore) GetQueueURL(ctx context.Context, name string) (string, error) {
	q, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	return q.url, nil
}

// paginate applies the ListQueues pagination rules to sorted names. A token
// is only produced when maxResults was given and more names remain.
func paginate(names []string, maxResults int, nextToken string) ([]string, string, error) {
	if maxResults < 0 || maxResults > maxListResults {
		return nil, "", invalidParameter("Value %d for parameter MaxResults is invalid. Reason: must be between 1 and 1000.", maxResults)
	}
	if nextToken != "" {
		after, err := base64.StdEncoding.DecodeString(nextToken)
		if err != nil {
			return nil, "", invalidParameter("Invalid NextToken value.")
		}
		i := sort.SearchStrings(names, string(after))
		if i < len(names) && names[i] == string(after) {
			i++
		}
		names = names[i:]
	}
	limit := maxResults
	if limit == 0 {
		limit = maxListResults
	}
	if len(names) <= limit {
		return names, "", nil
	}
	page := names[:limit]
	if maxResults == 0 {
		return page, "", nil
	}
	return page, base64.StdEncoding.EncodeToString([]byte(page[len(page)-1])), nil
}

// ListQueues returns queue URLs in lexicographic order of queue name.
func (s *MemoryStore) ListQueues(ctx context.Context, maxResults int, nextToken, queueNamePrefix string) ([]string, string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		if strings.HasPrefix(name, queueNamePrefix) {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()
	sort.Strings(names)

	page, token, err := paginate(names, maxResults, nextToken)
	if err != nil {
		return nil, "", err
	}
	return s.urls(page), token, nil
}

// urls maps names to queue URLs, skipping queues deleted in the meantime.
func (s *MemoryStore) urls(names []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(names))
	for _, name := range names {
		if q, ok := s.queues[name]; ok {
			urls = append(urls, q.url)
		}
	}
	return urls
}

// GetQueueAttributes returns the requested attributes, or all of them when
// names is empty or contains "All".
func (s *MemoryStore) GetQueueAttributes(ctx context.Context, name string, attributeNames []string) (map[string]string, error) {
	all := len(attributeNames) == 0
	for _, n := range attributeNames {
		if n == "All" {
			all = true
			continue
		}
		if computedAttributes[n] {
			continue
		}
		if _, ok := intAttributes[n]; ok {
			continue
		}
		switch n {
		case attrFifoQueue, attrContentBasedDeduplication, attrDeduplicationScope, attrFifoThroughputLimit,
			attrRedrivePolicy, attrRedriveAllowPolicy, attrPolicy, attrKmsMasterKeyID, attrSqsManagedSseEnabled:
			continue
		}
		return nil, invalidAttributeName(n)
	}

	q, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return nil, ErrQueueDoesNotExist
	}

	available, inFlight, delayed := q.counts(s.clock.Now())
	values := make(map[string]string, len(q.attrs)+len(computedAttributes))
	for k, v := range q.attrs {
		values[k] = v
	}
	values[attrQueueArn] = q.arn
	values[attrCreatedTimestamp] = strconv.FormatInt(q.createdAt.Unix(), 10)
	values[attrLastModifiedTimestamp] = strconv.FormatInt(q.modifiedAt.Unix(), 10)
	values[attrApproximateNumberOfMessages] = strconv.Itoa(available)
	values[attrApproximateNumberOfMessagesNotVisible] = strconv.Itoa(inFlight)
	values[attrApproximateNumberOfMessagesDelayed] = strconv.Itoa(delayed)

	if all {
		return values, nil
	}
	out := make(map[string]string, len(attributeNames))
	for _, n := range attributeNames {
		if v, ok := values[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

// SetQueueAttributes merges attributes into the queue with the same
// validation as CreateQueue. FifoQueue cannot change and an empty value
// removes a clearable attribute.
func (s *MemoryStore) SetQueueAttributes(ctx context.Context, name string, attributes map[string]string) error {
	if len(attributes) == 0 {
		return missingParameter("Attributes")
	}
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	requested, err := normalizeAttributes(attributes, q.fifo)
	if err != nil {
		return err
	}
	if v, ok := requested[attrFifoQueue]; ok && v != strconv.FormatBool(q.fifo) {
		return invalidParameter("Invalid value for the parameter FifoQueue. Reason: Modifying queue type is not supported.")
	}
	if err := s.checkRedriveTarget(name, q.fifo, requested); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return ErrQueueDoesNotExist
	}
	merged := make(map[string]string, len(q.attrs)+len(requested))
	for k, v := range q.attrs {
		merged[k] = v
	}
	for k, v := range requested {
		if k == attrFifoQueue && !q.fifo {
			continue
		}
		if v == "" && clearableAttributes[k] {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	if err := checkThroughputLimit(merged); err != nil {
		return err
	}
	q.attrs = merged
	q.cfg = parseConfig(merged)
	q.modifiedAt = s.clock.Now()

	logging.WithFields(logging.Fields{
		"event": "set_queue_attributes",
		"queue": name,
	}).Debug("queue attributes updated")
	return nil
}

// PurgeQueue deletes every message of the queue. A second purge within the
// cooldown fails with ErrPurgeQueueInProgress.
func (s *MemoryStore) PurgeQueue(ctx context.Context, name string) error {
	q, err := s.lookup(name)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleted {
		return ErrQueueDoesNotExist
	}
	now := s.clock.Now()
	if !q.lastPurge.IsZero() && now.Sub(q.lastPurge) < s.opts.PurgeCooldown {
		return ErrPurgeQueueInProgress
	}
	q.lastPurge = now
	q.purgeEpoch++
	q.clear()
	q.wake()

	metrics.QueuePurges.Inc()
	logging.WithFields(logging.Fields{
		"event": "purge_queue",
		"queue": name,
	}).Info("queue purged")
	return nil
}

// ListQueueTags returns a copy of the queue's tags.
func (s *MemoryStore) ListQueueTags(ctx context.Context, queueName string) (map[string]string, error) {
	q, err := s.lookup(queueName)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	tags := make(map[string]string, len(q.tags))
	for k, v := range q.tags {
		tags[k] = v
	}
	return tags, nil
}

// TagQueue merges tags into the queue's tags.
func (s *MemoryStore) TagQueue(ctx context.Context, queueName string, tags map[string]string) error {
	if len(tags) == 0 {
		return missingParameter("Tags")
	}
	q, err := s.lookup(queueName)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, v := range tags {
		q.tags[k] = v
	}
	return nil
}

// UntagQueue removes the given tag keys; unknown keys are ignored.
func (s *MemoryStore) UntagQueue(ctx context.Context, queueName string, tagKeys []string) error {
	if len(tagKeys) == 0 {
		return missingParameter("TagKeys")
	}
	q, err := s.lookup(queueName)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, k := range tagKeys {
		delete(q.tags, k)
	}
	return nil
}

// ListDeadLetterSourceQueues returns the URLs of queues whose RedrivePolicy
// targets queueName.
func (s *MemoryStore) ListDeadLetterSourceQueues(ctx context.Context, queueName string, maxResults int, nextToken string) ([]string, string, error) {
	if _, err := s.lookup(queueName); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	candidates := make([]*queue, 0, len(s.queues))
	for _, q := range s.queues {
		candidates = append(candidates, q)
	}
	s.mu.RUnlock()

	var names []string
	for _, q := range candidates {
		q.mu.Lock()
		if !q.deleted && q.redriveTarget() == queueName {
			names = append(names, q.name)
		}
		q.mu.Unlock()
	}
	sort.Strings(names)

	page, token, err := paginate(names, maxResults, nextToken)
	if err != nil {
		return nil, "", err
	}
	return s.urls(page), token, nil
}
