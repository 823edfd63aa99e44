package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const maxFifoIDLength = 128

func formatSequenceNumber(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

// isValidSqsChars checks if a string contains only valid SQS characters.
// This is used for parameters like MessageDeduplicationId and MessageGroupId.
// Valid characters are alphanumeric and: !"#$%&'()*+,-./:;<=>?@[\]^_`{|}~
func isValidSqsChars(s string) bool {
	for _, r := range s {
		isAlphanumeric := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		isPunctuation := strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r)
		if !isAlphanumeric && !isPunctuation {
			return false
		}
	}
	return true
}

func validateFifoID(param, id string) error {
	if id == "" || len(id) > maxFifoIDLength {
		return invalidParameter("%s can be up to 128 characters long.", param)
	}
	if !isValidSqsChars(id) {
		return invalidParameter("%s can only contain alphanumeric characters and punctuation.", param)
	}
	return nil
}

// contentDedupID derives the deduplication ID from the message body.
func contentDedupID(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// dedupKey scopes a deduplication ID to its message group unless the queue
// deduplicates across the whole queue. Callers hold q.mu.
func (q *queue) dedupKey(groupID, dedupID string) string {
	if q.cfg.queueScopedDedup {
		return dedupID
	}
	return groupID + "\x00" + dedupID
}

// findDuplicate returns the entry recorded for key if it is still inside the
// window. Expired entries are pruned from the front of the insertion order.
// Callers hold q.mu.
func (q *queue) findDuplicate(key string, now time.Time) *dedupEntry {
	for e := q.dedupOrder.Front(); e != nil; e = q.dedupOrder.Front() {
		entry := e.Value.(*dedupEntry)
		if entry.expiresAt.After(now) {
			break
		}
		q.dedupOrder.Remove(e)
		delete(q.dedup, entry.key)
	}
	if e, ok := q.dedup[key]; ok {
		return e.Value.(*dedupEntry)
	}
	return nil
}

// recordSend remembers an accepted send for the dedup window. Callers hold q.mu.
func (q *queue) recordSend(key string, m *message, window time.Duration, now time.Time) {
	entry := &dedupEntry{
		key:            key,
		messageID:      m.id,
		sequenceNumber: m.sequenceNumber,
		expiresAt:      now.Add(window),
	}
	q.dedup[key] = q.dedupOrder.PushBack(entry)
}

// lockedGroups returns the FIFO groups that currently have a message in
// flight; none of their messages may be handed to another receiver.
// Callers hold q.mu.
func (q *queue) lockedGroups(now time.Time) map[string]bool {
	groups := make(map[string]bool)
	for e := q.messages.Front(); e != nil; e = e.Next() {
		m := e.Value.(*message)
		if m.inFlight(now) {
			groups[m.groupID] = true
		}
	}
	return groups
}
