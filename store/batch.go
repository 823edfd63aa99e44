package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/tabeth/memq/models"
)

var batchEntryIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,80}$`)

// validateBatchIDs applies the batch-level checks shared by every batch
// action, in order: empty, too many entries, duplicate IDs, ID format.
func (s *MemoryStore) validateBatchIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrEmptyBatchRequest
	}
	if len(ids) > s.opts.MaxBatchEntries {
		return newError(KindLimitExceeded, ErrTooManyEntriesInBatch.Code, "Maximum number of entries per request are %d. You have sent %d.", s.opts.MaxBatchEntries, len(ids))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return newError(KindInvalidArgument, ErrBatchEntryIdsNotDistinct.Code, "Id %s repeated.", id)
		}
		seen[id] = true
	}
	for _, id := range ids {
		if !batchEntryIDRegex.MatchString(id) {
			return newError(KindInvalidArgument, ErrInvalidBatchEntryId.Code, "A batch entry id can only contain alphanumeric characters, hyphens and underscores. It can be at most 80 letters long.")
		}
	}
	return nil
}

// entryFailure reports err as the outcome of one batch entry.
func entryFailure(id string, err error) models.BatchResultErrorEntry {
	var e *Error
	if errors.As(err, &e) {
		return models.BatchResultErrorEntry{Id: id, Code: e.Code, Message: e.Message, SenderFault: e.Kind != KindInternal}
	}
	return models.BatchResultErrorEntry{Id: id, Code: "InternalError", Message: err.Error(), SenderFault: false}
}

// SendMessageBatch sends each entry independently and reports per-entry outcomes.
func (s *MemoryStore) SendMessageBatch(ctx context.Context, queueName string, req *models.SendMessageBatchRequest) (*models.SendMessageBatchResponse, error) {
	q, err := s.lookup(queueName)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(req.Entries))
	total := 0
	for i, e := range req.Entries {
		ids[i] = e.Id
		total += messageSize(e.MessageBody, e.MessageAttributes)
	}
	if err := s.validateBatchIDs(ids); err != nil {
		return nil, err
	}
	if total > s.opts.MaxBatchBytes {
		return nil, newError(KindLimitExceeded, ErrBatchRequestTooLong.Code, "Batch requests cannot be longer than %d bytes. You have sent %d bytes.", s.opts.MaxBatchBytes, total)
	}

	resp := &models.SendMessageBatchResponse{
		Successful: []models.SendMessageBatchResultEntry{},
		Failed:     []models.BatchResultErrorEntry{},
	}
	for _, e := range req.Entries {
		out, err := s.send(ctx, q, &models.SendMessageRequest{
			QueueUrl:                req.QueueUrl,
			MessageBody:             e.MessageBody,
			DelaySeconds:            e.DelaySeconds,
			MessageAttributes:       e.MessageAttributes,
			MessageSystemAttributes: e.MessageSystemAttributes,
			MessageDeduplicationId:  e.MessageDeduplicationId,
			MessageGroupId:          e.MessageGroupId,
		})
		if err != nil {
			resp.Failed = append(resp.Failed, entryFailure(e.Id, err))
			continue
		}
		resp.Successful = append(resp.Successful, models.SendMessageBatchResultEntry{
			Id:                           e.Id,
			MessageId:                    out.MessageId,
			MD5OfMessageBody:             out.MD5OfMessageBody,
			MD5OfMessageAttributes:       out.MD5OfMessageAttributes,
			MD5OfMessageSystemAttributes: out.MD5OfMessageSystemAttributes,
			SequenceNumber:               out.SequenceNumber,
		})
	}
	return resp, nil
}

// DeleteMessageBatch deletes each entry independently; a stale handle only
// fails its own entry.
func (s *MemoryStore) DeleteMessageBatch(ctx context.Context, queueName string, req *models.DeleteMessageBatchRequest) (*models.DeleteMessageBatchResponse, error) {
	q, err := s.lookup(queueName)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(req.Entries))
	for i, e := range req.Entries {
		ids[i] = e.Id
	}
	if err := s.validateBatchIDs(ids); err != nil {
		return nil, err
	}

	resp := &models.DeleteMessageBatchResponse{
		Successful: []models.DeleteMessageBatchResultEntry{},
		Failed:     []models.BatchResultErrorEntry{},
	}
	for _, e := range req.Entries {
		if err := s.deleteMessage(q, e.ReceiptHandle); err != nil {
			resp.Failed = append(resp.Failed, entryFailure(e.Id, err))
			continue
		}
		resp.Successful = append(resp.Successful, models.DeleteMessageBatchResultEntry{Id: e.Id})
	}
	return resp, nil
}

// ChangeMessageVisibilityBatch changes each entry independently.
func (s *MemoryStore) ChangeMessageVisibilityBatch(ctx context.Context, queueName string, req *models.ChangeMessageVisibilityBatchRequest) (*models.ChangeMessageVisibilityBatchResponse, error) {
	q, err := s.lookup(queueName)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(req.Entries))
	for i, e := range req.Entries {
		ids[i] = e.Id
	}
	if err := s.validateBatchIDs(ids); err != nil {
		return nil, err
	}

	resp := &models.ChangeMessageVisibilityBatchResponse{
		Successful: []models.ChangeMessageVisibilityBatchResultEntry{},
		Failed:     []models.BatchResultErrorEntry{},
	}
	for _, e := range req.Entries {
		if e.VisibilityTimeout == nil {
			resp.Failed = append(resp.Failed, entryFailure(e.Id, missingParameter("VisibilityTimeout")))
			continue
		}
		if err := s.changeVisibility(q, e.ReceiptHandle, *e.VisibilityTimeout); err != nil {
			resp.Failed = append(resp.Failed, entryFailure(e.Id, err))
			continue
		}
		resp.Successful = append(resp.Successful, models.ChangeMessageVisibilityBatchResultEntry{Id: e.Id})
	}
	return resp, nil
}
