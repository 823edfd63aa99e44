package store

import (
	"context"

	"github.com/tabeth/memq/models"
)

// Store is the interface for the queue engine.
// It defines all the data operations required by the SQS-compatible API.
// Queue-scoped methods take the queue name; the transport extracts it from
// the queue URL.
type Store interface {
	// Queue Management
	CreateQueue(ctx context.Context, name string, attributes map[string]string, tags map[string]string) (string, error)
	DeleteQueue(ctx context.Context, name string) error
	ListQueues(ctx context.Context, maxResults int, nextToken, queueNamePrefix string) ([]string, string, error)
	GetQueueAttributes(ctx context.Context, name string, attributeNames []string) (map[string]string, error)
	SetQueueAttributes(ctx context.Context, name string, attributes map[string]string) error
	GetQueueURL(ctx context.Context, name string) (string, error)
	PurgeQueue(ctx context.Context, name string) error

	// Message Management
	SendMessage(ctx context.Context, queueName string, message *models.SendMessageRequest) (*models.SendMessageResponse, error)
	SendMessageBatch(ctx context.Context, queueName string, req *models.SendMessageBatchRequest) (*models.SendMessageBatchResponse, error)
	ReceiveMessage(ctx context.Context, queueName string, req *models.ReceiveMessageRequest) (*models.ReceiveMessageResponse, error)
	DeleteMessage(ctx context.Context, queueName string, receiptHandle string) error
	DeleteMessageBatch(ctx context.Context, queueName string, req *models.DeleteMessageBatchRequest) (*models.DeleteMessageBatchResponse, error)
	ChangeMessageVisibility(ctx context.Context, queueName string, receiptHandle string, visibilityTimeout int) error
	ChangeMessageVisibilityBatch(ctx context.Context, queueName string, req *models.ChangeMessageVisibilityBatchRequest) (*models.ChangeMessageVisibilityBatchResponse, error)

	// Tagging
	ListQueueTags(ctx context.Context, queueName string) (map[string]string, error)
	TagQueue(ctx context.Context, queueName string, tags map[string]string) error
	UntagQueue(ctx context.Context, queueName string, tagKeys []string) error

	// Dead-Letter Queues
	ListDeadLetterSourceQueues(ctx context.Context, queueName string, maxResults int, nextToken string) ([]string, string, error)

	// Message Move Tasks
	StartMessageMoveTask(ctx context.Context, sourceArn, destinationArn string, maxPerSecond int) (string, error)
	CancelMessageMoveTask(ctx context.Context, taskHandle string) (int64, error)
	ListMessageMoveTasks(ctx context.Context, sourceArn string, maxResults int) ([]models.ListMessageMoveTasksResultEntry, error)
}

// Identity is the caller context used to format queue URLs and ARNs.
// The engine treats the formatted strings as display values only.
type Identity struct {
	Scheme    string
	Host      string
	AccountID string
	Region    string
}

type identityKey struct{}

// WithIdentity attaches the caller identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
