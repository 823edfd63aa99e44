// Package models contains the data structures used throughout the application.
// These structures define the shape of API requests and responses exchanged
// between the HTTP layer and the queue engine. Field names follow the AWS SQS
// JSON protocol so that standard SDK clients can talk to the service.
package models

// Ptr returns a pointer to v. It is handy for the optional numeric fields
// of the request types.
func Ptr[T any](v T) *T {
	return &v
}

// CreateQueueRequest maps to the input of the SQS CreateQueue action.
// It includes the queue name and any attributes (like VisibilityTimeout) or tags.
type CreateQueueRequest struct {
	// QueueName is the name of the queue to be created.
	QueueName string `json:"QueueName"`
	// Attributes is a map of attributes for the queue (e.g., "VisibilityTimeout", "FifoQueue").
	Attributes map[string]string `json:"Attributes"`
	// Tags is a map of key-value pairs to attach to the queue.
	Tags map[string]string `json:"tags"`
}

// CreateQueueResponse maps to the output of a successful SQS CreateQueue action.
type CreateQueueResponse struct {
	// QueueURL is the URL of the created (or already existing) queue.
	QueueURL string `json:"QueueUrl"`
}

// DeleteQueueRequest defines the parameters for the SQS DeleteQueue action.
type DeleteQueueRequest struct {
	QueueUrl string `json:"QueueUrl"`
}

// ListQueuesRequest defines the parameters for the SQS ListQueues action.
// It supports pagination (MaxResults, NextToken) and filtering by prefix.
type ListQueuesRequest struct {
	// MaxResults is the maximum number of results to return in a single call.
	MaxResults int `json:"MaxResults"`
	// NextToken is the token to retrieve the next page of results.
	NextToken string `json:"NextToken"`
	// QueueNamePrefix is an optional filter to list only queues starting with this prefix.
	QueueNamePrefix string `json:"QueueNamePrefix"`
}

// ListQueuesResponse defines the structure for the SQS ListQueues action's output.
type ListQueuesResponse struct {
	// QueueUrls is a list of URLs of the queues that match the request.
	QueueUrls []string `json:"QueueUrls"`
	// NextToken is the token to use for the next ListQueues request.
	NextToken string `json:"NextToken,omitempty"`
}

// GetQueueURLRequest defines the parameters for the SQS GetQueueUrl action.
type GetQueueURLRequest struct {
	// QueueName is the name of the queue.
	QueueName string `json:"QueueName"`
	// QueueOwnerAWSAccountId is accepted for compatibility and ignored.
	QueueOwnerAWSAccountId string `json:"QueueOwnerAWSAccountId,omitempty"`
}

// GetQueueURLResponse defines the structure for the SQS GetQueueUrl action's output.
type GetQueueURLResponse struct {
	QueueUrl string `json:"QueueUrl"`
}

// GetQueueAttributesRequest defines the parameters for the SQS GetQueueAttributes action.
type GetQueueAttributesRequest struct {
	// QueueUrl is the URL of the queue to retrieve attributes for.
	QueueUrl string `json:"QueueUrl"`
	// AttributeNames is a list of attributes to retrieve (e.g., "All", "VisibilityTimeout").
	AttributeNames []string `json:"AttributeNames"`
}

// GetQueueAttributesResponse defines the structure for the SQS GetQueueAttributes action's output.
type GetQueueAttributesResponse struct {
	Attributes map[string]string `json:"Attributes"`
}

// SetQueueAttributesRequest defines the parameters for the SQS SetQueueAttributes action.
type SetQueueAttributesRequest struct {
	QueueUrl   string            `json:"QueueUrl"`
	Attributes map[string]string `json:"Attributes"`
}

// PurgeQueueRequest defines the parameters for the SQS PurgeQueue action.
type PurgeQueueRequest struct {
	QueueUrl string `json:"QueueUrl"`
}

// MessageAttributeValue represents the value of a custom message attribute in SQS.
type MessageAttributeValue struct {
	// BinaryListValues is reserved by SQS and not implemented.
	BinaryListValues [][]byte `json:"BinaryListValues,omitempty"`
	// BinaryValue is a binary value.
	BinaryValue []byte `json:"BinaryValue,omitempty"`
	// DataType indicates the type of the attribute (e.g., "String", "Number", "Binary").
	// Custom type suffixes such as "Number.float" are allowed.
	DataType string `json:"DataType"`
	// StringListValues is reserved by SQS and not implemented.
	StringListValues []string `json:"StringListValues,omitempty"`
	// StringValue is a string value.
	StringValue *string `json:"StringValue,omitempty"`
}

// MessageSystemAttributeValue is similar to MessageAttributeValue but for system-level attributes.
// The only one SQS accepts on send is AWSTraceHeader.
type MessageSystemAttributeValue struct {
	BinaryListValues [][]byte `json:"BinaryListValues,omitempty"`
	BinaryValue      []byte   `json:"BinaryValue,omitempty"`
	DataType         string   `json:"DataType"`
	StringListValues []string `json:"StringListValues,omitempty"`
	StringValue      *string  `json:"StringValue,omitempty"`
}

// SendMessageRequest maps to the input of the SQS SendMessage action.
// It contains the message body, optional delay, and attributes for standard queues,
// as well as group and deduplication IDs for FIFO queues.
type SendMessageRequest struct {
	// DelaySeconds is the number of seconds to delay the message (0-900).
	// When nil the queue's DelaySeconds attribute applies.
	DelaySeconds *int32 `json:"DelaySeconds,omitempty"`
	// MessageAttributes is a map of custom attributes for the message.
	MessageAttributes map[string]MessageAttributeValue `json:"MessageAttributes,omitempty"`
	// MessageBody is the body of the message.
	MessageBody string `json:"MessageBody"`
	// MessageDeduplicationId is the token used for deduplication of sent messages (FIFO only).
	MessageDeduplicationId *string `json:"MessageDeduplicationId,omitempty"`
	// MessageGroupId is the tag that specifies the group the message belongs to (FIFO only).
	MessageGroupId *string `json:"MessageGroupId,omitempty"`
	// MessageSystemAttributes is a map of system attributes for the message.
	MessageSystemAttributes map[string]MessageSystemAttributeValue `json:"MessageSystemAttributes,omitempty"`
	// QueueUrl is the URL of the queue to send the message to.
	QueueUrl string `json:"QueueUrl"`
}

// SendMessageResponse maps to the output of a successful SQS SendMessage action.
// For FIFO queues, it also includes a sequence number.
type SendMessageResponse struct {
	MD5OfMessageAttributes       *string `json:"MD5OfMessageAttributes,omitempty"`
	MD5OfMessageBody             string  `json:"MD5OfMessageBody"`
	MD5OfMessageSystemAttributes *string `json:"MD5OfMessageSystemAttributes,omitempty"`
	MessageId                    string  `json:"MessageId"`
	// SequenceNumber is the sequence number for the message (FIFO only).
	SequenceNumber *string `json:"SequenceNumber,omitempty"`
}

// ReceiveMessageRequest maps to the input of the SQS ReceiveMessage action.
// Optional numeric fields are pointers so that "not specified" can be told
// apart from zero; the queue's attributes supply the defaults.
type ReceiveMessageRequest struct {
	// AttributeNames is the legacy name of MessageSystemAttributeNames.
	AttributeNames []string `json:"AttributeNames"`
	// MaxNumberOfMessages is the maximum number of messages to return (1-10, default 1).
	MaxNumberOfMessages *int `json:"MaxNumberOfMessages,omitempty"`
	// MessageAttributeNames is a list of message attributes to retrieve.
	MessageAttributeNames []string `json:"MessageAttributeNames"`
	// MessageSystemAttributeNames is a list of system attributes to retrieve.
	MessageSystemAttributeNames []string `json:"MessageSystemAttributeNames"`
	// QueueUrl is the URL of the queue to receive messages from.
	QueueUrl string `json:"QueueUrl"`
	// ReceiveRequestAttemptId is accepted for compatibility and ignored.
	ReceiveRequestAttemptId string `json:"ReceiveRequestAttemptId,omitempty"`
	// VisibilityTimeout overrides the queue's visibility timeout for the received messages.
	VisibilityTimeout *int `json:"VisibilityTimeout,omitempty"`
	// WaitTimeSeconds is the long polling duration (0-20).
	WaitTimeSeconds *int `json:"WaitTimeSeconds,omitempty"`
}

// ReceiveMessageResponse defines the structure for the SQS ReceiveMessage action's output.
type ReceiveMessageResponse struct {
	Messages []ResponseMessage `json:"Messages"`
}

// ResponseMessage represents a single message as returned to the client from a ReceiveMessage call.
// It includes a ReceiptHandle, which is a temporary token required to delete or modify the message.
type ResponseMessage struct {
	Attributes             map[string]string                `json:"Attributes,omitempty"`
	Body                   string                           `json:"Body"`
	MD5OfBody              string                           `json:"MD5OfBody"`
	MD5OfMessageAttributes *string                          `json:"MD5OfMessageAttributes,omitempty"`
	MessageAttributes      map[string]MessageAttributeValue `json:"MessageAttributes,omitempty"`
	MessageId              string                           `json:"MessageId"`
	ReceiptHandle          string                           `json:"ReceiptHandle"`
}

// DeleteMessageRequest defines the parameters for the SQS DeleteMessage action.
type DeleteMessageRequest struct {
	QueueUrl      string `json:"QueueUrl"`
	ReceiptHandle string `json:"ReceiptHandle"`
}

// ChangeMessageVisibilityRequest defines the parameters for the SQS ChangeMessageVisibility action.
type ChangeMessageVisibilityRequest struct {
	QueueUrl      string `json:"QueueUrl"`
	ReceiptHandle string `json:"ReceiptHandle"`
	// VisibilityTimeout is the new value for the message's visibility timeout (in seconds).
	// It is required; nil means the client left it out.
	VisibilityTimeout *int `json:"VisibilityTimeout"`
}

// ErrorResponse defines the standard AWS JSON error response format.
type ErrorResponse struct {
	// Type is the error code (e.g., "InvalidParameterValue").
	Type string `json:"__type"`
	// Message is the descriptive error message.
	Message string `json:"message"`
}

// --- Batch Operation Models ---

// SendMessageBatchRequest defines the parameters for the SQS SendMessageBatch action.
type SendMessageBatchRequest struct {
	QueueUrl string                         `json:"QueueUrl"`
	Entries  []SendMessageBatchRequestEntry `json:"Entries"`
}

// SendMessageBatchRequestEntry defines a single message within a batch send request.
// Each entry has a unique ID within the batch for correlating results.
type SendMessageBatchRequestEntry struct {
	Id                      string                                 `json:"Id"`
	MessageBody             string                                 `json:"MessageBody"`
	DelaySeconds            *int32                                 `json:"DelaySeconds,omitempty"`
	MessageAttributes       map[string]MessageAttributeValue       `json:"MessageAttributes,omitempty"`
	MessageSystemAttributes map[string]MessageSystemAttributeValue `json:"MessageSystemAttributes,omitempty"`
	MessageDeduplicationId  *string                                `json:"MessageDeduplicationId,omitempty"`
	MessageGroupId          *string                                `json:"MessageGroupId,omitempty"`
}

// SendMessageBatchResponse separates batch results into successful and failed entries.
type SendMessageBatchResponse struct {
	Successful []SendMessageBatchResultEntry `json:"Successful"`
	Failed     []BatchResultErrorEntry       `json:"Failed"`
}

// SendMessageBatchResultEntry mirrors SendMessageResponse but includes the original entry ID.
type SendMessageBatchResultEntry struct {
	Id                           string  `json:"Id"`
	MessageId                    string  `json:"MessageId"`
	MD5OfMessageBody             string  `json:"MD5OfMessageBody"`
	MD5OfMessageAttributes       *string `json:"MD5OfMessageAttributes,omitempty"`
	MD5OfMessageSystemAttributes *string `json:"MD5OfMessageSystemAttributes,omitempty"`
	SequenceNumber               *string `json:"SequenceNumber,omitempty"`
}

// BatchResultErrorEntry contains the details of a failed entry in a batch operation.
type BatchResultErrorEntry struct {
	Id      string `json:"Id"`
	Code    string `json:"Code"`
	Message string `json:"Message"`
	// SenderFault indicates whether the error was due to the sender's request.
	SenderFault bool `json:"SenderFault"`
}

// DeleteMessageBatchRequest defines the parameters for the SQS DeleteMessageBatch action.
type DeleteMessageBatchRequest struct {
	QueueUrl string                           `json:"QueueUrl"`
	Entries  []DeleteMessageBatchRequestEntry `json:"Entries"`
}

// DeleteMessageBatchRequestEntry defines a single message to be deleted in a batch.
type DeleteMessageBatchRequestEntry struct {
	Id            string `json:"Id"`
	ReceiptHandle string `json:"ReceiptHandle"`
}

// DeleteMessageBatchResponse defines the structure for the SQS DeleteMessageBatch action's output.
type DeleteMessageBatchResponse struct {
	Successful []DeleteMessageBatchResultEntry `json:"Successful"`
	Failed     []BatchResultErrorEntry         `json:"Failed"`
}

// DeleteMessageBatchResultEntry contains the ID of a successfully deleted message in a batch.
type DeleteMessageBatchResultEntry struct {
	Id string `json:"Id"`
}

// ChangeMessageVisibilityBatchRequest defines the parameters for the SQS ChangeMessageVisibilityBatch action.
type ChangeMessageVisibilityBatchRequest struct {
	QueueUrl string                                     `json:"QueueUrl"`
	Entries  []ChangeMessageVisibilityBatchRequestEntry `json:"Entries"`
}

// ChangeMessageVisibilityBatchRequestEntry defines a single entry in a ChangeMessageVisibilityBatch request.
type ChangeMessageVisibilityBatchRequestEntry struct {
	Id                string `json:"Id"`
	ReceiptHandle     string `json:"ReceiptHandle"`
	VisibilityTimeout *int   `json:"VisibilityTimeout"`
}

// ChangeMessageVisibilityBatchResponse defines the structure for the SQS ChangeMessageVisibilityBatch action's output.
type ChangeMessageVisibilityBatchResponse struct {
	Successful []ChangeMessageVisibilityBatchResultEntry `json:"Successful"`
	Failed     []BatchResultErrorEntry                   `json:"Failed"`
}

// ChangeMessageVisibilityBatchResultEntry contains the ID of a successfully changed message in a batch.
type ChangeMessageVisibilityBatchResultEntry struct {
	Id string `json:"Id"`
}

// --- Tagging ---

// ListQueueTagsRequest defines the parameters for the SQS ListQueueTags action.
type ListQueueTagsRequest struct {
	QueueUrl string `json:"QueueUrl"`
}

// ListQueueTagsResponse defines the structure for the SQS ListQueueTags action's output.
type ListQueueTagsResponse struct {
	Tags map[string]string `json:"Tags"`
}

// TagQueueRequest defines the parameters for the SQS TagQueue action.
type TagQueueRequest struct {
	QueueUrl string            `json:"QueueUrl"`
	Tags     map[string]string `json:"Tags"`
}

// UntagQueueRequest defines the parameters for the SQS UntagQueue action.
type UntagQueueRequest struct {
	QueueUrl string   `json:"QueueUrl"`
	TagKeys  []string `json:"TagKeys"`
}

// --- Dead-letter queues and message move tasks ---

// ListDeadLetterSourceQueuesRequest defines the parameters for the SQS ListDeadLetterSourceQueues action.
type ListDeadLetterSourceQueuesRequest struct {
	// QueueUrl is the URL of the dead-letter queue.
	QueueUrl   string `json:"QueueUrl"`
	MaxResults int    `json:"MaxResults"`
	NextToken  string `json:"NextToken"`
}

// ListDeadLetterSourceQueuesResponse defines the structure for the SQS ListDeadLetterSourceQueues action's output.
type ListDeadLetterSourceQueuesResponse struct {
	// QueueUrls is a list of URLs of the queues that use the specified queue as a dead-letter queue.
	QueueUrls []string `json:"queueUrls"`
	NextToken string   `json:"NextToken,omitempty"`
}

// StartMessageMoveTaskRequest defines the parameters for the SQS StartMessageMoveTask action.
type StartMessageMoveTaskRequest struct {
	// SourceArn is the ARN of the queue to move messages from.
	SourceArn string `json:"SourceArn"`
	// DestinationArn is the ARN of the queue to move messages to. When empty,
	// messages go back to the queue they were dead-lettered from.
	DestinationArn string `json:"DestinationArn,omitempty"`
	// MaxNumberOfMessagesPerSecond caps the move rate.
	MaxNumberOfMessagesPerSecond int `json:"MaxNumberOfMessagesPerSecond,omitempty"`
}

// StartMessageMoveTaskResponse defines the structure for the SQS StartMessageMoveTask action's output.
type StartMessageMoveTaskResponse struct {
	TaskHandle string `json:"TaskHandle"`
}

// CancelMessageMoveTaskRequest defines the parameters for the SQS CancelMessageMoveTask action.
type CancelMessageMoveTaskRequest struct {
	TaskHandle string `json:"TaskHandle"`
}

// CancelMessageMoveTaskResponse defines the structure for the SQS CancelMessageMoveTask action's output.
type CancelMessageMoveTaskResponse struct {
	ApproximateNumberOfMessagesMoved int64 `json:"ApproximateNumberOfMessagesMoved"`
}

// ListMessageMoveTasksRequest defines the parameters for the SQS ListMessageMoveTasks action.
type ListMessageMoveTasksRequest struct {
	SourceArn  string `json:"SourceArn"`
	MaxResults int    `json:"MaxResults,omitempty"`
}

// ListMessageMoveTasksResultEntry represents a single task in the list response.
type ListMessageMoveTasksResultEntry struct {
	ApproximateNumberOfMessagesMoved  int64  `json:"ApproximateNumberOfMessagesMoved"`
	ApproximateNumberOfMessagesToMove int64  `json:"ApproximateNumberOfMessagesToMove"`
	DestinationArn                    string `json:"DestinationArn,omitempty"`
	FailureReason                     string `json:"FailureReason,omitempty"`
	MaxNumberOfMessagesPerSecond      int    `json:"MaxNumberOfMessagesPerSecond,omitempty"`
	SourceArn                         string `json:"SourceArn"`
	// StartedTimestamp is the start time in epoch milliseconds.
	StartedTimestamp int64 `json:"StartedTimestamp"`
	// Status is one of RUNNING, COMPLETED, CANCELLING, CANCELLED, FAILED.
	Status string `json:"Status"`
	// TaskHandle is only set while the task is running.
	TaskHandle string `json:"TaskHandle,omitempty"`
}

// ListMessageMoveTasksResponse defines the structure for the SQS ListMessageMoveTasks action's output.
type ListMessageMoveTasksResponse struct {
	Results []ListMessageMoveTasksResultEntry `json:"Results"`
}

// --- Identity tokens ---

// CreateTokenRequest asks for a bearer token bound to an account ID.
type CreateTokenRequest struct {
	AccountId string `json:"AccountId"`
}

// CreateTokenResponse carries the signed bearer token.
type CreateTokenResponse struct {
	Token string `json:"Token"`
}
