package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/memq/models"
	"github.com/tabeth/memq/store"
)

type handlerTestCase struct {
	name               string
	action             string
	inputBody          string
	mockSetup          func(*MockStore)
	expectedStatusCode int
	expectedBody       string
}

func serve(t *testing.T, app *App, action, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	app.RegisterSQSHandlers(r)

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Host = "localhost:8080"
	req.Header.Set("X-Amz-Target", action)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func runHandlerTests(t *testing.T, tests []handlerTestCase) {
	t.Helper()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockStore := new(MockStore)
			if tc.mockSetup != nil {
				tc.mockSetup(mockStore)
			}

			rr := serve(t, &App{Store: mockStore}, tc.action, tc.inputBody)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
			mockStore.AssertExpectations(t)
		})
	}
}

func TestRootSQSHandler_Dispatch(t *testing.T) {
	runHandlerTests(t, []handlerTestCase{
		{
			name:               "Missing Target",
			action:             "",
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"InvalidAction","message":"Invalid X-Amz-Target header"}`,
		},
		{
			name:               "Wrong Service Prefix",
			action:             "AmazonSNS.Publish",
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"InvalidAction","message":"Invalid X-Amz-Target header"}`,
		},
		{
			name:               "Unsupported Action",
			action:             "AmazonSQS.AddPermission",
			inputBody:          `{}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"UnsupportedOperation","message":"Unsupported operation: AddPermission"}`,
		},
		{
			name:               "Malformed Body",
			action:             "AmazonSQS.SendMessage",
			inputBody:          `{"QueueUrl":`,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"InvalidRequest","message":"Invalid request body"}`,
		},
	})
}

func TestQueueHandlers(t *testing.T) {
	runHandlerTests(t, []handlerTestCase{
		{
			name:      "CreateQueue - Success",
			action:    "AmazonSQS.CreateQueue",
			inputBody: `{"QueueName":"orders","Attributes":{"VisibilityTimeout":"60"},"tags":{"team":"core"}}`,
			mockSetup: func(ms *MockStore) {
				ms.On("CreateQueue", mock.Anything, "orders", map[string]string{"VisibilityTimeout": "60"}, map[string]string{"team": "core"}).
					Return("http://localhost:8080/000000000000/orders", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"QueueUrl":"http://localhost:8080/000000000000/orders"}`,
		},
		{
			name:               "CreateQueue - Missing Name",
			action:             "AmazonSQS.CreateQueue",
			inputBody:          `{}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"MissingParameter","message":"The request must contain the parameter QueueName."}`,
		},
		{
			name:      "CreateQueue - Name Exists",
			action:    "AmazonSQS.CreateQueue",
			inputBody: `{"QueueName":"orders"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("CreateQueue", mock.Anything, "orders", mock.Anything, mock.Anything).Return("", store.ErrQueueNameExists)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"QueueNameExists","message":"A queue already exists with the same name and a different value for attribute(s)."}`,
		},
		{
			name:      "DeleteQueue - Success",
			action:    "AmazonSQS.DeleteQueue",
			inputBody: `{"QueueUrl":"http://localhost:8080/000000000000/orders"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("DeleteQueue", mock.Anything, "orders").Return(nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{}`,
		},
		{
			name:               "DeleteQueue - Missing QueueUrl",
			action:             "AmazonSQS.DeleteQueue",
			inputBody:          `{}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"MissingParameter","message":"The request must contain the parameter QueueUrl."}`,
		},
		{
			name:      "DeleteQueue - Queue Does Not Exist",
			action:    "AmazonSQS.DeleteQueue",
			inputBody: `{"QueueUrl":"http://localhost:8080/000000000000/missing"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("DeleteQueue", mock.Anything, "missing").Return(store.ErrQueueDoesNotExist)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"QueueDoesNotExist","message":"The specified queue does not exist."}`,
		},
		{
			name:      "GetQueueUrl - Success",
			action:    "AmazonSQS.GetQueueUrl",
			inputBody: `{"QueueName":"orders"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("GetQueueURL", mock.Anything, "orders").Return("http://localhost:8080/000000000000/orders", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"QueueUrl":"http://localhost:8080/000000000000/orders"}`,
		},
		{
			name:      "ListQueues - Empty Body",
			action:    "AmazonSQS.ListQueues",
			inputBody: ``,
			mockSetup: func(ms *MockStore) {
				ms.On("ListQueues", mock.Anything, 0, "", "").Return(nil, "", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"QueueUrls":[]}`,
		},
		{
			name:      "ListQueues - Paginated",
			action:    "AmazonSQS.ListQueues",
			inputBody: `{"MaxResults":1,"QueueNamePrefix":"or"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ListQueues", mock.Anything, 1, "", "or").Return([]string{"http://localhost:8080/000000000000/orders"}, "token", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"QueueUrls":["http://localhost:8080/000000000000/orders"],"NextToken":"token"}`,
		},
		{
			name:      "GetQueueAttributes - Success",
			action:    "AmazonSQS.GetQueueAttributes",
			inputBody: `{"QueueUrl":"http://localhost:8080/000000000000/orders","AttributeNames":["VisibilityTimeout"]}`,
			mockSetup: func(ms *MockStore) {
				ms.On("GetQueueAttributes", mock.Anything, "orders", []string{"VisibilityTimeout"}).Return(map[string]string{"VisibilityTimeout": "30"}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"Attributes":{"VisibilityTimeout":"30"}}`,
		},
		{
			name:      "SetQueueAttributes - Invalid Attribute",
			action:    "AmazonSQS.SetQueueAttributes",
			inputBody: `{"QueueUrl":"http://localhost:8080/000000000000/orders","Attributes":{"Color":"blue"}}`,
			mockSetup: func(ms *MockStore) {
				ms.On("SetQueueAttributes", mock.Anything, "orders", map[string]string{"Color": "blue"}).
					Return(&store.Error{Kind: store.KindInvalidArgument, Code: "InvalidAttributeName", Message: "Unknown Attribute Color."})
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"InvalidAttributeName","message":"Unknown Attribute Color."}`,
		},
		{
			name:      "PurgeQueue - In Progress",
			action:    "AmazonSQS.PurgeQueue",
			inputBody: `{"QueueUrl":"http://localhost:8080/000000000000/orders"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("PurgeQueue", mock.Anything, "orders").Return(store.ErrPurgeQueueInProgress)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"PurgeQueueInProgress","message":"Only one PurgeQueue operation on a queue is allowed every 60 seconds."}`,
		},
	})
}

func TestTaggingHandlers(t *testing.T) {
	runHandlerTests(t, []handlerTestCase{
		{
			name:      "ListQueueTags - Success",
			action:    "AmazonSQS.ListQueueTags",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/my-queue"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ListQueueTags", mock.Anything, "my-queue").Return(map[string]string{"tag1": "val1"}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"Tags":{"tag1":"val1"}}`,
		},
		{
			name:      "TagQueue - Success",
			action:    "AmazonSQS.TagQueue",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/my-queue","Tags":{"tag1":"val1"}}`,
			mockSetup: func(ms *MockStore) {
				ms.On("TagQueue", mock.Anything, "my-queue", map[string]string{"tag1": "val1"}).Return(nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{}`,
		},
		{
			name:      "UntagQueue - Success",
			action:    "AmazonSQS.UntagQueue",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/my-queue","TagKeys":["tag1"]}`,
			mockSetup: func(ms *MockStore) {
				ms.On("UntagQueue", mock.Anything, "my-queue", []string{"tag1"}).Return(nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{}`,
		},
	})
}

func TestMessageHandlers(t *testing.T) {
	runHandlerTests(t, []handlerTestCase{
		{
			name:      "SendMessage - Success",
			action:    "AmazonSQS.SendMessage",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","MessageBody":"hello","DelaySeconds":5}`,
			mockSetup: func(ms *MockStore) {
				ms.On("SendMessage", mock.Anything, "q", mock.MatchedBy(func(req *models.SendMessageRequest) bool {
					return req.MessageBody == "hello" && req.DelaySeconds != nil && *req.DelaySeconds == 5
				})).Return(&models.SendMessageResponse{MessageId: "m-1", MD5OfMessageBody: "5d41402abc4b2a76b9719d911017c592"}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"MessageId":"m-1","MD5OfMessageBody":"5d41402abc4b2a76b9719d911017c592"}`,
		},
		{
			name:      "SendMessage - Invalid Contents",
			action:    "AmazonSQS.SendMessage",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","MessageBody":"x"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("SendMessage", mock.Anything, "q", mock.Anything).Return(nil, store.ErrInvalidMessageContents)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"InvalidMessageContents","message":"The message contains characters outside the allowed set."}`,
		},
		{
			name:      "SendMessage - Internal Failure",
			action:    "AmazonSQS.SendMessage",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","MessageBody":"x"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("SendMessage", mock.Anything, "q", mock.Anything).Return(nil, errors.New("disk on fire"))
			},
			expectedStatusCode: http.StatusInternalServerError,
			expectedBody:       `{"__type":"InternalFailure","message":"The request processing has failed because of an unknown error, exception or failure."}`,
		},
		{
			name:      "ReceiveMessage - Empty",
			action:    "AmazonSQS.ReceiveMessage",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","MaxNumberOfMessages":10,"WaitTimeSeconds":0}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ReceiveMessage", mock.Anything, "q", mock.MatchedBy(func(req *models.ReceiveMessageRequest) bool {
					return *req.MaxNumberOfMessages == 10 && *req.WaitTimeSeconds == 0 && req.VisibilityTimeout == nil
				})).Return(&models.ReceiveMessageResponse{}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"Messages":[]}`,
		},
		{
			name:      "ReceiveMessage - One Message",
			action:    "AmazonSQS.ReceiveMessage",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ReceiveMessage", mock.Anything, "q", mock.Anything).Return(&models.ReceiveMessageResponse{
					Messages: []models.ResponseMessage{{MessageId: "m-1", ReceiptHandle: "h-1", Body: "hi", MD5OfBody: "49f68a5c8493ec2c0bf489821c21fc3b"}},
				}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"Messages":[{"MessageId":"m-1","ReceiptHandle":"h-1","Body":"hi","MD5OfBody":"49f68a5c8493ec2c0bf489821c21fc3b"}]}`,
		},
		{
			name:      "DeleteMessage - Invalid Handle",
			action:    "AmazonSQS.DeleteMessage",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","ReceiptHandle":"stale"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("DeleteMessage", mock.Anything, "q", "stale").Return(store.ErrInvalidReceiptHandle)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"ReceiptHandleIsInvalid","message":"The specified receipt handle isn't valid."}`,
		},
		{
			name:      "ChangeMessageVisibility - Success",
			action:    "AmazonSQS.ChangeMessageVisibility",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","ReceiptHandle":"h-1","VisibilityTimeout":0}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ChangeMessageVisibility", mock.Anything, "q", "h-1", 0).Return(nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{}`,
		},
		{
			name:      "ChangeMessageVisibility - Missing Timeout",
			action:    "AmazonSQS.ChangeMessageVisibility",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","ReceiptHandle":"h-1"}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"MissingParameter","message":"The request must contain the parameter VisibilityTimeout."}`,
		},
	})
}

func TestBatchHandlers(t *testing.T) {
	runHandlerTests(t, []handlerTestCase{
		{
			name:      "SendMessageBatch - Partial Failure",
			action:    "AmazonSQS.SendMessageBatch",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","Entries":[{"Id":"a","MessageBody":"x"},{"Id":"b","MessageBody":""}]}`,
			mockSetup: func(ms *MockStore) {
				ms.On("SendMessageBatch", mock.Anything, "q", mock.MatchedBy(func(req *models.SendMessageBatchRequest) bool {
					return len(req.Entries) == 2 && req.Entries[0].Id == "a"
				})).Return(&models.SendMessageBatchResponse{
					Successful: []models.SendMessageBatchResultEntry{{Id: "a", MessageId: "m-1", MD5OfMessageBody: "9dd4e461268c8034f5c8564e155c67a6"}},
					Failed:     []models.BatchResultErrorEntry{{Id: "b", Code: "MissingParameter", Message: "The request must contain the parameter MessageBody.", SenderFault: true}},
				}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody: `{"Successful":[{"Id":"a","MessageId":"m-1","MD5OfMessageBody":"9dd4e461268c8034f5c8564e155c67a6"}],
				"Failed":[{"Id":"b","Code":"MissingParameter","Message":"The request must contain the parameter MessageBody.","SenderFault":true}]}`,
		},
		{
			name:      "DeleteMessageBatch - Empty",
			action:    "AmazonSQS.DeleteMessageBatch",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","Entries":[]}`,
			mockSetup: func(ms *MockStore) {
				ms.On("DeleteMessageBatch", mock.Anything, "q", mock.Anything).Return(nil, store.ErrEmptyBatchRequest)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"EmptyBatchRequest","message":"The batch request doesn't contain any entries."}`,
		},
		{
			name:      "ChangeMessageVisibilityBatch - Too Many Entries",
			action:    "AmazonSQS.ChangeMessageVisibilityBatch",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/q","Entries":[{"Id":"a","ReceiptHandle":"h","VisibilityTimeout":1}]}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ChangeMessageVisibilityBatch", mock.Anything, "q", mock.Anything).Return(nil, store.ErrTooManyEntriesInBatch)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"TooManyEntriesInBatchRequest","message":"The batch request contains more entries than permissible."}`,
		},
	})
}

func TestDeadLetterHandlers(t *testing.T) {
	runHandlerTests(t, []handlerTestCase{
		{
			name:      "ListDeadLetterSourceQueues - Success",
			action:    "AmazonSQS.ListDeadLetterSourceQueues",
			inputBody: `{"QueueUrl":"http://localhost/000000000000/dlq"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ListDeadLetterSourceQueues", mock.Anything, "dlq", 0, "").Return([]string{"http://localhost/000000000000/src"}, "", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"queueUrls":["http://localhost/000000000000/src"]}`,
		},
		{
			name:      "StartMessageMoveTask - Success",
			action:    "AmazonSQS.StartMessageMoveTask",
			inputBody: `{"SourceArn":"arn:aws:sqs:us-east-1:000000000000:dlq","MaxNumberOfMessagesPerSecond":10}`,
			mockSetup: func(ms *MockStore) {
				ms.On("StartMessageMoveTask", mock.Anything, "arn:aws:sqs:us-east-1:000000000000:dlq", "", 10).Return("task-1", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"TaskHandle":"task-1"}`,
		},
		{
			name:      "StartMessageMoveTask - Already Running",
			action:    "AmazonSQS.StartMessageMoveTask",
			inputBody: `{"SourceArn":"arn:aws:sqs:us-east-1:000000000000:dlq"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("StartMessageMoveTask", mock.Anything, "arn:aws:sqs:us-east-1:000000000000:dlq", "", 0).Return("", store.ErrMoveTaskAlreadyRunning)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"MessageMoveTaskAlreadyRunning","message":"A message move task is already running on the source queue."}`,
		},
		{
			name:      "CancelMessageMoveTask - Success",
			action:    "AmazonSQS.CancelMessageMoveTask",
			inputBody: `{"TaskHandle":"task-1"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("CancelMessageMoveTask", mock.Anything, "task-1").Return(int64(7), nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody:       `{"ApproximateNumberOfMessagesMoved":7}`,
		},
		{
			name:      "CancelMessageMoveTask - Unknown",
			action:    "AmazonSQS.CancelMessageMoveTask",
			inputBody: `{"TaskHandle":"nope"}`,
			mockSetup: func(ms *MockStore) {
				ms.On("CancelMessageMoveTask", mock.Anything, "nope").Return(int64(0), store.ErrResourceNotFound)
			},
			expectedStatusCode: http.StatusBadRequest,
			expectedBody:       `{"__type":"ResourceNotFoundException","message":"One or more specified resources don't exist."}`,
		},
		{
			name:      "ListMessageMoveTasks - Success",
			action:    "AmazonSQS.ListMessageMoveTasks",
			inputBody: `{"SourceArn":"arn:aws:sqs:us-east-1:000000000000:dlq","MaxResults":5}`,
			mockSetup: func(ms *MockStore) {
				ms.On("ListMessageMoveTasks", mock.Anything, "arn:aws:sqs:us-east-1:000000000000:dlq", 5).Return([]models.ListMessageMoveTasksResultEntry{{
					Status:                            "COMPLETED",
					SourceArn:                         "arn:aws:sqs:us-east-1:000000000000:dlq",
					ApproximateNumberOfMessagesMoved:  3,
					ApproximateNumberOfMessagesToMove: 3,
					MaxNumberOfMessagesPerSecond:      500,
					StartedTimestamp:                  1700000000000,
				}}, nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedBody: `{"Results":[{"Status":"COMPLETED","SourceArn":"arn:aws:sqs:us-east-1:000000000000:dlq",
				"ApproximateNumberOfMessagesMoved":3,"ApproximateNumberOfMessagesToMove":3,
				"MaxNumberOfMessagesPerSecond":500,"StartedTimestamp":1700000000000}]}`,
		},
	})
}

func TestIdentityMiddleware(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("GetQueueURL", mock.MatchedBy(func(ctx context.Context) bool {
		id, ok := store.IdentityFromContext(ctx)
		return ok && id.Scheme == "http" && id.Host == "localhost:8080" && id.AccountID == ""
	}), "orders").Return("http://localhost:8080/000000000000/orders", nil)

	rr := serve(t, &App{Store: mockStore}, "AmazonSQS.GetQueueUrl", `{"QueueName":"orders"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, contentType, rr.Header().Get("Content-Type"))

	var resp models.GetQueueURLResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "http://localhost:8080/000000000000/orders", resp.QueueUrl)
	mockStore.AssertExpectations(t)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	handler := (&App{Store: new(MockStore)}).Routes()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "memq_queues")
}
