// Package server exposes the queue engine over the AWS JSON 1.0 protocol
// spoken by the SQS SDKs: every action is a POST to "/" naming the action
// in the X-Amz-Target header.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabeth/memq/logging"
	"github.com/tabeth/memq/models"
	"github.com/tabeth/memq/store"
)

const contentType = "application/x-amz-json-1.0"

// App encapsulates the handler dependencies.
type App struct {
	Store store.Store

	// AuthEnabled requires a bearer token minted by CreateToken on every
	// action; the token's account_id becomes the caller's account.
	AuthEnabled bool
	JWTSecret   []byte
	AdminAPIKey string
}

// Routes builds the full HTTP surface: the SQS endpoint plus health and
// metrics endpoints.
func (app *App) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Amzn-Requestid"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	app.RegisterSQSHandlers(r)
	return r
}

// RegisterSQSHandlers mounts the RPC-style SQS endpoint on r.
func (app *App) RegisterSQSHandlers(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(app.IdentityMiddleware)
		if app.AuthEnabled {
			r.Use(app.AuthMiddleware)
		}
		r.Post("/", app.RootSQSHandler)
	})
}

// RootSQSHandler dispatches on the X-Amz-Target header, which has the form
// "AmazonSQS.<Action>".
func (app *App) RootSQSHandler(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	parts := strings.Split(target, ".")
	if len(parts) != 2 || parts[0] != "AmazonSQS" {
		app.sendErrorResponse(w, "InvalidAction", "Invalid X-Amz-Target header", http.StatusBadRequest)
		return
	}
	w.Header().Set("X-Amzn-Requestid", middleware.GetReqID(r.Context()))

	switch action := parts[1]; action {
	case "CreateQueue":
		app.CreateQueueHandler(w, r)
	case "DeleteQueue":
		app.DeleteQueueHandler(w, r)
	case "GetQueueUrl":
		app.GetQueueURLHandler(w, r)
	case "ListQueues":
		app.ListQueuesHandler(w, r)
	case "GetQueueAttributes":
		app.GetQueueAttributesHandler(w, r)
	case "SetQueueAttributes":
		app.SetQueueAttributesHandler(w, r)
	case "PurgeQueue":
		app.PurgeQueueHandler(w, r)
	case "SendMessage":
		app.SendMessageHandler(w, r)
	case "SendMessageBatch":
		app.SendMessageBatchHandler(w, r)
	case "ReceiveMessage":
		app.ReceiveMessageHandler(w, r)
	case "DeleteMessage":
		app.DeleteMessageHandler(w, r)
	case "DeleteMessageBatch":
		app.DeleteMessageBatchHandler(w, r)
	case "ChangeMessageVisibility":
		app.ChangeMessageVisibilityHandler(w, r)
	case "ChangeMessageVisibilityBatch":
		app.ChangeMessageVisibilityBatchHandler(w, r)
	case "ListQueueTags":
		app.ListQueueTagsHandler(w, r)
	case "TagQueue":
		app.TagQueueHandler(w, r)
	case "UntagQueue":
		app.UntagQueueHandler(w, r)
	case "ListDeadLetterSourceQueues":
		app.ListDeadLetterSourceQueuesHandler(w, r)
	case "StartMessageMoveTask":
		app.StartMessageMoveTaskHandler(w, r)
	case "CancelMessageMoveTask":
		app.CancelMessageMoveTaskHandler(w, r)
	case "ListMessageMoveTasks":
		app.ListMessageMoveTasksHandler(w, r)
	case "CreateToken":
		app.CreateTokenHandler(w, r)
	default:
		app.sendErrorResponse(w, "UnsupportedOperation", "Unsupported operation: "+action, http.StatusBadRequest)
	}
}

// IdentityMiddleware records the caller's scheme and host so the engine
// formats queue URLs the client can reach.
func (app *App) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		id, _ := store.IdentityFromContext(r.Context())
		id.Scheme = scheme
		id.Host = r.Host
		next.ServeHTTP(w, r.WithContext(store.WithIdentity(r.Context(), id)))
	})
}

// sendErrorResponse writes an error in the AWS JSON error format.
func (app *App) sendErrorResponse(w http.ResponseWriter, errorType string, message string, statusCode int) {
	errResp := models.ErrorResponse{
		Type:    errorType,
		Message: message,
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errResp)
}

// sendStoreError maps an engine error onto the wire. Classified errors keep
// their SQS code; everything else is an internal failure.
func (app *App) sendStoreError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var se *store.Error
	if errors.As(err, &se) {
		status := http.StatusBadRequest
		if se.Kind == store.KindInternal {
			status = http.StatusInternalServerError
		}
		app.sendErrorResponse(w, se.Code, se.Message, status)
		return
	}
	if errors.Is(err, context.Canceled) {
		// The client went away during a long poll; nobody reads the reply.
		logging.WithFields(logging.Fields{"event": "request_cancelled", "action": action}).Debug(err)
		return
	}
	logging.WithFields(logging.Fields{
		"event":      "internal_error",
		"action":     action,
		"request_id": middleware.GetReqID(r.Context()),
	}).Error(err)
	app.sendErrorResponse(w, "InternalFailure", "The request processing has failed because of an unknown error, exception or failure.", http.StatusInternalServerError)
}

func (app *App) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads the JSON request body into v. An empty body decodes to the
// zero request, so actions without required input can be called bare.
func (app *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		app.sendErrorResponse(w, "InvalidRequest", "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// queueName extracts the queue name from the last path segment of a queue
// URL. It writes MissingParameter and returns false when the URL is absent.
func (app *App) queueName(w http.ResponseWriter, queueURL string) (string, bool) {
	if queueURL == "" {
		app.sendErrorResponse(w, "MissingParameter", "The request must contain the parameter QueueUrl.", http.StatusBadRequest)
		return "", false
	}
	return path.Base(queueURL), true
}
