package server

import (
	"net/http"

	"github.com/tabeth/memq/models"
)

// SendMessageHandler enqueues a single message.
func (app *App) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	resp, err := app.Store.SendMessage(r.Context(), queueName, &req)
	if err != nil {
		app.sendStoreError(w, r, "SendMessage", err)
		return
	}
	app.writeJSON(w, resp)
}

// SendMessageBatchHandler enqueues up to ten messages. Per-entry failures are
// part of a successful response.
func (app *App) SendMessageBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageBatchRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	resp, err := app.Store.SendMessageBatch(r.Context(), queueName, &req)
	if err != nil {
		app.sendStoreError(w, r, "SendMessageBatch", err)
		return
	}
	app.writeJSON(w, resp)
}

// ReceiveMessageHandler claims messages, long polling when asked to. The
// request context bounds the wait, so a disconnecting client frees it.
func (app *App) ReceiveMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ReceiveMessageRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	resp, err := app.Store.ReceiveMessage(r.Context(), queueName, &req)
	if err != nil {
		app.sendStoreError(w, r, "ReceiveMessage", err)
		return
	}
	if resp.Messages == nil {
		resp.Messages = []models.ResponseMessage{}
	}
	app.writeJSON(w, resp)
}

func (app *App) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteMessageRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if err := app.Store.DeleteMessage(r.Context(), queueName, req.ReceiptHandle); err != nil {
		app.sendStoreError(w, r, "DeleteMessage", err)
		return
	}
	app.writeJSON(w, struct{}{})
}

func (app *App) DeleteMessageBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteMessageBatchRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	resp, err := app.Store.DeleteMessageBatch(r.Context(), queueName, &req)
	if err != nil {
		app.sendStoreError(w, r, "DeleteMessageBatch", err)
		return
	}
	app.writeJSON(w, resp)
}

func (app *App) ChangeMessageVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChangeMessageVisibilityRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if req.VisibilityTimeout == nil {
		app.sendErrorResponse(w, "MissingParameter", "The request must contain the parameter VisibilityTimeout.", http.StatusBadRequest)
		return
	}
	if err := app.Store.ChangeMessageVisibility(r.Context(), queueName, req.ReceiptHandle, *req.VisibilityTimeout); err != nil {
		app.sendStoreError(w, r, "ChangeMessageVisibility", err)
		return
	}
	app.writeJSON(w, struct{}{})
}

func (app *App) ChangeMessageVisibilityBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChangeMessageVisibilityBatchRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	resp, err := app.Store.ChangeMessageVisibilityBatch(r.Context(), queueName, &req)
	if err != nil {
		app.sendStoreError(w, r, "ChangeMessageVisibilityBatch", err)
		return
	}
	app.writeJSON(w, resp)
}
