package server

import (
	"net/http"

	"github.com/tabeth/memq/models"
)

// CreateQueueHandler creates a queue, or returns the URL of an identical one.
func (app *App) CreateQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateQueueRequest
	if !app.decode(w, r, &req) {
		return
	}
	if req.QueueName == "" {
		app.sendErrorResponse(w, "MissingParameter", "The request must contain the parameter QueueName.", http.StatusBadRequest)
		return
	}
	queueURL, err := app.Store.CreateQueue(r.Context(), req.QueueName, req.Attributes, req.Tags)
	if err != nil {
		app.sendStoreError(w, r, "CreateQueue", err)
		return
	}
	app.writeJSON(w, models.CreateQueueResponse{QueueURL: queueURL})
}

// DeleteQueueHandler deletes a queue and every message in it.
func (app *App) DeleteQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteQueueRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if err := app.Store.DeleteQueue(r.Context(), queueName); err != nil {
		app.sendStoreError(w, r, "DeleteQueue", err)
		return
	}
	app.writeJSON(w, struct{}{})
}

func (app *App) GetQueueURLHandler(w http.ResponseWriter, r *http.Request) {
	var req models.GetQueueURLRequest
	if !app.decode(w, r, &req) {
		return
	}
	if req.QueueName == "" {
		app.sendErrorResponse(w, "MissingParameter", "The request must contain the parameter QueueName.", http.StatusBadRequest)
		return
	}
	queueURL, err := app.Store.GetQueueURL(r.Context(), req.QueueName)
	if err != nil {
		app.sendStoreError(w, r, "GetQueueUrl", err)
		return
	}
	app.writeJSON(w, models.GetQueueURLResponse{QueueUrl: queueURL})
}

// ListQueuesHandler lists queue URLs, optionally filtered by prefix and paginated.
func (app *App) ListQueuesHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ListQueuesRequest
	if !app.decode(w, r, &req) {
		return
	}
	urls, nextToken, err := app.Store.ListQueues(r.Context(), req.MaxResults, req.NextToken, req.QueueNamePrefix)
	if err != nil {
		app.sendStoreError(w, r, "ListQueues", err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	app.writeJSON(w, models.ListQueuesResponse{QueueUrls: urls, NextToken: nextToken})
}

func (app *App) GetQueueAttributesHandler(w http.ResponseWriter, r *http.Request) {
	var req models.GetQueueAttributesRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	attrs, err := app.Store.GetQueueAttributes(r.Context(), queueName, req.AttributeNames)
	if err != nil {
		app.sendStoreError(w, r, "GetQueueAttributes", err)
		return
	}
	app.writeJSON(w, models.GetQueueAttributesResponse{Attributes: attrs})
}

func (app *App) SetQueueAttributesHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SetQueueAttributesRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if err := app.Store.SetQueueAttributes(r.Context(), queueName, req.Attributes); err != nil {
		app.sendStoreError(w, r, "SetQueueAttributes", err)
		return
	}
	app.writeJSON(w, struct{}{})
}

// PurgeQueueHandler deletes all messages in a queue.
func (app *App) PurgeQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PurgeQueueRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if err := app.Store.PurgeQueue(r.Context(), queueName); err != nil {
		app.sendStoreError(w, r, "PurgeQueue", err)
		return
	}
	app.writeJSON(w, struct{}{})
}

// --- Tagging ---

func (app *App) ListQueueTagsHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ListQueueTagsRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	tags, err := app.Store.ListQueueTags(r.Context(), queueName)
	if err != nil {
		app.sendStoreError(w, r, "ListQueueTags", err)
		return
	}
	app.writeJSON(w, models.ListQueueTagsResponse{Tags: tags})
}

func (app *App) TagQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TagQueueRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if err := app.Store.TagQueue(r.Context(), queueName, req.Tags); err != nil {
		app.sendStoreError(w, r, "TagQueue", err)
		return
	}
	app.writeJSON(w, struct{}{})
}

func (app *App) UntagQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UntagQueueRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	if err := app.Store.UntagQueue(r.Context(), queueName, req.TagKeys); err != nil {
		app.sendStoreError(w, r, "UntagQueue", err)
		return
	}
	app.writeJSON(w, struct{}{})
}
