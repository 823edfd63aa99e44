package server

import (
	"net/http"

	"github.com/tabeth/memq/models"
)

// ListDeadLetterSourceQueuesHandler lists the queues whose redrive policy
// targets the given queue.
func (app *App) ListDeadLetterSourceQueuesHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ListDeadLetterSourceQueuesRequest
	if !app.decode(w, r, &req) {
		return
	}
	queueName, ok := app.queueName(w, req.QueueUrl)
	if !ok {
		return
	}
	urls, nextToken, err := app.Store.ListDeadLetterSourceQueues(r.Context(), queueName, req.MaxResults, req.NextToken)
	if err != nil {
		app.sendStoreError(w, r, "ListDeadLetterSourceQueues", err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	app.writeJSON(w, models.ListDeadLetterSourceQueuesResponse{QueueUrls: urls, NextToken: nextToken})
}

func (app *App) StartMessageMoveTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StartMessageMoveTaskRequest
	if !app.decode(w, r, &req) {
		return
	}
	handle, err := app.Store.StartMessageMoveTask(r.Context(), req.SourceArn, req.DestinationArn, req.MaxNumberOfMessagesPerSecond)
	if err != nil {
		app.sendStoreError(w, r, "StartMessageMoveTask", err)
		return
	}
	app.writeJSON(w, models.StartMessageMoveTaskResponse{TaskHandle: handle})
}

func (app *App) CancelMessageMoveTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CancelMessageMoveTaskRequest
	if !app.decode(w, r, &req) {
		return
	}
	moved, err := app.Store.CancelMessageMoveTask(r.Context(), req.TaskHandle)
	if err != nil {
		app.sendStoreError(w, r, "CancelMessageMoveTask", err)
		return
	}
	app.writeJSON(w, models.CancelMessageMoveTaskResponse{ApproximateNumberOfMessagesMoved: moved})
}

func (app *App) ListMessageMoveTasksHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ListMessageMoveTasksRequest
	if !app.decode(w, r, &req) {
		return
	}
	results, err := app.Store.ListMessageMoveTasks(r.Context(), req.SourceArn, req.MaxResults)
	if err != nil {
		app.sendStoreError(w, r, "ListMessageMoveTasks", err)
		return
	}
	app.writeJSON(w, models.ListMessageMoveTasksResponse{Results: results})
}
