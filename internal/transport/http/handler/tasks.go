package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crm-backend/internal/store"
	mdw "crm-backend/internal/transport/http/middleware"
	resp "crm-backend/internal/transport/http/response"
	"crm-backend/pkg/utils"
)

type Tasks struct{ base }

func NewTasks(s *store.Store, l *zap.Logger) *Tasks {
	return &Tasks{base{store: s, log: l}}
}

func (h *Tasks) List(c *gin.Context) {
	tasks, err := h.store.ScanByType(c.Request.Context(), "task")
	if err != nil {
		h.fail(c, "list tasks", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"tasks": tasks})
}

// ListMine filters the scan down to tasks assigned to the caller.
func (h *Tasks) ListMine(c *gin.Context) {
	tasks, err := h.store.ScanByType(c.Request.Context(), "task")
	if err != nil {
		h.fail(c, "list my tasks", err)
		return
	}
	uid := mdw.Identity(c).ID
	mine := make([]store.Record, 0)
	for _, t := range tasks {
		if t.Str("assignedTo") == uid {
			mine = append(mine, t)
		}
	}
	resp.OK(c, http.StatusOK, gin.H{"tasks": mine})
}

func (h *Tasks) ListByProject(c *gin.Context) {
	tasks, err := h.store.ScanByType(c.Request.Context(), "task")
	if err != nil {
		h.fail(c, "list project tasks", err)
		return
	}
	projectID := c.Param("projectId")
	out := make([]store.Record, 0)
	for _, t := range tasks {
		if t.Str("projectId") == projectID {
			out = append(out, t)
		}
	}
	resp.OK(c, http.StatusOK, gin.H{"tasks": out})
}

func (h *Tasks) Get(c *gin.Context) {
	task, ok := h.fetchTask(c)
	if !ok {
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"task": task})
}

func (h *Tasks) Create(c *gin.Context) {
	var in struct {
		Title          string  `json:"title"`
		Description    string  `json:"description"`
		AssignedTo     *string `json:"assignedTo"` // weak reference to a user
		AssignedToName *string `json:"assignedToName"`
		ProjectID      *string `json:"projectId"` // weak reference to a project
		Status         string  `json:"status"`
		Priority       string  `json:"priority"`
		DueDate        *string `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Title == "" {
		resp.Err(c, http.StatusBadRequest, "Task title is required")
		return
	}

	caller := mdw.Identity(c)
	task := store.Record{
		"id":             utils.NewID("task"),
		"type":           "task",
		"title":          in.Title,
		"description":    in.Description,
		"assignedTo":     strOrNil(in.AssignedTo),
		"assignedToName": strOrNil(in.AssignedToName),
		"projectId":      strOrNil(in.ProjectID),
		"status":         defaultStr(in.Status, "todo"),
		"priority":       defaultStr(in.Priority, "medium"),
		"dueDate":        strOrNil(in.DueDate),
		"comments":       []any{},
		"createdAt":      utils.NowISO(),
		"createdBy":      caller.ID,
		"createdByName":  caller.Name,
	}
	if err := h.store.Put(c.Request.Context(), task); err != nil {
		h.fail(c, "create task", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"task": task})
}

func (h *Tasks) Update(c *gin.Context) {
	task, ok := h.fetchTask(c)
	if !ok {
		return
	}
	var in struct {
		Title          string  `json:"title"`
		Description    *string `json:"description"`
		AssignedTo     *string `json:"assignedTo"`
		AssignedToName *string `json:"assignedToName"`
		ProjectID      *string `json:"projectId"`
		Status         string  `json:"status"`
		Priority       string  `json:"priority"`
		DueDate        *string `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{"updatedAt": utils.NowISO()}
	if in.Title != "" {
		fields["title"] = in.Title
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.AssignedTo != nil {
		fields["assignedTo"] = *in.AssignedTo
	}
	if in.AssignedToName != nil {
		fields["assignedToName"] = *in.AssignedToName
	}
	if in.ProjectID != nil {
		fields["projectId"] = *in.ProjectID
	}
	if in.Status != "" {
		fields["status"] = in.Status
	}
	if in.Priority != "" {
		fields["priority"] = in.Priority
	}
	if in.DueDate != nil {
		fields["dueDate"] = *in.DueDate
	}

	updated, err := h.store.PartialUpdate(c.Request.Context(), task.Str("id"), fields)
	if err != nil {
		h.fail(c, "update task", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"task": updated})
}

func (h *Tasks) Delete(c *gin.Context) {
	task, ok := h.fetchTask(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), task.Str("id")); err != nil {
		h.fail(c, "delete task", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "Task deleted"})
}

func (h *Tasks) AddComment(c *gin.Context) {
	var in struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Text == "" {
		resp.Err(c, http.StatusBadRequest, "Comment text is required")
		return
	}
	task, ok := h.fetchTask(c)
	if !ok {
		return
	}

	caller := mdw.Identity(c)
	comment := map[string]any{
		"id":            utils.NewID("comment"),
		"text":          in.Text,
		"createdBy":     caller.ID,
		"createdByName": caller.Name,
		"createdAt":     utils.NowISO(),
	}
	comments := append(anySlice(task, "comments"), comment)

	if _, err := h.store.PartialUpdate(c.Request.Context(), task.Str("id"), map[string]any{"comments": comments}); err != nil {
		h.fail(c, "add comment", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"comment": comment})
}

func (h *Tasks) fetchTask(c *gin.Context) (store.Record, bool) {
	return h.fetch(c, c.Param("id"), "task", "Task not found")
}
