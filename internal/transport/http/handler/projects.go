package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crm-backend/internal/store"
	mdw "crm-backend/internal/transport/http/middleware"
	resp "crm-backend/internal/transport/http/response"
	"crm-backend/pkg/utils"
)

type Projects struct{ base }

func NewProjects(s *store.Store, l *zap.Logger) *Projects {
	return &Projects{base{store: s, log: l}}
}

func (h *Projects) List(c *gin.Context) {
	projects, err := h.store.ScanByType(c.Request.Context(), "project")
	if err != nil {
		h.fail(c, "list projects", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"projects": projects})
}

func (h *Projects) Get(c *gin.Context) {
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"project": project})
}

type moduleIn struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	AssignedTo     *string `json:"assignedTo"`
	AssignedToName *string `json:"assignedToName"`
	EstimatedDays  float64 `json:"estimatedDays"`
}

func newModule(in moduleIn) map[string]any {
	return map[string]any{
		"id":             utils.NewID("module"),
		"name":           in.Name,
		"description":    in.Description,
		"assignedTo":     strOrNil(in.AssignedTo),
		"assignedToName": strOrNil(in.AssignedToName),
		"estimatedDays":  in.EstimatedDays,
		"status":         "pending",
		"createdAt":      utils.NowISO(),
	}
}

func newActivity(typ, title, description string) map[string]any {
	return map[string]any{
		"id":          utils.NewID("activity"),
		"type":        typ,
		"title":       title,
		"description": description,
		"timestamp":   utils.NowISO(),
	}
}

func (h *Projects) Create(c *gin.Context) {
	var in struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		ClientID    *string          `json:"clientId"` // weak reference, unvalidated
		Status      string           `json:"status"`
		Location    *string          `json:"location"`
		ImageURL    *string          `json:"imageUrl"`
		StartDate   string           `json:"startDate"`
		DueDate     *string          `json:"dueDate"`
		Modules     []moduleIn       `json:"modules"`
		Financials  map[string]any   `json:"financials"`
		Documents   []map[string]any `json:"documents"`
		Activities  []map[string]any `json:"activities"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Name == "" {
		resp.Err(c, http.StatusBadRequest, "Project name is required")
		return
	}

	modules := make([]any, 0, len(in.Modules))
	for _, m := range in.Modules {
		modules = append(modules, newModule(m))
	}

	financials := in.Financials
	if financials == nil {
		financials = map[string]any{
			"totalAmount": float64(0),
			"paidAmount":  float64(0),
			"dueAmount":   float64(0),
			"dueDate":     nil,
		}
	}
	documents := make([]any, 0, len(in.Documents))
	for _, d := range in.Documents {
		documents = append(documents, d)
	}
	activities := make([]any, 0, len(in.Activities))
	for _, a := range in.Activities {
		activities = append(activities, a)
	}
	if len(activities) == 0 {
		activities = append(activities, newActivity(
			"project_created", "Project Created",
			fmt.Sprintf("Project %q was created", in.Name),
		))
	}

	caller := mdw.Identity(c)
	project := store.Record{
		"id":            utils.NewID("project"),
		"type":          "project",
		"name":          in.Name,
		"description":   in.Description,
		"clientId":      strOrNil(in.ClientID),
		"status":        defaultStr(in.Status, "planning"),
		"location":      strOrNil(in.Location),
		"imageUrl":      strOrNil(in.ImageURL),
		"startDate":     defaultStr(in.StartDate, utils.NowISO()),
		"dueDate":       strOrNil(in.DueDate),
		"modules":       modules,
		"financials":    financials,
		"documents":     documents,
		"activities":    activities,
		"createdAt":     utils.NowISO(),
		"createdBy":     caller.ID,
		"createdByName": caller.Name,
	}
	if err := h.store.Put(c.Request.Context(), project); err != nil {
		h.fail(c, "create project", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"project": project})
}

func (h *Projects) Update(c *gin.Context) {
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}
	var in struct {
		Name        string           `json:"name"`
		Description *string          `json:"description"`
		ClientID    *string          `json:"clientId"`
		Status      string           `json:"status"`
		Location    *string          `json:"location"`
		ImageURL    *string          `json:"imageUrl"`
		StartDate   string           `json:"startDate"`
		DueDate     *string          `json:"dueDate"`
		Modules     []map[string]any `json:"modules"`
		Financials  map[string]any   `json:"financials"`
		Documents   []map[string]any `json:"documents"`
		Activities  []map[string]any `json:"activities"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{"updatedAt": utils.NowISO()}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.ClientID != nil {
		fields["clientId"] = *in.ClientID
	}
	if in.Status != "" {
		fields["status"] = in.Status
	}
	if in.Location != nil {
		fields["location"] = *in.Location
	}
	if in.ImageURL != nil {
		fields["imageUrl"] = *in.ImageURL
	}
	if in.StartDate != "" {
		fields["startDate"] = in.StartDate
	}
	if in.DueDate != nil {
		fields["dueDate"] = *in.DueDate
	}
	if in.Modules != nil {
		fields["modules"] = in.Modules
	}
	if in.Financials != nil {
		fields["financials"] = in.Financials
	}
	if in.Documents != nil {
		fields["documents"] = in.Documents
	}
	if in.Activities != nil {
		fields["activities"] = in.Activities
	}

	updated, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), fields)
	if err != nil {
		h.fail(c, "update project", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"project": updated})
}

func (h *Projects) Delete(c *gin.Context) {
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), project.Str("id")); err != nil {
		h.fail(c, "delete project", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "Project deleted"})
}

func (h *Projects) AddModule(c *gin.Context) {
	var in moduleIn
	if err := c.ShouldBindJSON(&in); err != nil || in.Name == "" {
		resp.Err(c, http.StatusBadRequest, "Module name is required")
		return
	}
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}

	module := newModule(in)
	modules := append(anySlice(project, "modules"), module)
	activities := append(anySlice(project, "activities"), newActivity(
		"module_added", "Module Added",
		fmt.Sprintf("Module %q was added to the project", in.Name),
	))

	// One write carries both the module and its activity; no divergence window
	// within the record, though concurrent callers can still race each other.
	_, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), map[string]any{
		"modules":    modules,
		"activities": activities,
	})
	if err != nil {
		h.fail(c, "add module", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"module": module})
}

func (h *Projects) UpdateModule(c *gin.Context) {
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}
	var in struct {
		Status         string   `json:"status"`
		AssignedTo     *string  `json:"assignedTo"`
		AssignedToName *string  `json:"assignedToName"`
		EstimatedDays  *float64 `json:"estimatedDays"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	moduleID := c.Param("moduleId")
	var moduleName string
	modules := anySlice(project, "modules")
	for _, raw := range modules {
		m, _ := raw.(map[string]any)
		if m == nil || m["id"] != moduleID {
			continue
		}
		moduleName, _ = m["name"].(string)
		if in.Status != "" {
			m["status"] = in.Status
		}
		if in.AssignedTo != nil {
			m["assignedTo"] = *in.AssignedTo
		}
		if in.AssignedToName != nil {
			m["assignedToName"] = *in.AssignedToName
		}
		if in.EstimatedDays != nil {
			m["estimatedDays"] = *in.EstimatedDays
		}
		m["updatedAt"] = utils.NowISO()
	}

	activities := anySlice(project, "activities")
	if in.Status != "" {
		title := "Module Updated"
		if in.Status == "completed" {
			title = "Module Completed"
		}
		activities = append(activities, newActivity(
			"module_status_changed", title,
			fmt.Sprintf("Module %q status changed to %s", moduleName, in.Status),
		))
	}

	_, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), map[string]any{
		"modules":    modules,
		"activities": activities,
	})
	if err != nil {
		h.fail(c, "update module", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "Module updated"})
}

func (h *Projects) UpdateFinancials(c *gin.Context) {
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}
	var in struct {
		TotalAmount *float64 `json:"totalAmount"`
		PaidAmount  *float64 `json:"paidAmount"`
		DueDate     *string  `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	old, _ := project["financials"].(map[string]any)
	total := numField(old, "totalAmount")
	paid := numField(old, "paidAmount")
	oldPaid := paid
	_, hadPaid := old["paidAmount"]
	var dueDate any
	if old != nil {
		dueDate = old["dueDate"]
	}

	if in.TotalAmount != nil {
		total = *in.TotalAmount
	}
	if in.PaidAmount != nil {
		paid = *in.PaidAmount
	}
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}

	// dueAmount is always the derivation, never stored independently.
	financials := map[string]any{
		"totalAmount": total,
		"paidAmount":  paid,
		"dueAmount":   total - paid,
		"dueDate":     dueDate,
	}

	// The first paid amount a record ever sees is a payment, even zero.
	activities := anySlice(project, "activities")
	if in.PaidAmount != nil && (!hadPaid || *in.PaidAmount != oldPaid) {
		activities = append(activities, newActivity(
			"payment_received", "Payment Received",
			fmt.Sprintf("Payment of %s recorded", strconv.FormatFloat(paid, 'f', -1, 64)),
		))
	}

	_, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), map[string]any{
		"financials": financials,
		"activities": activities,
	})
	if err != nil {
		h.fail(c, "update financials", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"financials": financials})
}

func (h *Projects) AddDocument(c *gin.Context) {
	var in struct {
		Name string  `json:"name"`
		URL  *string `json:"url"`
		Type string  `json:"type"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Name == "" {
		resp.Err(c, http.StatusBadRequest, "Document name is required")
		return
	}
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}

	caller := mdw.Identity(c)
	document := map[string]any{
		"id":             utils.NewID("doc"),
		"name":           in.Name,
		"url":            strOrNil(in.URL),
		"type":           defaultStr(in.Type, "other"),
		"uploadedAt":     utils.NowISO(),
		"uploadedBy":     caller.ID,
		"uploadedByName": caller.Name,
	}
	documents := append(anySlice(project, "documents"), document)
	activities := append(anySlice(project, "activities"), newActivity(
		"document_uploaded", "Document Uploaded",
		fmt.Sprintf("Document %q was uploaded", in.Name),
	))

	_, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), map[string]any{
		"documents":  documents,
		"activities": activities,
	})
	if err != nil {
		h.fail(c, "add document", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"document": document})
}

func (h *Projects) DeleteDocument(c *gin.Context) {
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	documents := make([]any, 0)
	for _, raw := range anySlice(project, "documents") {
		if d, _ := raw.(map[string]any); d != nil && d["id"] == docID {
			continue
		}
		documents = append(documents, raw)
	}

	// Succeeds even when the id matched nothing.
	_, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), map[string]any{"documents": documents})
	if err != nil {
		h.fail(c, "delete document", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "Document deleted"})
}

func (h *Projects) AddActivity(c *gin.Context) {
	var in struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Title == "" {
		resp.Err(c, http.StatusBadRequest, "Activity title is required")
		return
	}
	project, ok := h.fetchProject(c)
	if !ok {
		return
	}

	caller := mdw.Identity(c)
	activity := newActivity(defaultStr(in.Type, "general"), in.Title, in.Description)
	activity["createdBy"] = caller.ID
	activity["createdByName"] = caller.Name
	activities := append(anySlice(project, "activities"), activity)

	_, err := h.store.PartialUpdate(c.Request.Context(), project.Str("id"), map[string]any{"activities": activities})
	if err != nil {
		h.fail(c, "add activity", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"activity": activity})
}

func (h *Projects) fetchProject(c *gin.Context) (store.Record, bool) {
	return h.fetch(c, c.Param("id"), "project", "Project not found")
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func numField(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	n, _ := m[key].(float64)
	return n
}
