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

type Clients struct{ base }

func NewClients(s *store.Store, l *zap.Logger) *Clients {
	return &Clients{base{store: s, log: l}}
}

func (h *Clients) List(c *gin.Context) {
	clients, err := h.store.ScanByType(c.Request.Context(), "client")
	if err != nil {
		h.fail(c, "list clients", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"clients": clients})
}

func (h *Clients) Get(c *gin.Context) {
	client, ok := h.fetchClient(c)
	if !ok {
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"client": client})
}

func (h *Clients) Create(c *gin.Context) {
	var in struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Company string `json:"company"`
		Status  string `json:"status"`
		Source  string `json:"source"`
		Notes   string `json:"notes"` // free-text seed note
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Name == "" {
		resp.Err(c, http.StatusBadRequest, "Client name is required")
		return
	}

	caller := mdw.Identity(c)
	notes := []any{}
	if in.Notes != "" {
		notes = append(notes, map[string]any{
			"id":            utils.NewID("note"),
			"text":          in.Notes,
			"createdBy":     caller.ID,
			"createdByName": caller.Name,
			"createdAt":     utils.NowISO(),
		})
	}

	client := store.Record{
		"id":            utils.NewID("client"),
		"type":          "client",
		"name":          in.Name,
		"email":         in.Email,
		"phone":         in.Phone,
		"company":       in.Company,
		"status":        defaultStr(in.Status, "new_lead"),
		"source":        defaultStr(in.Source, "direct"),
		"notes":         notes,
		"createdAt":     utils.NowISO(),
		"createdBy":     caller.ID,
		"createdByName": caller.Name,
	}
	if err := h.store.Put(c.Request.Context(), client); err != nil {
		h.fail(c, "create client", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"client": client})
}

func (h *Clients) Update(c *gin.Context) {
	client, ok := h.fetchClient(c)
	if !ok {
		return
	}
	var in struct {
		Name    string  `json:"name"`
		Email   *string `json:"email"`
		Phone   *string `json:"phone"`
		Company *string `json:"company"`
		Status  string  `json:"status"`
		Source  string  `json:"source"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Err(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{"updatedAt": utils.NowISO()}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Email != nil {
		fields["email"] = *in.Email
	}
	if in.Phone != nil {
		fields["phone"] = *in.Phone
	}
	if in.Company != nil {
		fields["company"] = *in.Company
	}
	if in.Status != "" {
		fields["status"] = in.Status
	}
	if in.Source != "" {
		fields["source"] = in.Source
	}

	updated, err := h.store.PartialUpdate(c.Request.Context(), client.Str("id"), fields)
	if err != nil {
		h.fail(c, "update client", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"client": updated})
}

func (h *Clients) Delete(c *gin.Context) {
	client, ok := h.fetchClient(c)
	if !ok {
		return
	}
	// No cascade: projects and tasks referencing this client keep dangling ids.
	if err := h.store.Delete(c.Request.Context(), client.Str("id")); err != nil {
		h.fail(c, "delete client", err)
		return
	}
	resp.OK(c, http.StatusOK, gin.H{"message": "Client deleted"})
}

func (h *Clients) AddNote(c *gin.Context) {
	var in struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Text == "" {
		resp.Err(c, http.StatusBadRequest, "Note text is required")
		return
	}
	client, ok := h.fetchClient(c)
	if !ok {
		return
	}

	caller := mdw.Identity(c)
	note := map[string]any{
		"id":            utils.NewID("note"),
		"text":          in.Text,
		"createdBy":     caller.ID,
		"createdByName": caller.Name,
		"createdAt":     utils.NowISO(),
	}
	notes := append(anySlice(client, "notes"), note)

	if _, err := h.store.PartialUpdate(c.Request.Context(), client.Str("id"), map[string]any{"notes": notes}); err != nil {
		h.fail(c, "add note", err)
		return
	}
	resp.OK(c, http.StatusCreated, gin.H{"note": note})
}

func (h *Clients) fetchClient(c *gin.Context) (store.Record, bool) {
	return h.fetch(c, c.Param("id"), "client", "Client not found")
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
