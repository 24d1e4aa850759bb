package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crm-backend/internal/store"
	resp "crm-backend/internal/transport/http/response"
)

type base struct {
	store *store.Store
	log   *zap.Logger
}

// fail logs the store/internal error server-side and returns the generic 500.
func (b base) fail(c *gin.Context, op string, err error) {
	b.log.Error(op, zap.Error(err), zap.String("path", c.Request.URL.Path))
	resp.Err(c, http.StatusInternalServerError, "Server error")
}

// fetch loads a record and enforces the type discriminator. A miss or a type
// mismatch is the same 404 to the caller. Returns ok=false once the response
// has been written.
func (b base) fetch(c *gin.Context, id, typ, notFoundMsg string) (store.Record, bool) {
	rec, err := b.store.Get(c.Request.Context(), id)
	if err != nil {
		b.fail(c, "get "+typ, err)
		return nil, false
	}
	if rec == nil || rec.Str("type") != typ {
		resp.Err(c, http.StatusNotFound, notFoundMsg)
		return nil, false
	}
	return rec, true
}

// anySlice reads an array field of a record, tolerating absence.
func anySlice(rec store.Record, key string) []any {
	s, _ := rec[key].([]any)
	return s
}
