package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/store"
	"github.com/novaclub/club-sync/syncer"
)

func (s *Server) registerEntity(group *gin.RouterGroup, kind catalog.Kind) {
	h := &entityHandler{server: s, kind: kind}
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("", h.create)
	group.PUT("/:id", h.update)
	group.DELETE("/:id", h.delete)
}

// entityHandler serves the tenant scoped CRUD routes of one catalog kind.
type entityHandler struct {
	server *Server
	kind   catalog.Kind
}

func (h *entityHandler) list(c *gin.Context) {
	records, err := h.server.storage.ListChanges(c.Request.Context(), h.kind, principal(c).ClubID, nil)
	if err != nil {
		abortStore(c, err)
		return
	}
	schema := h.kind.Schema()
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = schema.Encode(r.Fields)
	}
	c.JSON(http.StatusOK, out)
}

func (h *entityHandler) get(c *gin.Context) {
	record, err := h.server.storage.GetRecord(c.Request.Context(), h.kind, principal(c).ClubID, c.Param("id"))
	if err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, h.kind.Schema().Encode(record.Fields))
}

func (h *entityHandler) create(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	schema := h.kind.Schema()
	fields, err := schema.Coerce(data)
	if err != nil {
		abortStore(c, err)
		return
	}
	id := fields.Str(catalog.ColID)
	if id == "" {
		id = store.NewID()
	}
	p := principal(c)
	if schema.Author != "" {
		fields[schema.Author] = p.UserID
	}
	h.write(c, p.ClubID, id, fields, store.CreateOnly)
}

func (h *entityHandler) update(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	fields, err := h.kind.Schema().Coerce(data)
	if err != nil {
		abortStore(c, err)
		return
	}
	delete(fields, catalog.ColClubID)
	h.write(c, principal(c).ClubID, c.Param("id"), fields, store.UpdateOnly)
}

func (h *entityHandler) write(c *gin.Context, clubID, id string, fields catalog.Fields, mode store.WriteMode) {
	record, action, err := h.server.storage.SetRecord(c.Request.Context(), h.kind, clubID, id, fields, mode)
	if err != nil {
		abortStore(c, err)
		return
	}
	h.server.changed(clubID, syncer.Applied{Kind: h.kind, ID: record.ID, Action: action, UpdatedAt: record.UpdatedAt()})
	c.JSON(http.StatusOK, h.kind.Schema().Encode(record.Fields))
}

func (h *entityHandler) delete(c *gin.Context) {
	if err := h.server.storage.DeleteRecord(c.Request.Context(), h.kind, principal(c).ClubID, c.Param("id")); err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

func (s *Server) changed(clubID string, applied syncer.Applied) {
	if s.onChange != nil {
		s.onChange(clubID, applied)
	}
}
