package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/novaclub/club-sync/syncer"
)

// handlePull takes the client's watermarks as a map of entity name to the
// last sync timestamp.
func (s *Server) handlePull(c *gin.Context) {
	watermarks := make(map[string]*string)
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&watermarks); err != nil {
			abort(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	res, err := s.syncer.Pull(c.Request.Context(), principal(c).ClubID, watermarks)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handlePush takes a map of entity name to the records to apply.
func (s *Server) handlePush(c *gin.Context) {
	var changes map[string][]syncer.PushRecord
	if err := c.ShouldBindJSON(&changes); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := s.syncer.Push(c.Request.Context(), principal(c).ClubID, changes)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
