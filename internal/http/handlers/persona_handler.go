package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-session/internal/domain"
)

// ListPersonasResponse wraps the persona catalog.
type ListPersonasResponse struct {
	Personas []domain.Persona `json:"personas"`
}

// ListPersonas godoc
// @ID          listPersonas
// @Summary     List personas
// @Description Returns the coaching personas a user can select.
// @Tags        Personas
// @Produce     json
// @Param       X-User-ID  header  int  true  "Effective user id"  example(42)
// @Success     200  {object}  handlers.ListPersonasResponse
// @Router      /personas [get]
func (h *Handlers) ListPersonas(c *gin.Context) {
	ok(c, http.StatusOK, ListPersonasResponse{Personas: h.personas.List()})
}
