package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/farms"
)

type CreateAccountRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Username string `json:"username" binding:"max=255"`
	AuthType string `json:"authType" binding:"omitempty,oneof=cookie oauth"`
	AuthData string `json:"authData"`
	Remember bool   `json:"remember"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) ListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accounts": h.farms.ListAccounts(c.Request.Context())})
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.farms.CreateAccount(c.Request.Context(), farms.CreateAccountInput{
		Name:     req.Name,
		Username: req.Username,
		AuthType: db.AuthType(req.AuthType),
		AuthData: req.AuthData,
		Remember: req.Remember,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *Handler) GetAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := h.farms.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *Handler) SetAccountActive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.farms.SetAccountActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// DeleteAccount removes the account together with every farm it owns.
func (h *Handler) DeleteAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.farms.DeleteAccount(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
