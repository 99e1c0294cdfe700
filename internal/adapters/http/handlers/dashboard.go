package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-feed/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-feed/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-feed/internal/app"
	"github.com/jsamuelsen/quote-feed/internal/platform/config"
)

// DashboardHandler serves the authenticated user's own quotes and their
// liked and saved lists. Every route requires a subject.
type DashboardHandler struct {
	quotes    *app.QuoteService
	assembler *app.FeedAssembler
	auth      *config.AuthConfig
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(quotes *app.QuoteService, assembler *app.FeedAssembler, auth *config.AuthConfig) *DashboardHandler {
	return &DashboardHandler{
		quotes:    quotes,
		assembler: assembler,
		auth:      auth,
	}
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

// ListMine handles GET /api/v1/dashboard/quotes.
func (h *DashboardHandler) ListMine(c *gin.Context) {
	quotes, err := h.quotes.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemsResponse[dto.QuoteResponse]{Items: dto.NewQuoteResponses(quotes)})
}

// Create handles POST /api/v1/dashboard/quotes.
//
// @Summary Create a quote owned by the caller
// @Tags dashboard
// @Accept json
// @Produce json
// @Param body body dto.CreateQuoteRequest true "Quote"
// @Success 201 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/v1/dashboard/quotes [post]
func (h *DashboardHandler) Create(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	quote, err := h.quotes.Create(c.Request.Context(), middleware.UserID(c), req.Text, req.Author)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuoteResponse(quote))
}

// Update handles PUT /api/v1/dashboard/quotes/:id. Quotes owned by someone
// else are reported as 404.
func (h *DashboardHandler) Update(c *gin.Context) {
	var param dto.QuoteIDParam
	if err := dto.BindURIAndValidate(c, &param); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	var req dto.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.AbortWithCode(c, dto.ErrorCodeBadRequest, "malformed request body")
		return
	}

	if err := dto.ValidateAll(&req); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	quote, err := h.quotes.Update(c.Request.Context(), middleware.UserID(c), param.ID, req.Patch())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// Delete handles DELETE /api/v1/dashboard/quotes/:id.
func (h *DashboardHandler) Delete(c *gin.Context) {
	var param dto.QuoteIDParam
	if err := dto.BindURIAndValidate(c, &param); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	if err := h.quotes.Delete(c.Request.Context(), middleware.UserID(c), param.ID); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Liked handles GET /api/v1/dashboard/liked.
func (h *DashboardHandler) Liked(c *gin.Context) {
	items, err := h.assembler.LikedFeed(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemsResponse[dto.FeedItemResponse]{Items: dto.NewFeedItemResponses(items)})
}

// Saved handles GET /api/v1/dashboard/saved.
func (h *DashboardHandler) Saved(c *gin.Context) {
	items, err := h.assembler.SavedFeed(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemsResponse[dto.FeedItemResponse]{Items: dto.NewFeedItemResponses(items)})
}

// RegisterRoutes registers dashboard routes on the given router group.
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dash := rg.Group("/dashboard", middleware.RequireAuth(h.auth))
	dash.GET("/quotes", h.ListMine)
	dash.POST("/quotes", h.Create)
	dash.PUT("/quotes/:id", h.Update)
	dash.DELETE("/quotes/:id", h.Delete)
	dash.GET("/liked", h.Liked)
	dash.GET("/saved", h.Saved)
}
