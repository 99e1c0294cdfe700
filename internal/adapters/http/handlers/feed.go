package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-feed/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-feed/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-feed/internal/app"
	"github.com/jsamuelsen/quote-feed/internal/domain"
	"github.com/jsamuelsen/quote-feed/internal/platform/config"
)

// FeedHandler serves the engagement-decorated feed and the like/save toggles.
type FeedHandler struct {
	assembler  *app.FeedAssembler
	engagement *app.Engagement
	auth       *config.AuthConfig
	limits     Limits
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(assembler *app.FeedAssembler, engagement *app.Engagement, auth *config.AuthConfig, limits Limits) *FeedHandler {
	return &FeedHandler{
		assembler:  assembler,
		engagement: engagement,
		auth:       auth,
		limits:     limits,
	}
}

// GetFeed handles GET /api/v1/feed. Anonymous callers get items without
// liked/saved flags.
//
// @Summary Newest or popular feed
// @Tags feed
// @Produce json
// @Param sort query string false "newest (cursor paging) or popular (offset paging)"
// @Success 200 {object} dto.PaginatedResponse[dto.FeedItemResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/feed [get]
func (h *FeedHandler) GetFeed(c *gin.Context) {
	var req dto.FeedRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	requester := middleware.UserID(c)
	limit := req.GetLimit(h.limits.Default, h.limits.Max)

	if domain.FeedSort(req.SortOrDefault()) == domain.SortPopular {
		page, err := h.assembler.GetFeedPopular(ctx, requester, req.Offset, limit)
		if err != nil {
			dto.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.NewOffsetPage(dto.NewFeedItemResponses(page.Items), page.NextOffset))

		return
	}

	page, err := h.assembler.GetFeedNewest(ctx, requester, req.Cursor, limit)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCursorPage(dto.NewFeedItemResponses(page.Items), page.NextCursor))
}

// GetEngagement handles GET /api/v1/feed/engagement?ids=a,b,c.
func (h *FeedHandler) GetEngagement(c *gin.Context) {
	var req dto.EngagementRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	ids, fieldErrs := req.QuoteIDs()
	if fieldErrs != nil {
		dto.AbortWithValidationErrors(c, fieldErrs)
		return
	}

	out, err := h.assembler.GetEngagement(c.Request.Context(), middleware.UserID(c), ids)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewEngagementResponses(out))
}

// Like handles POST /api/v1/feed/likes/:id.
func (h *FeedHandler) Like(c *gin.Context) { h.toggle(c, domain.RelationLike, domain.ActionAdd) }

// Unlike handles DELETE /api/v1/feed/likes/:id.
func (h *FeedHandler) Unlike(c *gin.Context) { h.toggle(c, domain.RelationLike, domain.ActionRemove) }

// Save handles POST /api/v1/feed/saved/:id.
func (h *FeedHandler) Save(c *gin.Context) { h.toggle(c, domain.RelationSave, domain.ActionAdd) }

// Unsave handles DELETE /api/v1/feed/saved/:id.
func (h *FeedHandler) Unsave(c *gin.Context) { h.toggle(c, domain.RelationSave, domain.ActionRemove) }

func (h *FeedHandler) toggle(c *gin.Context, rel domain.Relation, action domain.Action) {
	var param dto.QuoteIDParam
	if err := dto.BindURIAndValidate(c, &param); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	user := middleware.UserID(c)

	toggle := h.engagement.ToggleLike
	if rel == domain.RelationSave {
		toggle = h.engagement.ToggleSave
	}

	state, err := toggle(ctx, user, param.ID, action)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewToggleResponse(state))
}

// RegisterRoutes registers feed routes on the given router group.
func (h *FeedHandler) RegisterRoutes(rg *gin.RouterGroup) {
	feed := rg.Group("/feed")

	public := feed.Group("", middleware.OptionalAuth(h.auth))
	public.GET("", h.GetFeed)
	public.GET("/engagement", h.GetEngagement)

	authed := feed.Group("", middleware.RequireAuth(h.auth))
	authed.POST("/likes/:id", h.Like)
	authed.DELETE("/likes/:id", h.Unlike)
	authed.POST("/saved/:id", h.Save)
	authed.DELETE("/saved/:id", h.Unsave)
}
