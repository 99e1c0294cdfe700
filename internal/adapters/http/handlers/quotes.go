package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-feed/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-feed/internal/app"
	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// Limits bounds page sizes. Zero values fall back to the dto defaults.
type Limits struct {
	Default int
	Max     int
}

// QuoteHandler serves the public quote reads.
type QuoteHandler struct {
	feed   *app.FeedCache
	quotes *app.QuoteService
	limits Limits
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(feed *app.FeedCache, quotes *app.QuoteService, limits Limits) *QuoteHandler {
	return &QuoteHandler{
		feed:   feed,
		quotes: quotes,
		limits: limits,
	}
}

// GetRandomQuote handles GET /api/v1/quotes/random.
//
// @Summary Get a random quote
// @Tags quotes
// @Produce json
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/random [get]
func (h *QuoteHandler) GetRandomQuote(c *gin.Context) {
	quote, err := h.feed.GetRandomQuote(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// ListQuotes handles GET /api/v1/quotes. An author with no quotes is a 404.
//
// @Summary List quotes, newest first
// @Tags quotes
// @Produce json
// @Param author query string false "Author, case-insensitive"
// @Param cursor query string false "ID of the last quote of the previous page"
// @Param limit query int false "Page size (1-100)"
// @Success 200 {object} dto.PaginatedResponse[dto.QuoteResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	var req dto.ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	page, err := h.feed.ListQuotes(c.Request.Context(), domain.ListFilter{
		Author: req.AuthorFilter(),
		Cursor: req.Cursor,
		Limit:  req.GetLimit(h.limits.Default, h.limits.Max),
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCursorPage(dto.NewQuoteResponses(page.Items), page.NextCursor))
}

// GetQuote handles GET /api/v1/quotes/:id.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	var param dto.QuoteIDParam
	if err := dto.BindURIAndValidate(c, &param); err != nil {
		dto.AbortWithBindError(c, err)
		return
	}

	quote, err := h.quotes.GetQuote(c.Request.Context(), param.ID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// RegisterRoutes registers quote routes on the given router group.
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.GET("/random", h.GetRandomQuote)
	quotes.GET("/:id", h.GetQuote)
}
