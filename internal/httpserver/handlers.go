package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"feed_service/internal/domain"
)

// Handler serves the feed read API.
type Handler struct {
	feed              FeedReader
	itemsPerPage      int
	correlationHeader string
	logger            *slog.Logger
}

func NewHandler(feed FeedReader, itemsPerPage int, correlationHeader string, logger *slog.Logger) *Handler {
	return &Handler{
		feed:              feed,
		itemsPerPage:      itemsPerPage,
		correlationHeader: correlationHeader,
		logger:            logger,
	}
}

// GetFeed handles GET /api/feed?index=<n>. The page size is fixed by
// configuration; index defaults to the first page.
func (h *Handler) GetFeed(c *gin.Context) {
	correlationID := strings.TrimSpace(c.GetHeader(h.correlationHeader))
	if correlationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + h.correlationHeader + " header"})
		return
	}

	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return
	}

	logger := h.logger.With("correlation_id", correlationID, "index", index)
	logger.Info("requested feed page")

	posts, err := h.feed.GetFeed(c.Request.Context(), domain.NewPageRequest(index, h.itemsPerPage, correlationID))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			logger.Warn("invalid feed request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		logger.Error("an error occurred while retrieving feed page", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	logger.Info("feed page returned", "posts", len(posts))
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
