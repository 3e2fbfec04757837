package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sanskarlajurkar07/memeverse/internal/feed"
	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/projection"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultTopLimit = 10

type pageResponsePayload struct {
	Items    []memes.Item    `json:"items"`
	HasMore  bool            `json:"hasMore"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Status   feed.QueryState `json:"status"`
}

type itemsResponsePayload struct {
	Items  []memes.Item    `json:"items"`
	Status feed.QueryState `json:"status"`
}

type itemResponsePayload struct {
	Item  memes.Item `json:"item"`
	Liked bool       `json:"liked"`
}

type likeResponsePayload struct {
	ItemID string `json:"itemId"`
	Liked  bool   `json:"liked"`
}

type commentRequestPayload struct {
	Text string `json:"text"`
}

type uploadRequestPayload struct {
	Title   string `json:"name"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

func (h *httpHandler) handleListMemes(c *gin.Context) {
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	if !waitFor(c.Request.Context(), session.LoadCatalog(context.WithoutCancel(c.Request.Context()))) {
		return
	}

	query := projection.Query{
		Filter:   c.Query("filter"),
		Search:   c.Query("q"),
		Sort:     projection.ParseSortKey(c.Query("sort")),
		PageSize: queryInt(c, "page_size", h.pageSize),
		Page:     queryInt(c, "page", 1),
	}
	page := projection.Project(session.AllItems(), query)
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = projection.DefaultPageSize
	}
	pageNumber := query.Page
	if pageNumber < 1 {
		pageNumber = 1
	}
	c.JSON(http.StatusOK, pageResponsePayload{
		Items:    page.Items,
		HasMore:  page.HasMore,
		Total:    page.Total,
		Page:     pageNumber,
		PageSize: pageSize,
		Status:   session.CatalogStatus(),
	})
}

func (h *httpHandler) handleReload(c *gin.Context) {
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	if !waitFor(c.Request.Context(), session.ReloadCatalog(context.WithoutCancel(c.Request.Context()))) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": session.CatalogStatus()})
}

func (h *httpHandler) handleTrending(c *gin.Context) {
	session, ok := h.loadedSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, itemsResponsePayload{Items: session.TrendingItems(), Status: session.CatalogStatus()})
}

func (h *httpHandler) handleTop(c *gin.Context) {
	session, ok := h.loadedSession(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", defaultTopLimit)
	c.JSON(http.StatusOK, itemsResponsePayload{
		Items:  projection.TopItems(session.AllItems(), limit),
		Status: session.CatalogStatus(),
	})
}

func (h *httpHandler) handleLiked(c *gin.Context) {
	session, ok := h.loadedSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, itemsResponsePayload{
		Items:  session.LikedItems(c.Request.Context()),
		Status: session.CatalogStatus(),
	})
}

func (h *httpHandler) handleUploads(c *gin.Context) {
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, itemsResponsePayload{Items: session.UserUploads(), Status: session.CatalogStatus()})
}

func (h *httpHandler) handleItem(c *gin.Context) {
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	itemID := c.Param("id")
	done, err := session.LoadItem(context.WithoutCancel(c.Request.Context()), itemID)
	if err != nil {
		h.respondError(c, "item load rejected", err)
		return
	}
	if !waitFor(c.Request.Context(), done) {
		return
	}

	state := session.DetailStatus()
	switch state.Status {
	case feed.StatusSucceeded:
		if item, found := session.CurrentItem(); found && item.ID == strings.TrimSpace(itemID) {
			c.JSON(http.StatusOK, itemResponsePayload{Item: item, Liked: session.IsLiked(c.Request.Context(), item.ID)})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "detail_superseded"})
	case feed.StatusFailed:
		if state.NotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": state.Error})
			return
		}
		h.logger.Warn("item load failed", zap.String("item_id", itemID), zap.String("reason", state.Error))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_unavailable", "message": state.Error})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "detail_superseded"})
	}
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(c.Param("id"))
	liked, err := session.ToggleLike(c.Request.Context(), itemID)
	if err != nil {
		h.respondError(c, "like rejected", err)
		return
	}
	c.JSON(http.StatusOK, likeResponsePayload{ItemID: itemID, Liked: liked})
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	var request commentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	author, ok := h.author(c)
	if !ok {
		return
	}
	comment, err := memes.NewComment(h.ids, h.clock, author, request.Text)
	if err != nil {
		h.respondError(c, "comment rejected", err)
		return
	}
	if err := session.AddComment(c.Request.Context(), c.Param("id"), comment); err != nil {
		h.respondError(c, "comment rejected", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleUpload(c *gin.Context) {
	var request uploadRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	session, ok := h.feedSession(c)
	if !ok {
		return
	}
	owner, ok := h.author(c)
	if !ok {
		return
	}
	item, err := memes.NewUpload(h.ids, h.clock, owner, memes.UploadInput{
		Title:    request.Title,
		MediaURL: request.URL,
		Caption:  request.Caption,
	})
	if err != nil {
		h.respondError(c, "upload rejected", err)
		return
	}
	if err := session.AddUpload(c.Request.Context(), item); err != nil {
		h.respondError(c, "upload rejected", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// loadedSession resolves the feed session and waits for its catalog to settle.
func (h *httpHandler) loadedSession(c *gin.Context) (*feed.Session, bool) {
	session, ok := h.feedSession(c)
	if !ok {
		return nil, false
	}
	if !waitFor(c.Request.Context(), session.LoadCatalog(context.WithoutCancel(c.Request.Context()))) {
		return nil, false
	}
	return session, true
}

// author returns the current profile snapshot of the authenticated user.
func (h *httpHandler) author(c *gin.Context) (memes.Author, bool) {
	user, err := h.users.Lookup(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, "author lookup failed", err)
		return memes.Author{}, false
	}
	return user.Snapshot(), true
}

// waitFor blocks until done closes or the request ends, reporting whether done closed.
func waitFor(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
