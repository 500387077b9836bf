package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nyumbani/smartsearch/internal/model"
	"github.com/nyumbani/smartsearch/internal/service"
)

// Searcher is the search service as seen by the HTTP layer
type Searcher interface {
	SmartSearch(ctx context.Context, req *model.SmartSearchRequest) (*model.SmartSearchResponse, error)
	SmartSearchStream(ctx context.Context, req *model.SmartSearchRequest, callback service.SearchEventCallback) (*model.SmartSearchResponse, error)
	Similar(ctx context.Context, req *model.SimilarRequest) ([]model.RankedListing, error)
	Recommend(ctx context.Context, req *model.RecommendationRequest) ([]model.RankedListing, error)
	UpdateEmbedding(ctx context.Context, id string) (int, error)
	GenerateTags(ctx context.Context, id string) ([]string, error)
}

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	searchService Searcher
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService Searcher) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SmartSearch handles POST /api/v1/properties/smart-search
func (h *SearchHandler) SmartSearch(c *gin.Context) {
	var req model.SmartSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.searchService.SmartSearch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "smart search", err)
		return
	}

	if len(response.Data) == 0 {
		response.Message = "No properties matched your search. Try different keywords or a wider area."
	}
	c.JSON(http.StatusOK, response)
}

// SmartSearchStream handles POST /api/v1/properties/smart-search/stream - SSE streaming search
func (h *SearchHandler) SmartSearchStream(c *gin.Context) {
	var req model.SmartSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	response, err := h.searchService.SmartSearchStream(c.Request.Context(), &req, func(event string, data any) error {
		if err := sendSSE(c, event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		_, msg := logError(c, "smart search stream", err)
		_ = sendSSE(c, "error", gin.H{"error": msg})
		flusher.Flush()
		return
	}

	_ = sendSSE(c, "results", response)
	_ = sendSSE(c, "done", nil)
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) error {
	payload := []byte("{}")
	if data != nil {
		var err error
		if payload, err = json.Marshal(data); err != nil {
			_, _ = fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return fmt.Errorf("marshal %s event: %w", event, err)
		}
	}
	_, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// Similar handles POST /api/v1/properties/similar
func (h *SearchHandler) Similar(c *gin.Context) {
	var req model.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	results, err := h.searchService.Similar(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "similar", err)
		return
	}
	c.JSON(http.StatusOK, model.ListingsResponse{Success: true, Data: results, Count: len(results)})
}

// Recommendations handles POST /api/v1/properties/recommendations
func (h *SearchHandler) Recommendations(c *gin.Context) {
	var req model.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	results, err := h.searchService.Recommend(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "recommendations", err)
		return
	}
	c.JSON(http.StatusOK, model.ListingsResponse{Success: true, Data: results, Count: len(results)})
}
