package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nyumbani/smartsearch/internal/model"
)

// UpdateEmbedding handles POST /api/v1/properties/:id/update-embedding
func (h *SearchHandler) UpdateEmbedding(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid listing ID"})
		return
	}

	dims, err := h.searchService.UpdateEmbedding(c.Request.Context(), id)
	if err != nil {
		respondError(c, "update embedding", err)
		return
	}
	c.JSON(http.StatusOK, model.EmbeddingUpdateResponse{Success: true, ListingID: id, Dimensions: dims})
}

// GenerateTags handles POST /api/v1/properties/:id/generate-tags
func (h *SearchHandler) GenerateTags(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid listing ID"})
		return
	}

	tags, err := h.searchService.GenerateTags(c.Request.Context(), id)
	if err != nil {
		respondError(c, "generate tags", err)
		return
	}
	c.JSON(http.StatusOK, model.TagsResponse{Success: true, Tags: tags})
}
