package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nyumbani/smartsearch/internal/location"
)

// LocationResolver is the part of the location resolver the HTTP layer needs
type LocationResolver interface {
	Best(query string) (location.Match, bool)
	GetAllMatches(query string) []location.Match
}

// LocationHandler exposes the location resolver
type LocationHandler struct {
	resolver LocationResolver
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(resolver LocationResolver) *LocationHandler {
	return &LocationHandler{resolver: resolver}
}

// Match handles GET /api/v1/locations/match?q=
func (h *LocationHandler) Match(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Query parameter q is required"})
		return
	}

	matches := h.resolver.GetAllMatches(query)
	if matches == nil {
		matches = []location.Match{}
	}

	var best *location.Match
	if m, ok := h.resolver.Best(query); ok {
		best = &m
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"query":     query,
		"bestMatch": best,
		"matches":   matches,
	})
}
