package handlers

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
)

// parsePageParam reads the 1-based page query parameter.
func parsePageParam(c *echo.Context) int {
	page := 1
	if rawPage := strings.TrimSpace(c.QueryParam("page")); rawPage != "" {
		if parsed, err := strconv.Atoi(rawPage); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return page
}

func totalPages(totalCount int64, perPage int) int {
	if perPage < 1 {
		perPage = 1
	}
	denom := int64(perPage)
	pages := int((totalCount + denom - 1) / denom)
	if pages < 1 {
		pages = 1
	}
	return pages
}

func showingRange(totalCount int64, offset, showingCount int) (int, int) {
	if totalCount <= 0 || showingCount <= 0 {
		return 0, 0
	}
	showingFrom := offset + 1
	showingTo := offset + showingCount
	if int64(showingTo) > totalCount {
		showingTo = int(totalCount)
	}
	return showingFrom, showingTo
}
