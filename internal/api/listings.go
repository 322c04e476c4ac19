package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bookxchange/bookxchange/internal/database"
	"github.com/bookxchange/bookxchange/internal/models"
)

// ListingHandler handles book listing routes
type ListingHandler struct {
	DB database.DBInterface
}

// NewListingHandler creates a new listing handler
func NewListingHandler(db database.DBInterface) *ListingHandler {
	return &ListingHandler{DB: db}
}

// CreateListing handles the creation of a new book listing
func (h *ListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.DB.CreateBookListing(userID, &req)
	if err != nil {
		log.Error("create listing: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create listing"})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// GetListings returns listings matching the query filters. Status
// defaults to active here, not in the store, so other callers can see
// sold and deleted records.
func (h *ListingHandler) GetListings(c *gin.Context) {
	// An absent or empty status both mean active; seeing sold and
	// deleted records requires asking for them explicitly.
	status := c.Query("status")
	if status == "" {
		status = models.ListingStatusActive
	}

	filters := database.ListingFilters{
		Category:    c.Query("category"),
		Condition:   c.Query("condition"),
		ListingType: c.Query("listingType"),
		SearchTerm:  c.Query("search"),
		Status:      status,
	}

	if userIDStr := c.Query("userId"); userIDStr != "" {
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid userId"})
			return
		}
		filters.UserID = &userID
	}

	listings, err := h.DB.GetBookListings(filters)
	if err != nil {
		log.Error("get listings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings"})
		return
	}

	c.JSON(http.StatusOK, listings)
}

// GetListing returns a single listing by id
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, err := h.DB.GetBookListing(id)
	if err == database.ErrListingNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	if err != nil {
		log.Error("get listing %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listing"})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// UpdateListing applies a partial update. Only the owner may update;
// the existence check runs before the ownership check.
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, err := h.DB.GetBookListing(id)
	if err == database.ErrListingNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	if err != nil {
		log.Error("update listing %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listing"})
		return
	}

	if listing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to update this listing"})
		return
	}

	var update models.ListingUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.DB.UpdateBookListing(id, &update)
	if err != nil {
		log.Error("update listing %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update listing"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteListing soft-deletes a listing. Only the owner may delete.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	listing, err := h.DB.GetBookListing(id)
	if err == database.ErrListingNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	if err != nil {
		log.Error("delete listing %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listing"})
		return
	}

	if listing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to delete this listing"})
		return
	}

	if _, err := h.DB.DeleteBookListing(id); err != nil {
		log.Error("delete listing %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete listing"})
		return
	}

	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
