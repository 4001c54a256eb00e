package handler

import (
	"errors"
	"net/http"
	"time"

	"ShareGate/config"
	"ShareGate/internal/dto"
	"ShareGate/internal/repo"
	"ShareGate/internal/service"
	"ShareGate/model"
	"ShareGate/utils"

	"github.com/gin-gonic/gin"
)

// CreateShareLinkHandler creates a share link from a resource descriptor.
func CreateShareLinkHandler(builder *service.Builder, signer *service.Signer, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.CreateShareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		// Create only fails on descriptor validation.
		pending, err := builder.Create(req.Resource)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"status": 422,
				"code":   "sharelink.invalid_resource",
				"title":  "Invalid resource descriptor",
				"detail": err.Error(),
			})
			return
		}

		if req.ExpiresInHours > 0 {
			pending.ExpiresIn(req.ExpiresInHours)
		}
		if req.MaxClicks > 0 {
			pending.MaxClicks(req.MaxClicks)
		}
		pending.WithPassword(req.Password)
		if len(req.Metadata) > 0 {
			pending.Metadata(req.Metadata)
		}
		if req.Burn {
			pending.BurnAfterReading()
		}
		if userID := c.GetString("user_id"); userID != "" {
			pending.CreatedBy(userID)
		}

		link, err := pending.Generate()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create share link failed: " + err.Error()})
			return
		}

		shareURL := "/" + cfg.RoutePrefix + "/" + link.Token
		data := gin.H{
			"token": link.Token,
			"url":   shareURL,
		}
		if cfg.SignedEnabled {
			data["signed_url"] = signer.SignedURL(shareURL, time.Now())
		}
		if link.ExpiresAt != nil {
			data["expires_at"] = link.ExpiresAt.Format(time.RFC3339)
		}
		utils.Success(c, data)
	}
}

// RevokeShareLinkHandler permanently invalidates a link.
func RevokeShareLinkHandler(linkRepo repo.LinkRepository, lifecycle *service.Lifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, ok := findManaged(c, linkRepo)
		if !ok {
			return
		}
		if err := lifecycle.Revoke(link); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, link.PublicPayload())
	}
}

// ExtendShareLinkHandler pushes a link's expiry out by N hours.
func ExtendShareLinkHandler(linkRepo repo.LinkRepository, lifecycle *service.Lifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ExtendShareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		// An absent hours key falls back to the one-hour default; only an
		// explicit non-positive value is rejected.
		hours := 0
		if req.Hours != nil {
			hours = *req.Hours
			if hours <= 0 {
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"status": 422,
					"code":   "sharelink.invalid_hours",
					"title":  "Invalid hours value",
					"detail": "Hours must be a positive integer.",
				})
				return
			}
		}
		link, ok := findManaged(c, linkRepo)
		if !ok {
			return
		}
		if err := lifecycle.Extend(link, hours, nil); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "extend failed: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, link.PublicPayload())
	}
}

// PruneShareLinksHandler deletes expired and stale revoked links.
func PruneShareLinksHandler(lifecycle *service.Lifecycle, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.PruneRequest
		_ = c.ShouldBindJSON(&req)
		days := req.RevokedDays
		if days <= 0 {
			days = cfg.PruneRevokedDays
		}
		result, err := lifecycle.Prune(days)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prune failed: " + err.Error()})
			return
		}
		utils.Success(c, result)
	}
}

func findManaged(c *gin.Context, linkRepo repo.LinkRepository) (*model.ShareLink, bool) {
	token := c.Param("token")
	link, err := linkRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": 404,
				"code":   "sharelink.not_found",
				"title":  "Share link not found",
				"detail": "No link matches this token.",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed: " + err.Error()})
		return nil, false
	}
	return link, true
}
