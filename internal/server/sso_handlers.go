package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orgpulse/orgpulse/internal/models"
)

// SSOMethodDetail is a single sign-on method as shown on the login page
type SSOMethodDetail struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// listSSOMethods returns the enabled SSO methods
func (s *Server) listSSOMethods(c *gin.Context) {
	methods, err := models.EnabledSSOMethods(s.db)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list SSO methods")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	out := make([]SSOMethodDetail, 0, len(methods))
	for _, m := range methods {
		out = append(out, SSOMethodDetail{Name: m.Name, URL: m.URL})
	}

	c.JSON(http.StatusOK, gin.H{"methods": out})
}
