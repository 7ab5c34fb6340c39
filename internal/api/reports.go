package api

import (
	"net/http" // HTTP status codes

	"retail_pos/internal/apperr" // Error taxonomy
	"retail_pos/internal/report" // Report generator

	"github.com/gin-gonic/gin" // Gin web framework
)

// GenerateReportHandler builds and stores a new sales snapshot
func GenerateReportHandler(gen *report.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := gen.Generate(c.Request.Context())
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Report generated successfully", "report": rep})
	}
}

// LatestReportHandler returns the newest snapshot without recomputing
func LatestReportHandler(gen *report.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := gen.Latest(c.Request.Context())
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": rep})
	}
}
