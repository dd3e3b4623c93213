package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tartansystems/tartan_backend/utils"
)

const CompanyHeader = "X-Company"

// CompanyMiddleware reads the working company from X-Company. An operator token tied to a
// single company may only work on that company unless it is an admin token.
func CompanyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(CompanyHeader))
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Company header is required"})
			c.Abort()
			return
		}
		company, err := strconv.Atoi(raw)
		if err != nil || company <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Company must be a positive company number"})
			c.Abort()
			return
		}

		isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
		if claim := CtxValue(c.Request.Context()); claim != nil && !isAdmin && claim.Company != 0 && claim.Company != company {
			c.JSON(http.StatusForbidden, gin.H{"error": "operator may not work on this company"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(utils.SetCompanyIdInContext(c.Request.Context(), company))
		c.Next()
	}
}
