package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/middlewares"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/models/reports"
	"github.com/tartansystems/tartan_backend/utils"
	"github.com/tartansystems/tartan_backend/workflow"
)

type loginRequest struct {
	Operator string `json:"operator" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		operator, err := models.AuthenticateOperator(c.Request.Context(), config.GetDB(), req.Operator, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		token, err := utils.JwtGenerate(operator.UsrName, operator.UsrFnam, operator.UsrCoy, operator.IsAdmin())
		if err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "loginHandler", "JwtGenerate", operator.UsrName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":    token,
			"operator": operator.UsrName,
			"name":     operator.UsrFnam,
			"company":  operator.UsrCoy,
		})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, _ := utils.GetTokenFromContext(ctx)
		operator, _ := utils.GetOperatorIdFromContext(ctx)
		expiresAt := time.Now().Add(utils.TokenLifespan())
		if claim := middlewares.CtxValue(ctx); claim != nil && claim.ExpiresAt > 0 {
			expiresAt = time.Unix(claim.ExpiresAt, 0)
		}

		if err := models.RevokeToken(ctx, config.GetDB(), token, operator, expiresAt); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "logoutHandler", "RevokeToken", operator, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not revoke token"})
			return
		}
		if ttl := time.Until(expiresAt); ttl > 0 {
			if err := config.SetRedisValue(middlewares.RevokedTokenKey(token), "1", ttl); err != nil {
				config.LogError(config.GetLogger(), "handlers.go", "logoutHandler", "SetRedisValue", operator, err)
			}
		}
		c.Status(http.StatusNoContent)
	}
}

type keyChangeBody struct {
	workflow.KeyChangeRequest
	Mode string `json:"mode"`
}

func keyChangePreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body keyChangeBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		mode := models.KeyChangeMode(strings.ToLower(body.Mode))
		if mode != models.ModeRenumber && mode != models.ModeMerge {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be renumber or merge"})
			return
		}
		result, err := workflow.PreviewKeyChange(c.Request.Context(), config.GetDB(), body.KeyChangeRequest, mode)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func keyChangeHandler(mode models.KeyChangeMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workflow.KeyChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		result, err := runInSession(ctx, func(s *workflow.Session) (interface{}, error) {
			if mode == models.ModeMerge {
				return workflow.MergeEntity(ctx, s, req)
			}
			return workflow.RenumberEntity(ctx, s, req)
		})
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func batchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var batch workflow.JournalBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		result, err := runInSession(ctx, func(s *workflow.Session) (interface{}, error) {
			return workflow.PostJournalBatch(ctx, s, batch)
		})
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// runInSession commits when fn succeeds. A request is its own confirmation.
func runInSession(ctx context.Context, fn func(s *workflow.Session) (interface{}, error)) (interface{}, error) {
	s, err := workflow.BeginSession(ctx, config.GetDB())
	if err != nil {
		return nil, err
	}
	result, err := fn(s)
	if err != nil {
		if !s.Closed() {
			_ = s.Rollback()
		}
		return nil, err
	}
	if err := s.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func reconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := strconv.Atoi(c.Query("period"))
		if err != nil || period <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period (YYYYMM) is required"})
			return
		}
		ctx := c.Request.Context()
		company, _ := utils.GetCompanyIdFromContext(ctx)
		result, err := workflow.ReconcileControlAccount(ctx, config.GetDB(), company, c.Param("ledger"), period)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func changeLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		company, _ := utils.GetCompanyIdFromContext(ctx)
		filter := models.ChangeLogFilter{Company: company, Table: c.Query("table")}
		if v := c.Query("from"); v != "" {
			from, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
				return
			}
			filter.From = &from
		}
		if v := c.Query("to"); v != "" {
			to, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
				return
			}
			end := to.Add(24*time.Hour - time.Nanosecond)
			filter.To = &end
		}

		records, err := reports.GetChangeLogReport(ctx, config.GetDB(), filter)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		if c.Query("format") != "xlsx" {
			c.JSON(http.StatusOK, records)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=chglog_%03d.xlsx", company))
		if err := reports.WriteChangeLogXlsx(c.Writer, records); err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
		}
	}
}

func errorStatus(err error) int {
	var dup *utils.DuplicateKeyError
	switch {
	case errors.As(err, &dup):
		return http.StatusConflict
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
