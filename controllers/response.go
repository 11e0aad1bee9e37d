package controllers

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{"success": status < http.StatusBadRequest, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail maps a ledger error to its HTTP status. Unknown errors are logged and
// answered generically unless APP_DEBUG is set.
func fail(c *gin.Context, funcName string, input any, err error) {
	switch models.KindOf(err) {
	case models.ErrorKindValidation:
		respond(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"errors": models.FieldsOf(err)})
	case models.ErrorKindBusiness, models.ErrorKindIntegrity:
		respond(c, http.StatusUnprocessableEntity, err.Error(), nil)
	case models.ErrorKindNotFound:
		respond(c, http.StatusNotFound, err.Error(), nil)
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogUnexpected(config.GetLogger(), "controllers", funcName, cid, input, err)
		fields := gin.H{}
		if config.IsDebugMode() {
			fields["error"] = err.Error()
		}
		respond(c, http.StatusInternalServerError, "internal server error", fields)
	}
}

// bindJSON answers 422 when the body does not decode.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		respond(c, http.StatusUnprocessableEntity, "invalid request body", gin.H{"errors": gin.H{"body": err.Error()}})
		return false
	}
	return true
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respond(c, http.StatusUnprocessableEntity, "invalid id", gin.H{"errors": gin.H{"id": "must be a positive integer"}})
		return 0, false
	}
	return id, true
}

type bulkDeleteRequest struct {
	Ids []int `json:"ids" binding:"required,min=1"`
}
