package controllers

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateProduct(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		fail(c, "CreateProduct", input, err)
		return
	}
	respond(c, http.StatusCreated, "product created", gin.H{"product": product})
}

// AvailableQuantity answers GET /api/products/:id/available?unit_id=n.
// Without unit_id the quantity is in the base unit.
func AvailableQuantity(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var unitId *int
	if raw := c.Query("unit_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond(c, http.StatusUnprocessableEntity, "invalid unit_id", gin.H{"errors": gin.H{"unit_id": "must be a positive integer"}})
			return
		}
		unitId = &n
	}
	qty, err := models.GetAvailableQuantity(c.Request.Context(), id, unitId)
	if err != nil {
		fail(c, "AvailableQuantity", gin.H{"product_id": id, "unit_id": unitId}, err)
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"product_id": id, "unit_id": unitId, "available": qty})
}
