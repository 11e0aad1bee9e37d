package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateSale(c *gin.Context) {
	var input models.NewSale
	if !bindJSON(c, &input) {
		return
	}
	sale, err := models.CreateSale(c.Request.Context(), &input)
	if err != nil {
		fail(c, "CreateSale", input, err)
		return
	}
	respond(c, http.StatusCreated, "sale "+sale.InvoiceNumber+" created", gin.H{"sale": sale})
}

func GetSale(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	sale, err := models.GetSale(c.Request.Context(), id)
	if err != nil {
		fail(c, "GetSale", id, err)
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"sale": sale})
}

func UpdateSale(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewSale
	if !bindJSON(c, &input) {
		return
	}
	sale, err := models.UpdateSale(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, "UpdateSale", input, err)
		return
	}
	respond(c, http.StatusOK, "sale "+sale.InvoiceNumber+" updated", gin.H{"sale": sale})
}

func DeleteSale(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	sale, err := models.DeleteSale(c.Request.Context(), id)
	if err != nil {
		fail(c, "DeleteSale", id, err)
		return
	}
	respond(c, http.StatusOK, "sale "+sale.InvoiceNumber+" deleted", gin.H{"sale": sale})
}

func BulkDeleteSales(c *gin.Context) {
	var input bulkDeleteRequest
	if !bindJSON(c, &input) {
		return
	}
	summary, err := models.BulkDeleteSales(c.Request.Context(), input.Ids)
	if err != nil {
		fail(c, "BulkDeleteSales", input, err)
		return
	}
	respond(c, http.StatusOK, summary.Message(), gin.H{"summary": summary})
}

func CreatePurchase(c *gin.Context) {
	var input models.NewPurchase
	if !bindJSON(c, &input) {
		return
	}
	purchase, err := models.CreatePurchase(c.Request.Context(), &input)
	if err != nil {
		fail(c, "CreatePurchase", input, err)
		return
	}
	respond(c, http.StatusCreated, "purchase "+purchase.InvoiceNumber+" created", gin.H{"purchase": purchase})
}

func GetPurchase(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	purchase, err := models.GetPurchase(c.Request.Context(), id)
	if err != nil {
		fail(c, "GetPurchase", id, err)
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"purchase": purchase})
}

func UpdatePurchase(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewPurchase
	if !bindJSON(c, &input) {
		return
	}
	purchase, err := models.UpdatePurchase(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, "UpdatePurchase", input, err)
		return
	}
	respond(c, http.StatusOK, "purchase "+purchase.InvoiceNumber+" updated", gin.H{"purchase": purchase})
}

func DeletePurchase(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	purchase, err := models.DeletePurchase(c.Request.Context(), id)
	if err != nil {
		fail(c, "DeletePurchase", id, err)
		return
	}
	respond(c, http.StatusOK, "purchase "+purchase.InvoiceNumber+" deleted", gin.H{"purchase": purchase})
}

func BulkDeletePurchases(c *gin.Context) {
	var input bulkDeleteRequest
	if !bindJSON(c, &input) {
		return
	}
	summary, err := models.BulkDeletePurchases(c.Request.Context(), input.Ids)
	if err != nil {
		fail(c, "BulkDeletePurchases", input, err)
		return
	}
	respond(c, http.StatusOK, summary.Message(), gin.H{"summary": summary})
}
