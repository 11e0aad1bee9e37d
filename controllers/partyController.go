package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateCustomer(c *gin.Context) {
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		fail(c, "CreateCustomer", input, err)
		return
	}
	respond(c, http.StatusCreated, "customer created", gin.H{"customer": customer})
}

func UpdateCustomer(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, "UpdateCustomer", input, err)
		return
	}
	respond(c, http.StatusOK, "customer updated", gin.H{"customer": customer})
}

// GetCustomer returns the customer row together with its ledger summary.
func GetCustomer(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	customer, err := models.GetCustomer(ctx, id)
	if err != nil {
		fail(c, "GetCustomer", id, err)
		return
	}
	ledger, err := models.GetCustomerLedger(ctx, id)
	if err != nil {
		fail(c, "GetCustomer", id, err)
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"customer": customer, "ledger": ledger})
}

func DeleteCustomer(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	customer, err := models.DeleteCustomer(c.Request.Context(), id)
	if err != nil {
		fail(c, "DeleteCustomer", id, err)
		return
	}
	respond(c, http.StatusOK, "customer "+customer.Name+" deleted", gin.H{"customer": customer})
}

func ApplyAdvance(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewAdvanceApplication
	if !bindJSON(c, &input) {
		return
	}
	input.CustomerId = id
	payment, err := models.ApplyAdvanceToDebt(c.Request.Context(), &input)
	if err != nil {
		fail(c, "ApplyAdvance", input, err)
		return
	}
	respond(c, http.StatusCreated, payment.Notes, gin.H{"payment": payment})
}

func RefundAdvance(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewAdvanceRefund
	if !bindJSON(c, &input) {
		return
	}
	input.CustomerId = id
	payment, err := models.RefundAdvance(c.Request.Context(), &input)
	if err != nil {
		fail(c, "RefundAdvance", input, err)
		return
	}
	respond(c, http.StatusCreated, payment.Notes, gin.H{"payment": payment})
}

func CreateSupplier(c *gin.Context) {
	var input models.NewSupplier
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := models.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		fail(c, "CreateSupplier", input, err)
		return
	}
	respond(c, http.StatusCreated, "supplier created", gin.H{"supplier": supplier})
}

func UpdateSupplier(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewSupplier
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, "UpdateSupplier", input, err)
		return
	}
	respond(c, http.StatusOK, "supplier updated", gin.H{"supplier": supplier})
}

func GetSupplier(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	supplier, err := models.GetSupplier(ctx, id)
	if err != nil {
		fail(c, "GetSupplier", id, err)
		return
	}
	ledger, err := models.GetSupplierLedger(ctx, id)
	if err != nil {
		fail(c, "GetSupplier", id, err)
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"supplier": supplier, "ledger": ledger})
}

func DeleteSupplier(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	supplier, err := models.DeleteSupplier(c.Request.Context(), id)
	if err != nil {
		fail(c, "DeleteSupplier", id, err)
		return
	}
	respond(c, http.StatusOK, "supplier "+supplier.Name+" deleted", gin.H{"supplier": supplier})
}
