package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/gin-gonic/gin"
)

func CreatePayment(c *gin.Context) {
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.CreatePayment(c.Request.Context(), &input)
	if err != nil {
		fail(c, "CreatePayment", input, err)
		return
	}
	respond(c, http.StatusCreated, payment.Notes, gin.H{"payment": payment})
}

func GetPayment(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	payment, err := models.GetPayment(c.Request.Context(), id)
	if err != nil {
		fail(c, "GetPayment", id, err)
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"payment": payment})
}

func UpdatePayment(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewPayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.UpdatePayment(c.Request.Context(), id, &input)
	if err != nil {
		fail(c, "UpdatePayment", input, err)
		return
	}
	respond(c, http.StatusOK, payment.Notes, gin.H{"payment": payment})
}

// DeletePayment returns the reversal so callers can see which invoices kept
// their share of a distributed payment.
func DeletePayment(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	payment, reversal, err := models.DeletePayment(c.Request.Context(), id)
	if err != nil {
		fail(c, "DeletePayment", id, err)
		return
	}
	message := "payment " + utils.DereferencePtr(payment.ReferenceNumber) + " deleted"
	if len(reversal.InvoicesKept) > 0 {
		message += "; invoice remaining amounts were not restored"
	}
	respond(c, http.StatusOK, message, gin.H{"payment": payment, "reversal": reversal})
}
