package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/models"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")

	customers := api.Group("/customers")
	customers.POST("", CreateCustomer)
	customers.GET("/:id", GetCustomer)
	customers.PUT("/:id", UpdateCustomer)
	customers.DELETE("/:id", DeleteCustomer)
	customers.POST("/:id/apply-advance", ApplyAdvance)
	customers.POST("/:id/refund-advance", RefundAdvance)

	suppliers := api.Group("/suppliers")
	suppliers.POST("", CreateSupplier)
	suppliers.GET("/:id", GetSupplier)
	suppliers.PUT("/:id", UpdateSupplier)
	suppliers.DELETE("/:id", DeleteSupplier)

	products := api.Group("/products")
	products.POST("", CreateProduct)
	products.GET("/:id/available", AvailableQuantity)

	sales := api.Group("/sales")
	sales.POST("", CreateSale)
	sales.POST("/bulk-delete", BulkDeleteSales)
	sales.GET("/:id", GetSale)
	sales.PUT("/:id", UpdateSale)
	sales.DELETE("/:id", DeleteSale)

	purchases := api.Group("/purchases")
	purchases.POST("", CreatePurchase)
	purchases.POST("/bulk-delete", BulkDeletePurchases)
	purchases.GET("/:id", GetPurchase)
	purchases.PUT("/:id", UpdatePurchase)
	purchases.DELETE("/:id", DeletePurchase)

	payments := api.Group("/payments")
	payments.POST("", CreatePayment)
	payments.GET("/:id", GetPayment)
	payments.PUT("/:id", UpdatePayment)
	payments.DELETE("/:id", DeletePayment)

	api.GET("/ledger/reconcile", ReconcileLedger)
}

// ReconcileLedger is a read-only drift check; nothing is stored.
func ReconcileLedger(c *gin.Context) {
	reports, cid, err := models.ReconcileBalances(c.Request.Context(), false)
	if err != nil {
		fail(c, "ReconcileLedger", nil, err)
		return
	}
	message := "ledger consistent"
	if len(reports) > 0 {
		message = "ledger drift found"
	}
	respond(c, http.StatusOK, message, gin.H{"reports": reports, "correlation_id": cid})
}

func NotFound(c *gin.Context) {
	respond(c, http.StatusNotFound, "route not found", nil)
}
