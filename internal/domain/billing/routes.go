package billing

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the billing endpoints. auth must resolve the
// organization and user from the token; ownerOnly guards the transitions
// that change what the organization pays.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, auth, ownerOnly gin.HandlerFunc) {
	plans := r.Group("/plans")
	{
		plans.GET("", h.ListPlans)
	}

	billing := r.Group("/billing", auth)
	{
		billing.GET("/subscription", h.GetSubscription)
		billing.GET("/operations", h.ListOperations)
		billing.POST("/proration/preview", h.PreviewProration)

		billing.POST("/upgrade", ownerOnly, h.Upgrade)
		billing.POST("/downgrade", ownerOnly, h.Downgrade)
		billing.POST("/renew", ownerOnly, h.Renew)
		billing.POST("/cancel", ownerOnly, h.Cancel)

		billing.GET("/events", ownerOnly, h.StreamEvents)
	}
}
