package organization

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the organization endpoints. auth must resolve the
// organization from the token; adminOnly guards resource mutation.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, auth, adminOnly gin.HandlerFunc) {
	org := r.Group("/organization", auth)
	{
		org.GET("", h.Get)
		org.GET("/usage", h.Usage)

		org.GET("/gyms", h.ListGyms)
		org.POST("/gyms", adminOnly, h.CreateGym)
		org.DELETE("/gyms/:gym_id", adminOnly, h.DeactivateGym)

		org.GET("/clients", h.ListClients)
		org.POST("/gyms/:gym_id/clients", adminOnly, h.CreateClient)

		org.GET("/collaborators", h.ListCollaborators)
		org.POST("/collaborators", adminOnly, h.CreateCollaborator)
	}
}
