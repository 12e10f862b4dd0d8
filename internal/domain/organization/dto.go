package organization

type CreateGymRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

type CreateClientRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
}

type CreateCollaboratorRequest struct {
	GymID  int64  `json:"gym_id" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=admin manager trainer reception"`
}
