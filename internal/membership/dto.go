package membership

type AddMemberDTO struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

type MembersResponse struct {
	Members []*Member `json:"members"`
}
