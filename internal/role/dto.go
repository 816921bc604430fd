package role

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}

type SetDefaultDTO struct {
	Name string `json:"name"`
}
