package project

type CreateProjectDTO struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type ProjectsResponse struct {
	Projects []*Project `json:"projects"`
}
