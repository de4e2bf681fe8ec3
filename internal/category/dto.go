package category

type CategoryResponse struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type CategoriesResponse struct {
	Categories []CategoryResponse `json:"categories"`
}
