package req

// LoginReq is the console's sign-in form. Browsers post it as a form, scripts
// as JSON.
type LoginReq struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RefreshReq is the dev API's token/refresh/ body.
type RefreshReq struct {
	Refresh string `json:"refresh" binding:"required"`
}

// ListQuery narrows a proxied collection listing.
type ListQuery struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
}
