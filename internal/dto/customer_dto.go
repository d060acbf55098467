package dto

type CreateCustomerRequest struct {
	TypeCode string `json:"type_code" validate:"required,oneof=V E J G P"`
	Number   string `json:"number"    validate:"required,max=20"`
	Name     string `json:"name"      validate:"required,min=2,max=120"`
	Email    string `json:"email"     validate:"omitempty,email"`
	Phone    string `json:"phone"     validate:"max=20"`
	Address  string `json:"address"   validate:"max=250"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name"    validate:"omitempty,min=2,max=120"`
	Email   *string `json:"email"   validate:"omitempty,email"`
	Phone   *string `json:"phone"   validate:"omitempty,max=20"`
	Address *string `json:"address" validate:"omitempty,max=250"`
}

type CustomerFilter struct {
	Search string `form:"q"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type CustomerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type CustomerListResponse struct {
	Data  []CustomerResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
