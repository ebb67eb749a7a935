package engineers

import "time"

// MaxFieldLength bounds every free-text engineer field.
const MaxFieldLength = 100

// Engineer is a directory entry created by a signed-in account.
type Engineer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Surname       string    `json:"surname"`
	City          string    `json:"city"`
	ContactNumber string    `json:"contactNumber"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CreateInput carries the fields a caller supplies.
type CreateInput struct {
	Name          string `json:"name" validate:"required,max=100"`
	Surname       string `json:"surname" validate:"required,max=100"`
	City          string `json:"city" validate:"required,max=100"`
	ContactNumber string `json:"contactNumber" validate:"required,max=100"`
}
