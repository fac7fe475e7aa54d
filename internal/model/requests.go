package model

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,min=3,max=100"`
	Role     Role   `json:"role" validate:"omitempty,oneof=student instructor"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateOrderRequest struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}

type VerifyPaymentRequest struct {
	ProviderOrderRef   string `json:"providerOrderRef" validate:"required,max=64,printascii"`
	ProviderPaymentRef string `json:"providerPaymentRef" validate:"required,max=64,printascii"`
	Signature          string `json:"signature" validate:"required,len=64,hexadecimal"`
}

type ProgressRequest struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

type RatingRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=2000"`
}

type CourseInput struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Category    string   `json:"category" validate:"max=100"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	Price       float64  `json:"price" validate:"min=0,max=10000000"`
}

type CourseQuery struct {
	Query    string
	Category string
	PriceMin *float64
	PriceMax *float64
	Sort     string
	Limit    int
}

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"
)
