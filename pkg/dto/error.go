package dto

type ErrorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Required []string `json:"required,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}
