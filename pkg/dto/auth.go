package dto

type LogoutResponse struct {
	Message string `json:"message"`
}

// WebhookResponse is returned to GitHub for every verified delivery.
type WebhookResponse struct {
	Status     string `json:"status"`
	Event      string `json:"event,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}
