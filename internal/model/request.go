package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UpdateUserRequest struct {
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type ContactStatusRequest struct {
	Status string `json:"status"`
}

type SubscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type UnsubscribeRequest struct {
	Email string `json:"email"`
}

type AnalyticsEventRequest struct {
	Type      string         `json:"type"`
	Path      string         `json:"path"`
	Referrer  string         `json:"referrer"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata"`
}

type GenerateRequest struct {
	Kind  string `json:"kind"`
	Topic string `json:"topic"`
	Tone  string `json:"tone"`
}
