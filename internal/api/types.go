package api

// ==================== Deployments ====================

// ListDeploymentsResponse lists stored deployment keys, oldest first
type ListDeploymentsResponse struct {
	Keys   []string `json:"keys"`
	Latest string   `json:"latest"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Stats   bool   `json:"stats"`
}
