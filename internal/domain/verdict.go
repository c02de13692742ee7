package domain

// Verdict reason codes for failed upstream requests.
const (
	ReasonRequestRedirected = "request_redirected"
	ReasonUnexpectedFormat  = "unexpected_response_format"
	ReasonBadResponse       = "bad_response"
)

// Verdict is the success/failure reduction of an upstream API response.
type Verdict struct {
	Success bool
	Reason  string
	Message string
	Details map[string]any
}
