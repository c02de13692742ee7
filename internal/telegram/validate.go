package telegram

import (
	"encoding/json"
	"net/http"

	"tgbridge/internal/domain"
)

// ValidateResponse reduces a Bot API HTTP response to a delivery
// verdict.
//
// The Bot API never answers with a redirect; one means the bot token or
// base URL is wrong, so any 3xx is a failure regardless of body. A body
// that is not JSON is a failure carrying the raw status and body for
// diagnosis. Success is exactly: status 200 with an envelope whose "ok"
// is true.
func ValidateResponse(statusCode int, body []byte) domain.Verdict {
	if statusCode >= 300 && statusCode < 400 {
		return domain.Verdict{
			Reason:  domain.ReasonRequestRedirected,
			Message: "request redirected",
			Details: map[string]any{
				"error":    "Unexpected redirect",
				"res_code": statusCode,
			},
		}
	}

	var res apiResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.Verdict{
			Reason:  domain.ReasonUnexpectedFormat,
			Message: "unexpected response format",
			Details: map[string]any{
				"error":    err.Error(),
				"res_code": statusCode,
				"res_body": string(body),
			},
		}
	}

	if statusCode == http.StatusOK && res.OK {
		return domain.Verdict{Success: true}
	}

	message := "bad response from Telegram"
	if res.Description != "" {
		message += ": " + res.Description
	}
	return domain.Verdict{
		Reason:  domain.ReasonBadResponse,
		Message: message,
		Details: map[string]any{
			"error":    res.Description,
			"res_code": statusCode,
		},
	}
}
