package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"

	"admission-guard/middleware/ratelimit/domain"
)

// RateLimitInfo é a projeção JSON de uma domain.Decision, embutida nas
// respostas do endpoint protegido e do 429.
type RateLimitInfo struct {
	Allowed           bool  `json:"allowed"`
	RequestsMade      int   `json:"requests_made"`
	RequestsRemaining int   `json:"requests_remaining"`
	ResetTime         int64 `json:"reset_time"`
	// RetryAfter em segundos inteiros; null quando permitido.
	RetryAfter *int `json:"retry_after"`
}

func NewRateLimitInfo(dec domain.Decision) RateLimitInfo {
	info := RateLimitInfo{
		Allowed:           dec.Allowed,
		RequestsMade:      dec.RequestsMade,
		RequestsRemaining: dec.RequestsRemaining,
		ResetTime:         dec.ResetTime.Unix(),
	}
	if !dec.Allowed {
		secs := dec.RetryAfterSeconds()
		info.RetryAfter = &secs
	}
	return info
}

type deniedBody struct {
	Error         string        `json:"error"`
	Message       string        `json:"message"`
	RateLimitInfo RateLimitInfo `json:"rate_limit_info"`
}

func writeDenied(w http.ResponseWriter, status int, dec domain.Decision) {
	body := deniedBody{
		Error:         "Rate limit exceeded",
		Message:       fmt.Sprintf("Too many requests. Try again in %d seconds.", dec.RetryAfterSeconds()),
		RateLimitInfo: NewRateLimitInfo(dec),
	}
	WriteJSON(w, status, body)
}

// WriteJSON serializa `v` com o status dado. Erro de encode é ignorado:
// nesse ponto o status já foi escrito e não há o que responder ao cliente.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
