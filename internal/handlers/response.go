package handlers

import (
	"encoding/json"
	"net/http"

	"taskManager/internal/logger"
	"taskManager/internal/middleware"
)

type Payload struct {
	Key     string
	Payload any
}

func toPayload(key string, pl any) Payload {
	return Payload{Key: key, Payload: pl}
}

func toJSON(storage map[string]any, payload Payload) {
	storage[payload.Key] = payload.Payload
}

func responseWithJSON(w http.ResponseWriter, code int, payload ...Payload) {
	storage := make(map[string]any, len(payload))
	for _, pl := range payload {
		toJSON(storage, pl)
	}
	writeJSON(w, code, storage)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("HTTP: Ошибка записи ответа", err)
	}
}

// responseWithError пишет тело ошибки единого формата.
func responseWithError(w http.ResponseWriter, r *http.Request, code int, errCode, message string, details map[string]any) {
	payload := []Payload{
		toPayload("error", errCode),
		toPayload("message", message),
		toPayload("path", r.URL.Path),
		toPayload("request_id", middleware.GetRequestID(r.Context())),
	}
	if details != nil {
		payload = append(payload, toPayload("details", details))
	}
	responseWithJSON(w, code, payload...)
}
