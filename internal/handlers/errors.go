package handlers

import (
	"net/http"

	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/service"

	"go.uber.org/zap"
)

const (
	CodeInternal             = "INTERNAL_ERROR"
	CodeRouteNotFound        = "ROUTE_NOT_FOUND"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
)

func handleBusinessError(w http.ResponseWriter, r *http.Request, err error) bool {
	businessErr, ok := service.AsBusinessError(err)
	if !ok {
		return false
	}
	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("error_code", businessErr.Code),
		zap.Any("details", businessErr.Details),
		zap.Int("http_status", statusCode))

	responseWithError(w, r, statusCode, businessErr.Code, businessErr.Message, businessErr.Details)
	return true
}

// handleError: бизнес-ошибки уходят клиенту как есть, всё остальное скрывается за 500.
func handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, r, err) {
		return
	}

	logger.Error("HTTP: Ошибка Service", err,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("operation", operation),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, r, http.StatusInternalServerError, CodeInternal, "Внутренняя ошибка сервера", nil)
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	responseWithError(w, r, http.StatusNotFound, CodeRouteNotFound, "Маршрут не найден", nil)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	responseWithError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Метод не поддерживается", nil)
}
