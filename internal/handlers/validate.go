package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"taskManager/internal/models/task"
	"taskManager/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

var errUnsupportedMediaType = errors.New("unsupported media type")

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

// decodeJSON читает тело запроса. Ошибки разбора превращаются в ошибки валидации
// с именем поля, где это возможно. Неизвестные поля игнорируются.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if !checkContentType(r, "application/json") {
		return errUnsupportedMediaType
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return err
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return service.NewValidationError(field, service.ReasonInvalidValue)
	case errors.Is(err, io.EOF):
		return service.NewValidationError("body", service.ReasonRequired)
	default:
		return service.NewValidationError("body", service.ReasonMalformed)
	}
}

// writeDecodeError отвечает на ошибку decodeJSON.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errUnsupportedMediaType):
		responseWithError(w, r, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType,
			"Content-Type должен быть application/json", nil)
	case errors.As(err, &tooLarge):
		responseWithError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
			"Слишком большое тело запроса", nil)
	default:
		handleError(w, r, err, "decode_body")
	}
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, service.NewValidationError("id", service.ReasonMalformed)
	}
	return id, nil
}

func parseListQuery(r *http.Request) (service.ListTasksInput, error) {
	q := r.URL.Query()
	in := service.ListTasksInput{}

	if q.Has("status") {
		s := task.Status(q.Get("status"))
		in.Status = &s
	}
	if q.Has("priority") {
		p := task.Priority(q.Get("priority"))
		in.Priority = &p
	}

	for _, param := range []struct {
		name string
		dst  **int
	}{
		{"skip", &in.Skip},
		{"limit", &in.Limit},
	} {
		if !q.Has(param.name) {
			continue
		}
		v, err := strconv.Atoi(q.Get(param.name))
		if err != nil {
			return service.ListTasksInput{}, service.NewValidationError(param.name, service.ReasonMalformed)
		}
		*param.dst = &v
	}

	return in, nil
}
