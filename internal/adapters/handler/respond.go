package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/adapters/middleware"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/services"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error class to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Unclassified errors are logged and
// hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logger.WithError(err).WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Error("request failed")
		msg = "internal server error"
	case http.StatusUnauthorized:
		msg = "unauthorized"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", domain.ErrValidation, strings.Join(fields, ", "))
		}
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}

// caller returns the authenticated user bound by the auth middleware.
func caller(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return nil, false
	}
	return p.User, true
}

const maxUploadBytes = 10 << 20

// readUpload pulls the "file" part out of a multipart request.
func readUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("%w: invalid multipart form: %v", domain.ErrValidation, err)
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return nil, "", fmt.Errorf("%w: file is required", domain.ErrValidation)
	}
	u, err := readPart(headers[0])
	if err != nil {
		return nil, "", err
	}
	return u.Data, u.ContentType, nil
}

// readUploads collects every "files" part, pairing each with the caption
// field at the same position when one is sent.
func readUploads(r *http.Request) ([]services.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: invalid multipart form: %v", domain.ErrValidation, err)
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: files are required", domain.ErrValidation)
	}
	captions := r.MultipartForm.Value["captions"]
	out := make([]services.Upload, 0, len(headers))
	for i, h := range headers {
		u, err := readPart(h)
		if err != nil {
			return nil, err
		}
		if i < len(captions) {
			u.Caption = captions[i]
		}
		out = append(out, u)
	}
	return out, nil
}

func readPart(header *multipart.FileHeader) (services.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return services.Upload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return services.Upload{}, err
	}
	if len(data) > maxUploadBytes {
		return services.Upload{}, fmt.Errorf("%w: file too large", domain.ErrValidation)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return services.Upload{Data: data, ContentType: contentType}, nil
}
