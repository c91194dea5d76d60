package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type errorResp struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Lines   []lineError `json:"lines,omitempty"`
}

type lineError struct {
	Line      int    `json:"line"`
	ProductID string `json:"productId"`
	Error     string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInsufficientStock),
		errors.Is(err, apperr.ErrSelfPurchase),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrAlreadyDelivered),
		errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := errorResp{Error: err.Error()}
	if code == http.StatusInternalServerError {
		log.Printf("httpx: %v", err)
		body.Error = "internal server error"
	}
	var verrs orders.ValidationErrors
	if errors.As(err, &verrs) {
		body.Error = "cart rejected"
		for _, le := range verrs {
			body.Lines = append(body.Lines, lineError{Line: le.Line, ProductID: le.ProductID, Error: le.Err.Error()})
		}
	}
	writeJSON(w, code, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
