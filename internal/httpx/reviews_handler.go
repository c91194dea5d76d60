package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/reviews"
	"github.com/go-chi/chi/v5"
)

type ReviewsHandler struct {
	Engine  *reviews.Engine
	Timeout time.Duration
}

func (h *ReviewsHandler) RegisterPublic(r chi.Router) {
	r.Get("/products/reviews", h.listReviews)
}

func (h *ReviewsHandler) Register(r chi.Router) {
	r.Put("/products/review", h.submitReview)
}

func (h *ReviewsHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

type ReviewReq struct {
	ProductID string `json:"productId"`
	OrderID   string `json:"orderId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (req ReviewReq) validate() string {
	switch {
	case req.ProductID == "":
		return "productId is required"
	case req.Rating < 1 || req.Rating > 5:
		return "rating must be between 1 and 5"
	case strings.TrimSpace(req.Comment) == "":
		return "comment is required"
	}
	return ""
}

func (h *ReviewsHandler) submitReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewReq
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if msg := req.validate(); msg != "" {
		badRequest(w, msg)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	a := actor(r)
	p, err := h.Engine.Submit(ctx, reviews.Submission{
		ProductID: req.ProductID,
		BuyerID:   a.ID,
		BuyerName: a.Name,
		OrderID:   req.OrderID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success      bool    `json:"success"`
		Ratings      float64 `json:"ratings"`
		NumOfReviews int     `json:"numOfReviews"`
	}{true, p.Ratings, p.NumOfReviews})
}

func (h *ReviewsHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		badRequest(w, "id is required")
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Engine.Reviews(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		Reviews any  `json:"reviews"`
	}{true, list})
}
