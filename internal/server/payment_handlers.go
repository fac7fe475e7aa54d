package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
)

func (srv *Server) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}

	var req model.CreateOrderRequest
	if !srv.decode(w, r, &req) {
		return
	}

	session, err := srv.services.Checkout.StartCheckout(r.Context(), user.ID, req.CourseID)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Success bool `json:"success"`
		model.CheckoutSession
	}{true, session})
}

func (srv *Server) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}

	var req model.VerifyPaymentRequest
	if !srv.decode(w, r, &req) {
		return
	}

	cb := model.PaymentCallback{
		ProviderOrderRef:   req.ProviderOrderRef,
		ProviderPaymentRef: req.ProviderPaymentRef,
		Signature:          req.Signature,
	}
	// admins may relay a confirmation on a student's behalf
	if !user.IsAdmin() {
		cb.StudentID = user.ID
	}

	result, err := srv.services.Checkout.CompleteCheckout(r.Context(), cb)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		model.CheckoutResult
	}{true, result})
}

func (srv *Server) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := srv.currentUser(w, r)
	if !ok {
		return
	}

	orders, err := srv.services.Checkout.Orders(r.Context(), user.ID)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// WebhookHandler answers 2xx once the event is durably handled. Anything
// else makes the provider redeliver, so only our own failures return 5xx.
func (srv *Server) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil || len(body) == 0 {
		writeStatus(w, http.StatusBadRequest, "bad request")
		return
	}

	outcome, err := srv.services.Checkout.HandleWebhook(r.Context(), body,
		r.Header.Get(signatureHeader), r.Header.Get(eventIDHeader))
	if err != nil {
		if errors.Is(err, errs.ErrInvalidSignature) {
			writeStatus(w, http.StatusBadRequest, "invalid webhook signature")
			return
		}
		srv.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
