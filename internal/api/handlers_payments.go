// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/validation"
)

const maxPaymentBody = 16 << 10

// PaymentRequest is the JSON body of POST /api/v1/payments. The gateway
// refuses negative amounts; the event stream itself accepts them.
type PaymentRequest struct {
	Plate  string           `json:"plate" validate:"required,max=32"`
	SpotID models.SpotID    `json:"spot_id" validate:"required,spotid"`
	Amount *decimal.Decimal `json:"amount" validate:"omitempty,gte=0"`
}

// PaymentAccepted is returned once the payment event is on the topic.
type PaymentAccepted struct {
	MessageID string             `json:"message_id"`
	Payment   models.PaymentEvent `json:"payment"`
}

// SubmitPayment handles POST /api/v1/payments.
//
// The payment comes either as a JSON body or as the query parameters
// plate, parkingSpot and amount. The handler validates it and publishes a
// PaymentEvent. It does not check for an active session: orphan payments
// are the controller's concern.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	req, err := parsePaymentRequest(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	ev := models.PaymentEvent{
		Plate:     req.Plate,
		SpotID:    req.SpotID,
		Amount:    req.Amount,
		Timestamp: h.now().UTC(),
	}

	msg, err := eventprocessor.NewMessageWithContext(r.Context(), eventprocessor.EventTypePayment, string(ev.SpotID), ev)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode payment", err)
		return
	}
	if err := h.publisher.Publish(h.topics.Payment, msg); err != nil {
		metrics.RecordPublish(h.topics.Payment, "failure")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Payment could not be queued", err)
		return
	}
	metrics.RecordPublish(h.topics.Payment, "success")

	logging.Ctx(r.Context()).Info().
		Str("spot_id", string(ev.SpotID)).
		Str("plate", ev.Plate).
		Str("message_id", msg.UUID).
		Msg("Payment accepted")

	respondSuccess(w, http.StatusAccepted, PaymentAccepted{MessageID: msg.UUID, Payment: ev})
}

var errEmptyPayment = errors.New("payment body or query parameters required")

func parsePaymentRequest(w http.ResponseWriter, r *http.Request) (PaymentRequest, error) {
	q := r.URL.Query()
	if q.Has("plate") || q.Has("parkingSpot") {
		req := PaymentRequest{Plate: q.Get("plate"), SpotID: models.SpotID(q.Get("parkingSpot"))}
		if raw := q.Get("amount"); raw != "" {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return req, errors.New("amount is not a decimal number")
			}
			req.Amount = &amount
		}
		return req, nil
	}

	var req PaymentRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPaymentBody))
	if err != nil {
		return req, errors.New("request body too large or unreadable")
	}
	if len(body) == 0 {
		return req, errEmptyPayment
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.New("invalid JSON body")
	}
	return req, nil
}
