package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"wifi-voucher-gateway/internal/domain"
	"wifi-voucher-gateway/internal/domain/model"
	"wifi-voucher-gateway/internal/infra/metrics"
	"wifi-voucher-gateway/internal/usecase"
)

type purchaseRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
	Data        string `json:"data"`
	Duration    string `json:"duration"`
}

type redeemRequest struct {
	Code string `json:"code"`
}

type seedRequest struct {
	Amount   int64  `json:"amount"`
	Data     string `json:"data"`
	Duration string `json:"duration"`
	Count    int    `json:"count"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}

// purchaseHandler issues a pending voucher and triggers the payment push.
func purchaseHandler(voucherUC usecase.VoucherUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req purchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		v, err := voucherUC.Purchase(r.Context(), req.PhoneNumber, req.Amount, req.Data, req.Duration)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidPhone):
				writeError(w, http.StatusBadRequest, "Invalid phone number format")
			case errors.Is(err, domain.ErrInvalidArgument):
				writeError(w, http.StatusBadRequest, "All fields are required")
			case errors.Is(err, domain.ErrPaymentPushFailed), errors.Is(err, domain.ErrUpstreamAuth):
				writeError(w, http.StatusPaymentRequired, "Failed to initiate payment")
			default:
				writeError(w, http.StatusInternalServerError, "Failed to create voucher")
			}
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Success     bool   `json:"success"`
			VoucherCode string `json:"voucher_code"`
		}{Success: true, VoucherCode: v.Code})
	}
}

// redeemHandler grants portal access for a valid voucher. The code field is
// optional in auto-assign mode.
func redeemHandler(voucherUC usecase.VoucherUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req redeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		v, err := voucherUC.Redeem(r.Context(), req.Code)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidOrUsedCode):
				writeError(w, http.StatusForbidden, "Invalid or already used voucher code")
			case errors.Is(err, domain.ErrNoVoucherAvailable):
				writeError(w, http.StatusNotFound, "No voucher available")
			case errors.Is(err, domain.ErrInvalidArgument):
				writeError(w, http.StatusBadRequest, "Voucher code is required")
			default:
				writeError(w, http.StatusInternalServerError, "Failed to redeem voucher")
			}
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Granted     bool   `json:"granted"`
			VoucherCode string `json:"voucher_code"`
		}{Granted: true, VoucherCode: v.Code})
	}
}

// callbackHandler receives the provider's asynchronous payment result. The
// provider is always acked for structurally valid payloads, whatever the
// internal outcome; anything else invites provider-side retries.
func callbackHandler(voucherUC usecase.VoucherUseCase, log *zerolog.Logger) http.HandlerFunc {
	type darajaAck struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		cb, err := model.ParseStkCallback(r.Body)
		if err != nil {
			metrics.IncPaymentCallback("malformed")
			log.Warn().Err(err).Msg("malformed payment callback")
			writeJSON(w, http.StatusBadRequest, darajaAck{ResultCode: 1, ResultDesc: "Rejected"})
			return
		}

		if err := voucherUC.HandleCallback(r.Context(), cb); err != nil {
			// Storage errors are logged but still acked; the voucher state is
			// reconciled by the provider's retry or the sweeper.
			log.Error().Err(err).Str("reference", cb.Reference).Msg("callback processing failed")
		}

		writeJSON(w, http.StatusOK, darajaAck{ResultCode: 0, ResultDesc: "Accepted"})
	}
}

func vouchersSeedHandler(voucherUC usecase.VoucherUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req seedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Count == 0 {
			req.Count = 1
		}

		vouchers, err := voucherUC.Seed(r.Context(), req.Amount, req.Data, req.Duration, req.Count)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				writeError(w, http.StatusBadRequest, "Invalid seed request")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to seed vouchers")
			return
		}

		codes := make([]string, len(vouchers))
		for i, v := range vouchers {
			codes[i] = v.Code
		}
		writeJSON(w, http.StatusCreated, struct {
			Success bool     `json:"success"`
			Codes   []string `json:"codes"`
		}{Success: true, Codes: codes})
	}
}

func vouchersListHandler(voucherUC usecase.VoucherUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := model.VoucherStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = model.VoucherStatusActive
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		vouchers, err := voucherUC.List(r.Context(), status, limit)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				writeError(w, http.StatusBadRequest, "Unknown voucher status")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to list vouchers")
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Data  []*model.Voucher `json:"data"`
			Total int              `json:"total"`
		}{Data: vouchers, Total: len(vouchers)})
	}
}

func voucherGetHandler(voucherUC usecase.VoucherUseCase, code string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := voucherUC.Find(r.Context(), code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Voucher not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to look up voucher")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
