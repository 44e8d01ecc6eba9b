//go:build !integration

package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wifi-voucher-gateway/internal/config"
	"wifi-voucher-gateway/internal/domain"
)

func testGateway(t *testing.T, oauth, stk http.HandlerFunc) *DarajaGateway {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", oauth)
	mux.HandleFunc("/stkpush", stk)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewDarajaGateway(config.MpesaConfig{
		ShortCode:      "174379",
		Passkey:        "passkey",
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		OAuthURL:       srv.URL + "/oauth",
		StkPushURL:     srv.URL + "/stkpush",
		CallbackURL:    "https://portal.example.com/api/v1/payments/callback",
		Timeout:        5 * time.Second,
	})
	g.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC) }
	return g
}

func grantToken(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != "key" || pass != "secret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "token-1", "expires_in": "3599"})
}

func TestDarajaGateway_RequestPush(t *testing.T) {
	ctx := context.Background()

	t.Run("should submit a well-formed push and return the ack", func(t *testing.T) {
		var got map[string]any
		g := testGateway(t, grantToken, func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
				t.Errorf("expected bearer token, got %q", auth)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode push payload: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID":   "29115-34620561-1",
				"CheckoutRequestID":   "ws_CO_191220191020363925",
				"ResponseCode":        "0",
				"ResponseDescription": "Success. Request accepted for processing",
			})
		})

		ack, err := g.RequestPush(ctx, "254712345678", 50, "AB12CD34")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ack.CheckoutRequestID != "ws_CO_191220191020363925" {
			t.Errorf("unexpected checkout request id %q", ack.CheckoutRequestID)
		}

		if got["TransactionType"] != "CustomerPayBillOnline" {
			t.Errorf("unexpected transaction type %v", got["TransactionType"])
		}
		if got["AccountReference"] != "AB12CD34" {
			t.Errorf("expected the voucher code as AccountReference, got %v", got["AccountReference"])
		}
		if got["PartyA"] != "254712345678" || got["PhoneNumber"] != "254712345678" {
			t.Errorf("expected the normalized phone in PartyA/PhoneNumber, got %v/%v", got["PartyA"], got["PhoneNumber"])
		}
		if got["Timestamp"] != "20240301123045" {
			t.Errorf("unexpected timestamp %v", got["Timestamp"])
		}
		wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20240301123045"))
		if got["Password"] != wantPassword {
			t.Errorf("password not derived from shortcode+passkey+timestamp")
		}
	})

	t.Run("should fail with ErrUpstreamAuth when the token fetch is denied", func(t *testing.T) {
		g := testGateway(t,
			func(w http.ResponseWriter, r *http.Request) { http.Error(w, "denied", http.StatusUnauthorized) },
			func(w http.ResponseWriter, r *http.Request) { t.Error("push must not be attempted without a token") },
		)

		_, err := g.RequestPush(ctx, "254712345678", 50, "AB12CD34")
		if !errors.Is(err, domain.ErrUpstreamAuth) {
			t.Fatalf("expected ErrUpstreamAuth, got %v", err)
		}
	})

	t.Run("should fail with ErrUpstreamAuth on an empty token", func(t *testing.T) {
		g := testGateway(t,
			func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]string{"expires_in": "3599"})
			},
			func(w http.ResponseWriter, r *http.Request) { t.Error("push must not be attempted without a token") },
		)

		_, err := g.RequestPush(ctx, "254712345678", 50, "AB12CD34")
		if !errors.Is(err, domain.ErrUpstreamAuth) {
			t.Fatalf("expected ErrUpstreamAuth, got %v", err)
		}
	})

	t.Run("should surface provider errors as ErrPaymentPushFailed", func(t *testing.T) {
		g := testGateway(t, grantToken, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"errorCode":    "400.002.02",
				"errorMessage": "Bad Request - Invalid Amount",
			})
		})

		_, err := g.RequestPush(ctx, "254712345678", 50, "AB12CD34")
		if !errors.Is(err, domain.ErrPaymentPushFailed) {
			t.Fatalf("expected ErrPaymentPushFailed, got %v", err)
		}
	})

	t.Run("should fail on an unparseable push response", func(t *testing.T) {
		g := testGateway(t, grantToken, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>gateway timeout</html>"))
		})

		_, err := g.RequestPush(ctx, "254712345678", 50, "AB12CD34")
		if !errors.Is(err, domain.ErrPaymentPushFailed) {
			t.Fatalf("expected ErrPaymentPushFailed, got %v", err)
		}
	})

	t.Run("should fail on a non-zero response code", func(t *testing.T) {
		g := testGateway(t, grantToken, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":        "1",
				"ResponseDescription": "Insufficient funds on the utility account",
			})
		})

		_, err := g.RequestPush(ctx, "254712345678", 50, "AB12CD34")
		if !errors.Is(err, domain.ErrPaymentPushFailed) {
			t.Fatalf("expected ErrPaymentPushFailed, got %v", err)
		}
	})
}
