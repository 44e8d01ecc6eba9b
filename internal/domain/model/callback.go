package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"wifi-voucher-gateway/internal/domain"
)

// StkCallback is the validated form of an asynchronous STK push result
// delivered by the provider. Reference carries the voucher code we passed
// as AccountReference when the push was initiated.
type StkCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Reference         string
	Amount            *int64
	ReceiptNumber     string
	PhoneNumber       string
}

// Succeeded reports whether the provider confirmed the payment.
func (c *StkCallback) Succeeded() bool { return c.ResultCode == 0 }

// stkCallbackEnvelope mirrors the Daraja wire format. Metadata items are
// looked up by name; the item order in the array is not stable across
// result codes and must never be relied on.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseStkCallback decodes and validates a provider callback body.
// A payload that is not JSON, or that lacks a result code or the echoed
// account reference, yields ErrMalformedCallback.
func ParseStkCallback(r io.Reader) (*StkCallback, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}

	var env stkCallbackEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}

	sc := env.Body.StkCallback
	if sc.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", domain.ErrMalformedCallback)
	}

	cb := &StkCallback{
		MerchantRequestID: sc.MerchantRequestID,
		CheckoutRequestID: sc.CheckoutRequestID,
		ResultCode:        *sc.ResultCode,
		ResultDesc:        sc.ResultDesc,
	}
	for _, item := range sc.CallbackMetadata.Item {
		switch item.Name {
		case "AccountReference":
			cb.Reference = itemString(item.Value)
		case "Amount":
			if n, ok := itemInt64(item.Value); ok {
				cb.Amount = &n
			}
		case "MpesaReceiptNumber":
			cb.ReceiptNumber = itemString(item.Value)
		case "PhoneNumber":
			cb.PhoneNumber = itemString(item.Value)
		}
	}
	if cb.Reference == "" {
		return nil, fmt.Errorf("%w: missing AccountReference", domain.ErrMalformedCallback)
	}
	return cb, nil
}

func itemString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func itemInt64(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	// Daraja reports amounts like 50.0; truncate to whole units.
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}
