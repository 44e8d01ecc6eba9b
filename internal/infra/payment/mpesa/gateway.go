package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wifi-voucher-gateway/internal/config"
	"wifi-voucher-gateway/internal/domain"
	"wifi-voucher-gateway/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.PaymentGateway = (*DarajaGateway)(nil)

// DarajaGateway implements adapter.PaymentGateway against the Safaricom
// Daraja STK push API using direct HTTP calls.
//
// A fresh OAuth token is fetched per push. Request volume on a single portal
// is low enough that caching until expiry is an optimization, not a
// correctness requirement.
type DarajaGateway struct {
	shortCode      string
	passkey        string
	consumerKey    string
	consumerSecret string
	oauthURL       string
	stkPushURL     string
	callbackURL    string
	client         *http.Client
	now            func() time.Time
}

func NewDarajaGateway(cfg config.MpesaConfig) *DarajaGateway {
	return &DarajaGateway{
		shortCode:      cfg.ShortCode,
		passkey:        cfg.Passkey,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		oauthURL:       cfg.OAuthURL,
		stkPushURL:     cfg.StkPushURL,
		callbackURL:    cfg.CallbackURL,
		client:         &http.Client{Timeout: cfg.Timeout},
		now:            time.Now,
	}
}

func (g *DarajaGateway) Name() string { return "mpesa" }

// NormalizePhone implements adapter.PaymentGateway.NormalizePhone.
func (g *DarajaGateway) NormalizePhone(raw string) (string, error) {
	return NormalizePhone(raw)
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// fetchToken obtains a bearer credential from the provider's identity
// endpoint using the app's consumer key/secret as basic auth.
func (g *DarajaGateway) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.oauthURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamAuth, err)
	}
	req.SetBasicAuth(g.consumerKey, g.consumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamAuth, resp.StatusCode, string(body))
	}

	var out oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", domain.ErrUpstreamAuth, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", domain.ErrUpstreamAuth)
	}
	return out.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// RequestPush implements adapter.PaymentGateway.RequestPush. The returned ack
// only means the provider accepted the request for processing; the payment
// outcome arrives on the asynchronous callback.
func (g *DarajaGateway) RequestPush(ctx context.Context, phone string, amount int64, reference string) (*adapter.PushAck, error) {
	token, err := g.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := g.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(g.shortCode + g.passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: g.shortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            g.shortCode,
		PhoneNumber:       phone,
		CallBackURL:       g.callbackURL,
		AccountReference:  reference,
		TransactionDesc:   "Voucher Purchase",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrPaymentPushFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.stkPushURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentPushFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentPushFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrPaymentPushFailed, err)
	}

	var out stkPushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v, body: %s", domain.ErrPaymentPushFailed, err, string(body))
	}

	if resp.StatusCode != http.StatusOK || out.ErrorCode != "" {
		return nil, fmt.Errorf("%w: status %d, code %s: %s", domain.ErrPaymentPushFailed, resp.StatusCode, out.ErrorCode, out.ErrorMessage)
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: response code %s: %s", domain.ErrPaymentPushFailed, out.ResponseCode, out.ResponseDescription)
	}

	return &adapter.PushAck{
		MerchantRequestID: out.MerchantRequestID,
		CheckoutRequestID: out.CheckoutRequestID,
		ResponseDesc:      out.ResponseDescription,
	}, nil
}
