package mpesa

import "encoding/json"

// PushRequest describes one STK push.
type PushRequest struct {
	Amount           int64
	Phone            string // 2547XXXXXXXX
	AccountReference string
	Description      string
}

// PushResult is the gateway's acknowledgement of a push request.
// OK is false when the gateway rejected the request.
type PushResult struct {
	OK                bool
	MerchantRequestID string
	CheckoutRequestID string
	Description       string
	Raw               json.RawMessage
}

// StatusResult is the gateway's answer to a status query.
type StatusResult struct {
	OK                bool
	ResultCode        string
	ResultDescription string
	Raw               json.RawMessage
}

// Succeeded reports whether the queried payment settled successfully.
func (r *StatusResult) Succeeded() bool {
	return r != nil && r.OK && r.ResultCode == "0"
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushBody struct {
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

type stkQueryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// gatewayResponse covers the fields of push, query and error bodies.
type gatewayResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

func (r gatewayResponse) description() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return r.ResponseDescription
}

// CallbackEnvelope is the webhook body posted by the gateway.
type CallbackEnvelope struct {
	Body struct {
		StkCallback Callback `json:"stkCallback"`
	} `json:"Body"`
}

// Callback is the stkCallback payload.
type Callback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

// Succeeded reports whether the callback announces a settled payment.
func (c Callback) Succeeded() bool {
	return c.ResultCode == 0
}

// CallbackMetadata carries receipt details on successful callbacks.
type CallbackMetadata struct {
	Item []struct {
		Name  string      `json:"Name"`
		Value interface{} `json:"Value,omitempty"`
	} `json:"Item"`
}

// ParseCallback decodes a webhook body.
func ParseCallback(body []byte) (*Callback, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env.Body.StkCallback, nil
}
