package telephony

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidatePhoneNumber reports whether number is a plausible E.164 phone
// number. The format check happens before any provider call so malformed
// input never costs an API round trip.
func ValidatePhoneNumber(number string) error {
	if !phonePattern.MatchString(number) {
		return domain.ErrInvalidDestination(fmt.Sprintf("invalid phone number format: %q, expected E.164 such as +15551234567", number))
	}
	return nil
}

// callAPI is the slice of the Twilio REST client the dialer uses. The
// concrete twilio.ApiService satisfies it.
type callAPI interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
	FetchCall(sid string, params *api.FetchCallParams) (*api.ApiV2010Call, error)
}

// CallRequest describes an outbound call to place.
type CallRequest struct {
	To       string
	Greeting string // rendered TwiML for the opening exchange
}

// CallInfo is the provider-reported state of a call.
type CallInfo struct {
	SID       string `json:"callSid"`
	Status    string `json:"status"`
	Duration  string `json:"duration,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Price     string `json:"price,omitempty"`
	PriceUnit string `json:"priceUnit,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// Dialer places and inspects calls through the telephony provider.
type Dialer struct {
	api     callAPI
	from    string
	baseURL string
	logger  *slog.Logger
}

// NewDialer builds a Dialer backed by the Twilio REST API. baseURL is the
// externally reachable origin of this service, used for status and
// recording callbacks.
func NewDialer(accountSID, authToken, from, baseURL string, logger *slog.Logger) *Dialer {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Dialer{
		api:     client.Api,
		from:    from,
		baseURL: baseURL,
		logger:  logger,
	}
}

// NewDialerWithAPI wires a Dialer to an existing API implementation.
func NewDialerWithAPI(callIface callAPI, from, baseURL string, logger *slog.Logger) *Dialer {
	return &Dialer{api: callIface, from: from, baseURL: baseURL, logger: logger}
}

// PlaceCall validates the destination, then asks the provider to dial it
// with the supplied greeting document. The call is recorded and status
// transitions are posted back to the service.
func (d *Dialer) PlaceCall(req CallRequest) (*CallInfo, error) {
	if err := ValidatePhoneNumber(req.To); err != nil {
		return nil, err
	}

	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(d.from)
	params.SetTwiml(req.Greeting)
	params.SetStatusCallback(d.baseURL + "/call/status")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetStatusCallbackMethod("POST")
	params.SetRecord(true)
	params.SetRecordingStatusCallback(d.baseURL + "/call/recording")

	resp, err := d.api.CreateCall(params)
	if err != nil {
		return nil, domain.ErrUpstream(fmt.Sprintf("failed to place call: %v", err))
	}

	info := callInfoFrom(resp)
	d.logger.Info("call placed", "call_sid", info.SID, "to", req.To, "status", info.Status)
	return info, nil
}

// CallStatus fetches the provider's current view of a call.
func (d *Dialer) CallStatus(sid string) (*CallInfo, error) {
	resp, err := d.api.FetchCall(sid, &api.FetchCallParams{})
	if err != nil {
		return nil, domain.ErrUpstream(fmt.Sprintf("failed to fetch call %s: %v", sid, err))
	}
	return callInfoFrom(resp), nil
}

func callInfoFrom(resp *api.ApiV2010Call) *CallInfo {
	info := &CallInfo{
		SID:       deref(resp.Sid),
		Status:    deref(resp.Status),
		Duration:  deref(resp.Duration),
		From:      deref(resp.From),
		To:        deref(resp.To),
		Price:     deref(resp.Price),
		PriceUnit: deref(resp.PriceUnit),
		StartTime: deref(resp.StartTime),
		EndTime:   deref(resp.EndTime),
	}
	return info
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
