// Package telephony is the thin control-plane glue against the telephony
// provider's call-management API: originate an outbound call pointed at the
// media stream endpoint, and end a call on demand.
package telephony

import (
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/dialbridge/dialbridge/internal/logging"
)

// CallAPI originates and terminates calls. The HTTP handlers depend on this
// interface so tests can substitute a fake.
type CallAPI interface {
	// CreateCall starts an outbound call that executes the given TwiML and
	// returns the provider's call SID.
	CreateCall(to, twiml string) (string, error)
	// EndCall terminates an in-flight call.
	EndCall(sid string) error
}

// Client is the Twilio-backed CallAPI.
type Client struct {
	rest *twilio.RestClient
	from string
	log  *logging.Logger
}

// NewClient creates a Twilio call client.
func NewClient(accountSID, authToken, fromNumber string, log *logging.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{rest: rest, from: fromNumber, log: log.Sub("twilio")}
}

// CreateCall implements CallAPI.
func (c *Client) CreateCall(to, twiml string) (string, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetTwiml(twiml)

	resp, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("creating call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("creating call: provider returned no SID")
	}

	c.log.Info().Str("callSid", *resp.Sid).Str("to", to).Msg("outbound call created")
	return *resp.Sid, nil
}

// EndCall implements CallAPI by updating the call status to completed, which
// terminates it regardless of its current state.
func (c *Client) EndCall(sid string) error {
	params := &openapi.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := c.rest.Api.UpdateCall(sid, params); err != nil {
		return fmt.Errorf("ending call %s: %w", sid, err)
	}

	c.log.Info().Str("callSid", sid).Msg("call ended")
	return nil
}
