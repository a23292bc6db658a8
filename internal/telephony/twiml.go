package telephony

import (
	"encoding/xml"
	"fmt"
)

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// StreamTwiML renders the TwiML document that connects a call's media to the
// bridge's websocket endpoint on the given public host.
func StreamTwiML(publicHost string) (string, error) {
	doc := twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL: fmt.Sprintf("wss://%s/media", publicHost),
			},
		},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rendering twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
