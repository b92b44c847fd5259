package attachment

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Scope grants download rights to one file token inside a specific
// table/record/field context. It is sent as the "extra" query parameter of
// the media download API.
type Scope struct {
	TableID   string
	FieldID   string
	RecordID  string
	FileToken string
}

type scopePayload struct {
	BitablePerm bitablePerm `json:"bitablePerm"`
}

type bitablePerm struct {
	TableID     string                         `json:"tableId"`
	Attachments map[string]map[string][]string `json:"attachments"`
}

// JSON renders the scope token:
// {"bitablePerm":{"tableId":T,"attachments":{F:{R:[fileToken]}}}}
func (s Scope) JSON() (string, error) {
	if s.FieldID == "" || s.RecordID == "" || s.FileToken == "" {
		return "", fmt.Errorf("incomplete scope: field=%q record=%q token=%q", s.FieldID, s.RecordID, s.FileToken)
	}

	payload := scopePayload{
		BitablePerm: bitablePerm{
			TableID: s.TableID,
			Attachments: map[string]map[string][]string{
				s.FieldID: {s.RecordID: {s.FileToken}},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal scope: %w", err)
	}
	return string(data), nil
}

// Encoded returns the percent-encoded scope token, ready to be placed in a
// query string without further escaping
func (s Scope) Encoded() (string, error) {
	raw, err := s.JSON()
	if err != nil {
		return "", err
	}
	return url.QueryEscape(raw), nil
}
