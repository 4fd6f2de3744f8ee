// Package poi decodes AMap place search pages and turns their items into
// flat POI records.
package poi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StatusOK is the top-level status of a successful API response.
const StatusOK = "1"

// PageResponse is one decoded page of the text search endpoint.
type PageResponse struct {
	Status   string   `json:"status"`
	Info     string   `json:"info"`
	InfoCode string   `json:"infocode"`
	Count    FlexInt  `json:"count"`
	POIs     []RawPOI `json:"pois"`
}

// Success reports whether the API accepted the request.
func (p *PageResponse) Success() bool {
	return p.Status == StatusOK
}

// ReportedCount is the item count the API reported for this page.
func (p *PageResponse) ReportedCount() int {
	return int(p.Count)
}

// RawPOI is one item of the "pois" array as sent by the API.
type RawPOI struct {
	Name     FlexString `json:"name"`
	Location FlexString `json:"location"`
	PName    FlexString `json:"pname"`
	CityName FlexString `json:"cityname"`
	AdName   FlexString `json:"adname"`
	Type     FlexString `json:"type"`
	TypeCode FlexString `json:"typecode"`
	Business *Business  `json:"business,omitempty"`
}

// Business carries the optional business attributes (show_fields=business).
type Business struct {
	Rating      FlexString `json:"rating"`
	ParkingType FlexString `json:"parking_type"`
}

// DecodePage decodes a response body.
func DecodePage(body []byte) (*PageResponse, error) {
	var page PageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}

// FlexString decodes a JSON string, number, null or empty array.
// The API sends [] for absent string fields.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	case b[0] == '[':
		var v []json.RawMessage
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if len(v) == 0 {
			*s = ""
			return nil
		}
		var first FlexString
		if err := first.UnmarshalJSON(v[0]); err != nil {
			return err
		}
		*s = first
		return nil
	default:
		var v json.Number
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("unsupported string value %s", string(b))
		}
		*s = FlexString(v.String())
		return nil
	}
}

// String returns the trimmed value.
func (s FlexString) String() string {
	return strings.TrimSpace(string(s))
}

// FlexInt decodes an integer sent either as a number or a decimal string.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s.String() == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s.String())
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s.String(), err)
	}
	*n = FlexInt(v)
	return nil
}
