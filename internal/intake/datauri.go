package intake

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DataURI is a self-contained encoded image of the form
// data:<media-type>;base64,<payload>. The zero value means "no image".
type DataURI struct {
	mediaType string
	payload   string
}

var ErrMalformedDataURI = errors.New("intake: malformed data uri")

// NewDataURI encodes raw bytes with the given media type.
func NewDataURI(mediaType string, data []byte) DataURI {
	return DataURI{
		mediaType: strings.ToLower(strings.TrimSpace(mediaType)),
		payload:   base64.StdEncoding.EncodeToString(data),
	}
}

// ParseDataURI validates and splits a base64 data URI.
func ParseDataURI(s string) (DataURI, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: prefix", ErrMalformedDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing payload separator", ErrMalformedDataURI)
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformedDataURI)
	}
	if mediaType == "" {
		return DataURI{}, fmt.Errorf("%w: empty media type", ErrMalformedDataURI)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return DataURI{mediaType: strings.ToLower(mediaType), payload: payload}, nil
}

func (d DataURI) IsZero() bool {
	return d.payload == "" && d.mediaType == ""
}

func (d DataURI) MediaType() string {
	return d.mediaType
}

// Base64 returns the encoded payload without the data: header.
func (d DataURI) Base64() string {
	return d.payload
}

// Bytes decodes the payload.
func (d DataURI) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(d.payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return data, nil
}

// Size is the decoded payload length in bytes.
func (d DataURI) Size() int {
	return base64.StdEncoding.DecodedLen(len(d.payload)) - strings.Count(d.payload[max(0, len(d.payload)-2):], "=")
}

func (d DataURI) String() string {
	if d.IsZero() {
		return ""
	}
	return "data:" + d.mediaType + ";base64," + d.payload
}

func (d DataURI) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DataURI) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = DataURI{}
		return nil
	}
	parsed, err := ParseDataURI(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
