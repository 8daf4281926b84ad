package ems

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

	// APINamespace is the target namespace of the EMS API web service.
	APINamespace = "http://DEA.EMS.API.Web.Service/"
	// CalendarNamespace is the target namespace of the Master Calendar web service.
	CalendarNamespace = "http://www.dea.com/"
)

var (
	ErrUnavailable   = errors.New("ems service unavailable")
	ErrNotConfigured = errors.New("ems endpoint not configured")
	ErrInvalidRange  = errors.New("invalid date range")
)

// FaultError is a SOAP fault returned by the endpoint.
type FaultError struct {
	Code    string
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("soap fault %s: %s", e.Code, e.Message)
}

// APIError is an error document embedded in an otherwise successful response,
// e.g. invalid credentials.
type APIError struct {
	Operation string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ems %s: %s", e.Operation, e.Message)
}

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soap:Envelope"`
	SoapNS  string      `xml:"xmlns:soap,attr"`
	Body    requestBody `xml:"soap:Body"`
}

type requestBody struct {
	Content any
}

type intArray struct {
	Ints []int `xml:"int"`
}

func newIntArray(ids []int) *intArray {
	if len(ids) == 0 {
		return nil
	}
	return &intArray{Ints: ids}
}

type credentials struct {
	XMLNS    string `xml:"xmlns,attr"`
	UserName string `xml:"UserName"`
	Password string `xml:"Password"`
}

type simpleRequest struct {
	XMLName xml.Name
	credentials
}

type getBookingsRequest struct {
	XMLName xml.Name `xml:"GetBookings"`
	credentials
	StartDate               string    `xml:"StartDate"`
	EndDate                 string    `xml:"EndDate"`
	Buildings               *intArray `xml:"Buildings,omitempty"`
	Statuses                *intArray `xml:"Statuses,omitempty"`
	EventTypes              *intArray `xml:"EventTypes,omitempty"`
	GroupTypes              *intArray `xml:"GroupTypes,omitempty"`
	ViewComboRoomComponents bool      `xml:"ViewComboRoomComponents"`
}

type getEventsRequest struct {
	XMLName xml.Name `xml:"GetEvents"`
	credentials
	StartDate string    `xml:"StartDate"`
	EndDate   string    `xml:"EndDate"`
	Calendars *intArray `xml:"Calendars,omitempty"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func marshalEnvelope(content any) ([]byte, error) {
	env := requestEnvelope{
		SoapNS: soapEnvelopeNS,
		Body:   requestBody{Content: content},
	}
	body, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal soap envelope: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// extractResult reads a SOAP response and returns the text of the
// <{operation}Result> element, which carries an escaped XML document.
func extractResult(r io.Reader, operation string) (string, error) {
	decoder := xml.NewDecoder(r)
	resultName := operation + "Result"
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return "", fmt.Errorf("%w: soap response for %s has no %s element", ErrUnavailable, operation, resultName)
		}
		if err != nil {
			return "", fmt.Errorf("%w: decode soap response: %w", ErrUnavailable, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "Fault":
			var fault soapFault
			if err := decoder.DecodeElement(&fault, &start); err != nil {
				return "", fmt.Errorf("%w: decode soap fault: %w", ErrUnavailable, err)
			}
			return "", &FaultError{Code: fault.Code, Message: fault.String}
		case resultName:
			var result string
			if err := decoder.DecodeElement(&result, &start); err != nil {
				return "", fmt.Errorf("%w: decode %s: %w", ErrUnavailable, resultName, err)
			}
			return result, nil
		}
	}
}

type errorDoc struct {
	Message string `xml:"Message"`
}

// parseRows decodes every element named rowName that sits directly beneath
// the root of doc. An <Error> element anywhere becomes an APIError.
func parseRows[T any](operation, doc, rowName string) ([]T, error) {
	rows := []T{}
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return rows, nil
	}

	decoder := xml.NewDecoder(strings.NewReader(doc))
	depth := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s result: %w", ErrUnavailable, operation, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if el.Name.Local == "Error" {
				var apiErr errorDoc
				if err := decoder.DecodeElement(&apiErr, &el); err != nil {
					return nil, fmt.Errorf("%w: decode %s error: %w", ErrUnavailable, operation, err)
				}
				return nil, &APIError{Operation: operation, Message: strings.TrimSpace(apiErr.Message)}
			}
			if depth == 2 && el.Name.Local == rowName {
				var row T
				if err := decoder.DecodeElement(&row, &el); err != nil {
					return nil, fmt.Errorf("%w: decode %s row: %w", ErrUnavailable, operation, err)
				}
				rows = append(rows, row)
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}
}
