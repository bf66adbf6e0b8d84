package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Arg is a single named action argument.
type Arg struct {
	Name  string
	Value string
}

// Args is an ordered list of action arguments. Order matters: UPnP action
// schemas define argument order and some devices reject reordered elements,
// so this is a slice, not a map.
type Args []Arg

// Get returns the value for name and whether it was present.
func (a Args) Get(name string) (string, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return "", false
}

// Value returns the value for name, or "" if absent.
func (a Args) Value(name string) string {
	value, _ := a.Get(name)
	return value
}

// Encode builds a SOAP request body wrapping a single action element with
// ordered argument children.
func Encode(serviceType, action string, args Args) []byte {
	var buf strings.Builder
	buf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>")
	buf.WriteString("<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\" s:encodingStyle=\"http://schemas.xmlsoap.org/soap/encoding/\">")
	buf.WriteString("<s:Body>")
	buf.WriteString("<u:")
	buf.WriteString(action)
	buf.WriteString(" xmlns:u=\"")
	buf.WriteString(serviceType)
	buf.WriteString("\">")

	for _, arg := range args {
		buf.WriteString("<")
		buf.WriteString(arg.Name)
		buf.WriteString(">")
		buf.WriteString(escapeXML(arg.Value))
		buf.WriteString("</")
		buf.WriteString(arg.Name)
		buf.WriteString(">")
	}

	buf.WriteString("</u:")
	buf.WriteString(action)
	buf.WriteString(">")
	buf.WriteString("</s:Body>")
	buf.WriteString("</s:Envelope>")

	return []byte(buf.String())
}

func escapeXML(input string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(input)); err != nil {
		return input
	}
	return b.String()
}

// Decode parses a SOAP response body for the given action. It distinguishes
// three outcomes: the ordered response arguments, a *Fault when the body
// carries a SOAP fault, and a *MalformedError when the body does not match
// the envelope structure at all.
func Decode(action string, body []byte) (Args, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	if err := skipToBody(decoder); err != nil {
		return nil, &MalformedError{Action: action, Err: err}
	}

	// The first element inside Body is either the action response or a Fault.
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, &MalformedError{Action: action, Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "Fault":
			fault, err := decodeFault(decoder)
			if err != nil {
				return nil, &MalformedError{Action: action, Err: err}
			}
			fault.Action = action
			return nil, fault
		case action + "Response":
			return decodeResponseArgs(decoder, action)
		default:
			return nil, &MalformedError{
				Action: action,
				Err:    fmt.Errorf("unexpected element <%s> in body", se.Name.Local),
			}
		}
	}
}

func skipToBody(decoder *xml.Decoder) error {
	sawEnvelope := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return errors.New("no soap body found")
			}
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "Envelope":
			sawEnvelope = true
		case "Body":
			if !sawEnvelope {
				return errors.New("body outside envelope")
			}
			return nil
		default:
			// Header blocks are legal before Body, skip them whole.
			if err := decoder.Skip(); err != nil {
				return err
			}
		}
	}
}

func decodeResponseArgs(decoder *xml.Decoder, action string) (Args, error) {
	args := Args{}
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, &MalformedError{Action: action, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := decoder.DecodeElement(&value, &t); err != nil {
				return nil, &MalformedError{Action: action, Err: err}
			}
			args = append(args, Arg{Name: t.Name.Local, Value: value})
		case xml.EndElement:
			if t.Name.Local == action+"Response" {
				return args, nil
			}
		}
	}
}

// decodeFault walks a SOAP Fault element, collecting the faultcode and
// faultstring plus the UPnP errorCode/errorDescription pair from the detail
// block if the device included one.
func decodeFault(decoder *xml.Decoder) (*Fault, error) {
	fault := &Fault{}
	depth := 1
	for depth > 0 {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "faultcode", "faultstring", "errorCode", "errorDescription":
				var value string
				if err := decoder.DecodeElement(&value, &t); err != nil {
					return nil, err
				}
				value = strings.TrimSpace(value)
				switch t.Name.Local {
				case "faultcode":
					fault.FaultCode = value
				case "faultstring":
					fault.FaultString = value
				case "errorCode":
					fault.Code = value
				case "errorDescription":
					fault.Description = value
				}
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}

	if fault.Code == "" {
		fault.Code = fault.FaultCode
	}
	if fault.Description == "" {
		fault.Description = fault.FaultString
	}
	return fault, nil
}

// ParseFault scans an arbitrary payload for a SOAP fault. Used when the
// device answers with an HTTP error status and we want the UPnP error out of
// whatever body it sent. Returns nil if no fault element is present.
func ParseFault(payload []byte) *Fault {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "Fault" {
			fault, err := decodeFault(decoder)
			if err != nil || (fault.Code == "" && fault.FaultCode == "") {
				return nil
			}
			return fault
		}
	}
}
