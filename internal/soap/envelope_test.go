package soap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

const testServiceType = "urn:schemas-upnp-org:service:AVTransport:1"

func responseBody(action string, args Args) []byte {
	body := "<?xml version=\"1.0\"?>" +
		"<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\"><s:Body>" +
		fmt.Sprintf("<u:%sResponse xmlns:u=\"%s\">", action, testServiceType)
	for _, arg := range args {
		body += fmt.Sprintf("<%s>%s</%s>", arg.Name, arg.Value, arg.Name)
	}
	body += fmt.Sprintf("</u:%sResponse></s:Body></s:Envelope>", action)
	return []byte(body)
}

func faultBody(code, description string) []byte {
	return []byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<s:Fault>
<faultcode>s:Client</faultcode>
<faultstring>UPnPError</faultstring>
<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
<errorCode>` + code + `</errorCode>
<errorDescription>` + description + `</errorDescription>
</UPnPError></detail>
</s:Fault>
</s:Body></s:Envelope>`)
}

func TestEncodeDecode_RoundTripPreservesOrder(t *testing.T) {
	args := Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: "20"},
	}

	// A request envelope has the same shape as a response envelope for the
	// matching pseudo-action name, so encoding as "SetVolumeResponse" lets
	// the decoder read its own output back.
	body := Encode(testServiceType, "SetVolumeResponse", args)
	decoded, err := Decode("SetVolume", body)

	require.NoError(t, err)
	require.Equal(t, args, decoded)
}

func TestEncode_EscapesArgumentValues(t *testing.T) {
	args := Args{
		{Name: "CurrentURI", Value: `x-rincon:<evil attr="1">&amp;</evil>`},
	}

	body := Encode(testServiceType, "SetAVTransportURIResponse", args)
	decoded, err := Decode("SetAVTransportURI", body)

	require.NoError(t, err)
	require.Equal(t, args, decoded)
}

func TestDecode_Response(t *testing.T) {
	body := responseBody("GetVolume", Args{{Name: "CurrentVolume", Value: "42"}})

	args, err := Decode("GetVolume", body)

	require.NoError(t, err)
	require.Equal(t, "42", args.Value("CurrentVolume"))
}

func TestDecode_FaultIsNeverMalformed(t *testing.T) {
	args, err := Decode("SetVolume", faultBody("402", "Invalid Args"))

	require.Nil(t, args)
	fault, ok := err.(*Fault)
	require.True(t, ok, "expected *Fault, got %T: %v", err, err)
	require.Equal(t, "402", fault.Code)
	require.Equal(t, "Invalid Args", fault.Description)
	require.Equal(t, "s:Client", fault.FaultCode)
}

func TestDecode_FaultWithoutDetailFallsBack(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<s:Fault><faultcode>s:Server</faultcode><faultstring>ActionFailed</faultstring></s:Fault>
</s:Body></s:Envelope>`)

	_, err := Decode("Play", body)

	fault, ok := err.(*Fault)
	require.True(t, ok)
	require.Equal(t, "s:Server", fault.Code)
	require.Equal(t, "ActionFailed", fault.Description)
}

func TestDecode_MalformedBody(t *testing.T) {
	cases := map[string][]byte{
		"not xml":       []byte("this is not xml"),
		"no body":       []byte(`<?xml version="1.0"?><s:Envelope xmlns:s="ns"></s:Envelope>`),
		"wrong element": []byte(`<?xml version="1.0"?><s:Envelope xmlns:s="ns"><s:Body><Other/></s:Body></s:Envelope>`),
		"truncated":     []byte(`<?xml version="1.0"?><s:Envelope><s:Body><u:PlayResponse>`),
		"empty":         {},
	}

	for name, body := range cases {
		_, err := Decode("Play", body)
		_, ok := err.(*MalformedError)
		require.True(t, ok, "case %q: expected *MalformedError, got %T: %v", name, err, err)
	}
}

func TestParseFault_NoFaultInBody(t *testing.T) {
	require.Nil(t, ParseFault(responseBody("Play", nil)))
	require.Nil(t, ParseFault([]byte("junk")))
}
