package events

import (
	"encoding/xml"
	"html"
	"strconv"
	"strings"

	"github.com/ramesius/wez-sonos/internal/soap"
)

// UPnP propertyset envelope carried in NOTIFY bodies.
type propertyset struct {
	XMLName    xml.Name   `xml:"propertyset"`
	Properties []property `xml:"property"`
}

type property struct {
	LastChange string `xml:"LastChange"`
}

// AVTransport LastChange event structure.
type avTransportEvent struct {
	XMLName    xml.Name            `xml:"Event"`
	InstanceID avTransportInstance `xml:"InstanceID"`
}

type avTransportInstance struct {
	Val                    string  `xml:"val,attr"`
	TransportState         attrVal `xml:"TransportState"`
	TransportStatus        attrVal `xml:"TransportStatus"`
	CurrentTrackURI        attrVal `xml:"CurrentTrackURI"`
	CurrentTrackDuration   attrVal `xml:"CurrentTrackDuration"`
	CurrentTrackMetaData   attrVal `xml:"CurrentTrackMetaData"`
	AVTransportURI         attrVal `xml:"AVTransportURI"`
	AVTransportURIMetaData attrVal `xml:"AVTransportURIMetaData"`
	RelTime                attrVal `xml:"RelativeTimePosition"`
}

type attrVal struct {
	Val string `xml:"val,attr"`
}

// RenderingControl LastChange event structure.
type renderingControlEvent struct {
	XMLName    xml.Name                 `xml:"Event"`
	InstanceID renderingControlInstance `xml:"InstanceID"`
}

type renderingControlInstance struct {
	Val    string           `xml:"val,attr"`
	Volume []channelAttrVal `xml:"Volume"`
	Mute   []channelAttrVal `xml:"Mute"`
}

type channelAttrVal struct {
	Channel string `xml:"channel,attr"`
	Val     string `xml:"val,attr"`
}

// ParseNotifyBody decodes a NOTIFY event body for the given service into a
// typed Change. Sonos events double-encode the interesting payload inside
// the LastChange property, so the inner XML is unescaped and parsed again.
func ParseNotifyBody(body []byte, service soap.Service) (*Change, error) {
	var ps propertyset
	if err := xml.Unmarshal(body, &ps); err != nil {
		return nil, err
	}

	change := &Change{
		Service:    service,
		Properties: make(map[string]string),
	}

	for _, prop := range ps.Properties {
		if prop.LastChange == "" {
			continue
		}
		unescaped := html.UnescapeString(prop.LastChange)

		switch service {
		case soap.ServiceAVTransport:
			transport, err := parseAVTransportLastChange(unescaped)
			if err != nil {
				return nil, err
			}
			change.Transport = transport
			mergeTransportProperties(change.Properties, transport)
		case soap.ServiceRenderingControl:
			rendering, err := parseRenderingControlLastChange(unescaped)
			if err != nil {
				return nil, err
			}
			change.Rendering = rendering
			mergeRenderingProperties(change.Properties, rendering)
		default:
			change.Properties["LastChange"] = unescaped
		}
	}

	return change, nil
}

func parseAVTransportLastChange(xmlContent string) (*TransportChange, error) {
	var evt avTransportEvent
	if err := xml.Unmarshal([]byte(xmlContent), &evt); err != nil {
		return nil, err
	}

	return &TransportChange{
		TransportState:         evt.InstanceID.TransportState.Val,
		TransportStatus:        evt.InstanceID.TransportStatus.Val,
		CurrentTrackURI:        evt.InstanceID.CurrentTrackURI.Val,
		CurrentTrackMetaData:   evt.InstanceID.CurrentTrackMetaData.Val,
		TrackDuration:          evt.InstanceID.CurrentTrackDuration.Val,
		RelTime:                evt.InstanceID.RelTime.Val,
		AVTransportURI:         evt.InstanceID.AVTransportURI.Val,
		AVTransportURIMetaData: evt.InstanceID.AVTransportURIMetaData.Val,
	}, nil
}

func parseRenderingControlLastChange(xmlContent string) (*RenderingChange, error) {
	var evt renderingControlEvent
	if err := xml.Unmarshal([]byte(xmlContent), &evt); err != nil {
		return nil, err
	}

	change := &RenderingChange{}

	// Only the Master channel is meaningful for whole-device state.
	for _, vol := range evt.InstanceID.Volume {
		if vol.Channel == "Master" || vol.Channel == "" {
			if v, err := strconv.Atoi(vol.Val); err == nil {
				change.Volume = v
				change.HasVolume = true
			}
		}
	}
	for _, mute := range evt.InstanceID.Mute {
		if mute.Channel == "Master" || mute.Channel == "" {
			change.Muted = mute.Val == "1"
			change.HasMute = true
		}
	}

	return change, nil
}

func mergeTransportProperties(props map[string]string, change *TransportChange) {
	set := func(key, value string) {
		if value != "" {
			props[key] = value
		}
	}
	set("TransportState", change.TransportState)
	set("TransportStatus", change.TransportStatus)
	set("CurrentTrackURI", change.CurrentTrackURI)
	set("CurrentTrackMetaData", change.CurrentTrackMetaData)
	set("TrackDuration", change.TrackDuration)
	set("RelTime", change.RelTime)
	set("AVTransportURI", change.AVTransportURI)
	set("AVTransportURIMetaData", change.AVTransportURIMetaData)
}

func mergeRenderingProperties(props map[string]string, change *RenderingChange) {
	if change.HasVolume {
		props["Volume"] = strconv.Itoa(change.Volume)
	}
	if change.HasMute {
		if change.Muted {
			props["Mute"] = "1"
		} else {
			props["Mute"] = "0"
		}
	}
}

// ParseTimeout extracts the granted duration in seconds from a SUBSCRIBE
// response TIMEOUT header ("Second-1800" or "infinite").
func ParseTimeout(timeoutHeader string) int {
	if strings.EqualFold(timeoutHeader, "infinite") {
		// Treat infinite as a day so renewal arithmetic stays sane.
		return 86400
	}
	timeoutHeader = strings.TrimPrefix(timeoutHeader, "Second-")
	if timeout, err := strconv.Atoi(timeoutHeader); err == nil && timeout > 0 {
		return timeout
	}
	return 0
}
