package soap

import (
	"context"
	"strconv"
)

// Transport Actions

func (c *Client) GetTransportInfo(ctx context.Context, ip string) (TransportInfo, error) {
	args, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "GetTransportInfo", Args{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return TransportInfo{}, err
	}
	return parseTransportInfo(args), nil
}

func (c *Client) GetPositionInfo(ctx context.Context, ip string) (PositionInfo, error) {
	args, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "GetPositionInfo", Args{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return PositionInfo{}, err
	}
	return parsePositionInfo(args), nil
}

func (c *Client) GetMediaInfo(ctx context.Context, ip string) (MediaInfo, error) {
	args, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "GetMediaInfo", Args{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return MediaInfo{}, err
	}
	return parseMediaInfo(args), nil
}

func (c *Client) Play(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Play", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Speed", Value: "1"},
	})
	return err
}

func (c *Client) Pause(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Pause", Args{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

func (c *Client) Stop(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Stop", Args{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

func (c *Client) Next(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Next", Args{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

func (c *Client) Previous(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Previous", Args{
		{Name: "InstanceID", Value: "0"},
	})
	return err
}

func (c *Client) Seek(ctx context.Context, ip, unit, target string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Seek", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Unit", Value: unit},
		{Name: "Target", Value: target},
	})
	return err
}

func (c *Client) SetAVTransportURI(ctx context.Context, ip, uri, metadata string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "SetAVTransportURI", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "CurrentURI", Value: uri},
		{Name: "CurrentURIMetaData", Value: metadata},
	})
	return err
}

// Rendering Actions

func (c *Client) GetVolume(ctx context.Context, ip string) (VolumeInfo, error) {
	args, err := c.ExecuteAction(ctx, ip, ServiceRenderingControl, "GetVolume", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
	})
	if err != nil {
		return VolumeInfo{}, err
	}
	return parseVolume(args), nil
}

func (c *Client) SetVolume(ctx context.Context, ip string, volume int) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceRenderingControl, "SetVolume", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: strconv.Itoa(volume)},
	})
	return err
}

func (c *Client) GetMute(ctx context.Context, ip string) (MuteInfo, error) {
	args, err := c.ExecuteAction(ctx, ip, ServiceRenderingControl, "GetMute", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
	})
	if err != nil {
		return MuteInfo{}, err
	}
	return parseMute(args), nil
}

func (c *Client) SetMute(ctx context.Context, ip string, mute bool) error {
	desired := "0"
	if mute {
		desired = "1"
	}
	_, err := c.ExecuteAction(ctx, ip, ServiceRenderingControl, "SetMute", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredMute", Value: desired},
	})
	return err
}
