package soap

// TransportInfo mirrors the GetTransportInfo response.
type TransportInfo struct {
	CurrentTransportState  string
	CurrentTransportStatus string
	CurrentSpeed           string
}

// PositionInfo mirrors the GetPositionInfo response.
type PositionInfo struct {
	Track         int
	TrackDuration string
	TrackMetaData string
	TrackURI      string
	RelTime       string
	AbsTime       string
}

// MediaInfo mirrors the GetMediaInfo response.
type MediaInfo struct {
	NrTracks           int
	MediaDuration      string
	CurrentURI         string
	CurrentURIMetaData string
}

// VolumeInfo mirrors the GetVolume response.
type VolumeInfo struct {
	CurrentVolume int
}

// MuteInfo mirrors the GetMute response.
type MuteInfo struct {
	CurrentMute bool
}
