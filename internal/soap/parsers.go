package soap

import (
	"strconv"
	"strings"
)

func parseTransportInfo(args Args) TransportInfo {
	return TransportInfo{
		CurrentTransportState:  args.Value("CurrentTransportState"),
		CurrentTransportStatus: args.Value("CurrentTransportStatus"),
		CurrentSpeed:           args.Value("CurrentSpeed"),
	}
}

func parsePositionInfo(args Args) PositionInfo {
	track, _ := strconv.Atoi(args.Value("Track"))
	return PositionInfo{
		Track:         track,
		TrackDuration: args.Value("TrackDuration"),
		TrackMetaData: args.Value("TrackMetaData"),
		TrackURI:      args.Value("TrackURI"),
		RelTime:       args.Value("RelTime"),
		AbsTime:       args.Value("AbsTime"),
	}
}

func parseMediaInfo(args Args) MediaInfo {
	nrTracks, _ := strconv.Atoi(args.Value("NrTracks"))
	return MediaInfo{
		NrTracks:           nrTracks,
		MediaDuration:      args.Value("MediaDuration"),
		CurrentURI:         args.Value("CurrentURI"),
		CurrentURIMetaData: args.Value("CurrentURIMetaData"),
	}
}

func parseVolume(args Args) VolumeInfo {
	vol, _ := strconv.Atoi(args.Value("CurrentVolume"))
	return VolumeInfo{CurrentVolume: vol}
}

func parseMute(args Args) MuteInfo {
	mute := args.Value("CurrentMute")
	return MuteInfo{CurrentMute: mute == "1" || strings.EqualFold(mute, "true")}
}
