// ABOUTME: Native format negotiation
// ABOUTME: Maps channel layout and sample type pairs to device format identifiers
package voice

import (
	"fmt"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// Extension names probed during negotiation
const (
	ExtMultiChannel = "AL_EXT_MCFORMATS"
	ExtFloat32      = "AL_EXT_FLOAT32"
)

// Base format identifiers every device supports
const (
	FormatMono8    = 0x1100
	FormatMono16   = 0x1101
	FormatStereo8  = 0x1102
	FormatStereo16 = 0x1103
)

// Format is a device-native PCM format
type Format struct {
	ID       int
	Channels audio.ChannelConfig
	Type     audio.SampleType
}

// FrameSize returns the bytes per interleaved frame
func (f Format) FrameSize() int {
	return audio.FramesToBytes(1, f.Channels, f.Type)
}

type formatEntry struct {
	name     string
	id       int
	channels audio.ChannelConfig
	typ      audio.SampleType
}

var baseFormats = []formatEntry{
	{"AL_FORMAT_MONO16", FormatMono16, audio.ChannelMono, audio.SampleInt16},
	{"AL_FORMAT_MONO8", FormatMono8, audio.ChannelMono, audio.SampleUInt8},
	{"AL_FORMAT_STEREO16", FormatStereo16, audio.ChannelStereo, audio.SampleInt16},
	{"AL_FORMAT_STEREO8", FormatStereo8, audio.ChannelStereo, audio.SampleUInt8},
}

var multiChannelFormats = []formatEntry{
	{name: "AL_FORMAT_QUAD16", channels: audio.ChannelQuad, typ: audio.SampleInt16},
	{name: "AL_FORMAT_QUAD8", channels: audio.ChannelQuad, typ: audio.SampleUInt8},
	{name: "AL_FORMAT_51CHN16", channels: audio.Channel5Point1, typ: audio.SampleInt16},
	{name: "AL_FORMAT_51CHN8", channels: audio.Channel5Point1, typ: audio.SampleUInt8},
	{name: "AL_FORMAT_71CHN16", channels: audio.Channel7Point1, typ: audio.SampleInt16},
	{name: "AL_FORMAT_71CHN8", channels: audio.Channel7Point1, typ: audio.SampleUInt8},
}

var floatFormats = []formatEntry{
	{name: "AL_FORMAT_MONO_FLOAT32", channels: audio.ChannelMono, typ: audio.SampleFloat32},
	{name: "AL_FORMAT_STEREO_FLOAT32", channels: audio.ChannelStereo, typ: audio.SampleFloat32},
}

var floatMultiChannelFormats = []formatEntry{
	{name: "AL_FORMAT_QUAD32", channels: audio.ChannelQuad, typ: audio.SampleFloat32},
	{name: "AL_FORMAT_51CHN32", channels: audio.Channel5Point1, typ: audio.SampleFloat32},
	{name: "AL_FORMAT_71CHN32", channels: audio.Channel7Point1, typ: audio.SampleFloat32},
}

// ProbedFormatNames lists every format name resolved through Device.EnumValue
func ProbedFormatNames() []string {
	var names []string
	for _, list := range [][]formatEntry{multiChannelFormats, floatFormats, floatMultiChannelFormats} {
		for _, e := range list {
			names = append(names, e.name)
		}
	}
	return names
}

// NegotiateFormat finds the native format for a layout and sample type
func NegotiateFormat(dev Device, chans audio.ChannelConfig, typ audio.SampleType) (Format, error) {
	for _, e := range baseFormats {
		if e.channels == chans && e.typ == typ {
			return Format{ID: e.id, Channels: chans, Type: typ}, nil
		}
	}

	mc := dev.HasExtension(ExtMultiChannel)
	if mc {
		if f, ok := probe(dev, multiChannelFormats, chans, typ); ok {
			return f, nil
		}
	}
	if dev.HasExtension(ExtFloat32) {
		if f, ok := probe(dev, floatFormats, chans, typ); ok {
			return f, nil
		}
		if mc {
			if f, ok := probe(dev, floatMultiChannelFormats, chans, typ); ok {
				return f, nil
			}
		}
	}

	return Format{}, fmt.Errorf("%w (%s, %s)", ErrUnsupportedFormat, chans, typ)
}

func probe(dev Device, list []formatEntry, chans audio.ChannelConfig, typ audio.SampleType) (Format, bool) {
	for _, e := range list {
		if e.channels != chans || e.typ != typ {
			continue
		}
		id := dev.EnumValue(e.name)
		if id != 0 && id != -1 {
			return Format{ID: id, Channels: chans, Type: typ}, true
		}
	}
	return Format{}, false
}
