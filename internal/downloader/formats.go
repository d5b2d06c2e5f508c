package downloader

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"vidflow/internal/engine"
	"vidflow/internal/entity"
)

// codecNone is what the engine reports for a stream a format does not carry.
const codecNone = "none"

const (
	noteCombined  = "video+audio"
	noteVideoOnly = "video-only"
	noteAudioOnly = "audio-only"
)

// SelectFormats filters raw formats down to the variants that can be downloaded
// as-is or merged into container, ranked by descending total bitrate with
// unknown bitrates last. Ties keep their input order.
func SelectFormats(raw []engine.Format, container string) []entity.FormatOption {
	out := make([]entity.FormatOption, 0, len(raw))

	for _, f := range raw {
		hasAudio := codecPresent(f.ACodec)
		hasVideo := codecPresent(f.VCodec)

		if !included(hasAudio, hasVideo, f.Ext, container) {
			continue
		}

		out = append(out, entity.FormatOption{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Filesize:   f.Filesize,
			FormatNote: formatNote(f, hasAudio, hasVideo),
			TBR:        f.TBR,
			HasAudio:   hasAudio,
			HasVideo:   hasVideo,
		})
	}

	slices.SortStableFunc(out, func(a, b entity.FormatOption) int {
		return compareTBR(a.TBR, b.TBR)
	})

	return out
}

func included(hasAudio, hasVideo bool, ext, container string) bool {
	switch {
	case hasAudio && hasVideo:
		return true
	case hasVideo:
		return ext == container
	default:
		return hasAudio
	}
}

func formatNote(f engine.Format, hasAudio, hasVideo bool) string {
	parts := make([]string, 0, 3)

	if f.Height != nil && *f.Height > 0 {
		parts = append(parts, strconv.Itoa(int(*f.Height))+"p")
	}

	if f.FPS != nil && *f.FPS > 0 {
		parts = append(parts, strconv.FormatFloat(*f.FPS, 'f', -1, 64)+"fps")
	}

	switch {
	case hasAudio && hasVideo:
		parts = append(parts, noteCombined)
	case hasVideo:
		parts = append(parts, noteVideoOnly)
	default:
		parts = append(parts, noteAudioOnly)
	}

	return strings.Join(parts, " ")
}

// compareTBR orders descending by bitrate, nil last.
func compareTBR(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}

// codecPresent reports whether the engine described a stream for codec.
// A missing codec field is unknown, not absent.
func codecPresent(codec *string) bool {
	return codec == nil || *codec != codecNone
}
