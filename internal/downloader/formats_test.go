package downloader

import (
	"testing"

	"vidflow/internal/engine"
	"vidflow/internal/entity"
	"vidflow/pkg/ptr"

	"github.com/google/go-cmp/cmp"
)

func TestSelectFormats(t *testing.T) {
	t.Parallel()

	none := ptr.Of("none")

	tests := []struct {
		name string
		raw  []engine.Format
		want []entity.FormatOption
	}{
		{
			name: "empty input",
			raw:  nil,
			want: []entity.FormatOption{},
		},
		{
			name: "filters by stream kind and container",
			raw: []engine.Format{
				{FormatID: "18", Ext: "mp4", ACodec: ptr.Of("mp4a"), VCodec: ptr.Of("avc1"), Height: ptr.Of(360.0), TBR: ptr.Of(500.0)},
				{FormatID: "137", Ext: "mp4", ACodec: none, VCodec: ptr.Of("avc1"), Height: ptr.Of(1080.0), FPS: ptr.Of(30.0), TBR: ptr.Of(4000.0)},
				{FormatID: "248", Ext: "webm", ACodec: none, VCodec: ptr.Of("vp9"), Height: ptr.Of(1080.0), TBR: ptr.Of(3000.0)},
				{FormatID: "251", Ext: "webm", ACodec: ptr.Of("opus"), VCodec: none, TBR: ptr.Of(160.0)},
				{FormatID: "sb0", Ext: "mhtml", ACodec: none, VCodec: none},
			},
			want: []entity.FormatOption{
				{FormatID: "137", Ext: "mp4", FormatNote: "1080p 30fps video-only", TBR: ptr.Of(4000.0), HasVideo: true},
				{FormatID: "18", Ext: "mp4", FormatNote: "360p video+audio", TBR: ptr.Of(500.0), HasAudio: true, HasVideo: true},
				{FormatID: "251", Ext: "webm", FormatNote: "audio-only", TBR: ptr.Of(160.0), HasAudio: true},
			},
		},
		{
			name: "missing codec fields count as present",
			raw: []engine.Format{
				{FormatID: "x", Ext: "flv"},
			},
			want: []entity.FormatOption{
				{FormatID: "x", Ext: "flv", FormatNote: "video+audio", HasAudio: true, HasVideo: true},
			},
		},
		{
			name: "unknown bitrate sorts last and ties keep order",
			raw: []engine.Format{
				{FormatID: "a", Ext: "m4a", VCodec: none},
				{FormatID: "b", Ext: "m4a", VCodec: none, TBR: ptr.Of(128.0)},
				{FormatID: "c", Ext: "m4a", VCodec: none, TBR: ptr.Of(128.0)},
				{FormatID: "d", Ext: "m4a", VCodec: none},
				{FormatID: "e", Ext: "m4a", VCodec: none, TBR: ptr.Of(256.0)},
			},
			want: []entity.FormatOption{
				{FormatID: "e", Ext: "m4a", FormatNote: "audio-only", TBR: ptr.Of(256.0), HasAudio: true},
				{FormatID: "b", Ext: "m4a", FormatNote: "audio-only", TBR: ptr.Of(128.0), HasAudio: true},
				{FormatID: "c", Ext: "m4a", FormatNote: "audio-only", TBR: ptr.Of(128.0), HasAudio: true},
				{FormatID: "a", Ext: "m4a", FormatNote: "audio-only", HasAudio: true},
				{FormatID: "d", Ext: "m4a", FormatNote: "audio-only", HasAudio: true},
			},
		},
		{
			name: "fractional fps",
			raw: []engine.Format{
				{FormatID: "22", Ext: "mp4", ACodec: ptr.Of("mp4a"), VCodec: ptr.Of("avc1"), Height: ptr.Of(720.0), FPS: ptr.Of(29.97)},
			},
			want: []entity.FormatOption{
				{FormatID: "22", Ext: "mp4", FormatNote: "720p 29.97fps video+audio", HasAudio: true, HasVideo: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SelectFormats(tt.raw, "mp4")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SelectFormats() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectFormatsContainer(t *testing.T) {
	t.Parallel()

	raw := []engine.Format{
		{FormatID: "137", Ext: "mp4", ACodec: ptr.Of("none"), VCodec: ptr.Of("avc1")},
		{FormatID: "248", Ext: "webm", ACodec: ptr.Of("none"), VCodec: ptr.Of("vp9")},
	}

	got := SelectFormats(raw, "webm")
	if len(got) != 1 || got[0].FormatID != "248" {
		t.Fatalf("SelectFormats(webm) = %+v, want only format 248", got)
	}
}
