package markitdown

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}
	audioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".oga", ".flac", ".weba", ".aac"}
)

// imageConverter reports basic metadata and, with an LLM, a description.
type imageConverter struct{}

func NewImageConverter() DocumentConverter {
	return &imageConverter{}
}

func (c *imageConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, imageExtensions...) || hasMIMEPrefix(info, "image/")
}

func (c *imageConverter) Convert(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var sb strings.Builder
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		fmt.Fprintf(&sb, "ImageSize: %dx%d\n", cfg.Width, cfg.Height)
		if info.MIMEType == "" {
			info.MIMEType = "image/" + format
		}
	}
	if info.MIMEType != "" {
		fmt.Fprintf(&sb, "MIMEType: %s\n", info.MIMEType)
	}
	fmt.Fprintf(&sb, "FileSize: %s\n", humanize.Bytes(uint64(len(data))))

	if opts.LLM != nil {
		description, err := opts.LLM.DescribeImage(ctx, data, info.MIMEType)
		if err != nil {
			return nil, err
		}
		sb.WriteString("\n# Description:\n")
		sb.WriteString(strings.TrimSpace(description))
		sb.WriteString("\n")
	}
	return &Result{Markdown: sb.String()}, nil
}

// audioConverter reports metadata and, with an LLM, a transcript from the
// transcription endpoint.
type audioConverter struct{}

func NewAudioConverter() DocumentConverter {
	return &audioConverter{}
}

func (c *audioConverter) Accepts(info StreamInfo) bool {
	// The transcription endpoint also takes mp4 and webm containers.
	return hasExtension(info, audioExtensions...) || hasExtension(info, ".mp4", ".webm") ||
		hasMIMEPrefix(info, "audio/", "video/mp4", "video/webm")
}

func (c *audioConverter) Convert(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts Options) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	var sb strings.Builder
	if info.MIMEType != "" {
		fmt.Fprintf(&sb, "MIMEType: %s\n", info.MIMEType)
	}
	fmt.Fprintf(&sb, "FileSize: %s\n", humanize.Bytes(uint64(len(data))))
	if d, ok := wavDuration(data); ok {
		fmt.Fprintf(&sb, "Duration: %s\n", d.Round(time.Millisecond))
	}

	sb.WriteString("\n### Audio Transcript:\n")
	if opts.LLM == nil {
		sb.WriteString("[No transcription available: LLM client not configured]")
		return &Result{Markdown: sb.String()}, nil
	}

	name := info.Filename
	if name == "" {
		name = "audio" + info.Extension
	}
	transcript, err := opts.LLM.Transcribe(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if transcript = strings.TrimSpace(transcript); transcript == "" {
		transcript = "[No speech detected]"
	}
	sb.WriteString(transcript)
	return &Result{Markdown: sb.String()}, nil
}

// wavDuration reads the RIFF fmt and data chunks of a PCM WAV file.
func wavDuration(data []byte) (time.Duration, bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, false
	}
	var byteRate uint32
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		switch id {
		case "fmt ":
			if body+12 <= len(data) {
				byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			}
		case "data":
			if byteRate == 0 {
				return 0, false
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second)), true
		}
		pos = body + int(size) + int(size%2)
	}
	return 0, false
}
