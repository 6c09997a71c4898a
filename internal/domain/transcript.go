package domain

import (
	"sort"
	"strings"
	"time"
)

// TranscriptTimeLayout is ISO-8601 in UTC with millisecond precision.
const TranscriptTimeLayout = "2006-01-02T15:04:05.000Z"

// Speaker labels used in transcript lines.
const (
	SpeakerSupport = "Support"
	SpeakerClient  = "Client"
)

// TranscriptLine renders one message as "[<sentAt>] <speaker>: <content>".
func TranscriptLine(m ChatMessage) string {
	speaker := SpeakerClient
	if m.IsFromSupport {
		speaker = SpeakerSupport
	}

	var b strings.Builder
	b.Grow(len(TranscriptTimeLayout) + len(speaker) + len(m.Content) + 5)
	b.WriteByte('[')
	b.WriteString(m.SentAt.UTC().Format(TranscriptTimeLayout))
	b.WriteString("] ")
	b.WriteString(speaker)
	b.WriteString(": ")
	b.WriteString(m.Content)
	return b.String()
}

// RenderTranscript joins the messages with "\n" in ascending SentAt order,
// ties broken by id. The input slice is not modified.
func RenderTranscript(messages []ChatMessage) string {
	sorted := make([]ChatMessage, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].SentAt.Equal(sorted[j].SentAt) {
			return sorted[i].SentAt.Before(sorted[j].SentAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	lines := make([]string, 0, len(sorted))
	for _, m := range sorted {
		lines = append(lines, TranscriptLine(m))
	}
	return strings.Join(lines, "\n")
}

// TruncateToMillis drops sub-millisecond precision so stored and rendered
// timestamps agree.
func TruncateToMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
