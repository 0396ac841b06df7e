package template

import (
	"errors"
	"fmt"
	"strings"
)

// MeetingSummaryHeader is the H1 every meeting summary artifact starts
// with; the reviewer stage requires it.
const MeetingSummaryHeader = "# 회의 결과 요약"

// maxPoints caps how many note lines make it into the summary.
const maxPoints = 5

// MeetingSummary renders Korean meeting-minutes summaries.
type MeetingSummary struct{}

func (MeetingSummary) Name() string { return "meeting_summary" }

func (MeetingSummary) RequiredFields() []string {
	return []string{"meeting_title", "meeting_date", "participants", "notes"}
}

func (MeetingSummary) Render(input map[string]any) (string, error) {
	points := extractPoints(fmt.Sprint(input["notes"]), maxPoints)
	if len(points) == 0 {
		return "", errors.New("notes must include at least one meaningful line")
	}

	participants, err := participantList(input["participants"])
	if err != nil {
		return "", err
	}
	participantText := "N/A"
	if len(participants) > 0 {
		participantText = strings.Join(participants, ", ")
	}

	report := []string{
		MeetingSummaryHeader,
		"",
		"- 회의 제목: " + fieldOr(input, "meeting_title", "N/A"),
		"- 회의 날짜: " + fieldOr(input, "meeting_date", "N/A"),
		"- 참석자: " + participantText,
		"",
		"## 핵심 논점",
	}
	for _, point := range points {
		report = append(report, "- "+point)
	}
	report = append(report,
		"",
		"## 액션 아이템",
		"| 항목 | 담당자 | 기한 | 우선순위 | 상태 |",
		"|---|---|---|---|---|",
	)
	for i := range points {
		report = append(report, fmt.Sprintf("| Action %d | TBD | TBD | Medium | Open |", i+1))
	}
	report = append(report,
		"",
		"## 확인 필요",
		"- 담당자/기한 확정 필요",
	)
	return strings.TrimSpace(strings.Join(report, "\n")) + "\n", nil
}

func (MeetingSummary) Review(artifact string) error {
	if !strings.Contains(artifact, MeetingSummaryHeader) {
		return errors.New("review failed: report header missing")
	}
	return nil
}

// extractPoints turns free-form notes into at most limit bullet points:
// one per non-blank line, with leading/trailing list markers stripped.
func extractPoints(notes string, limit int) []string {
	raw := strings.ReplaceAll(notes, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.Trim(line, "-* \t"))
	}
	if len(lines) == 0 {
		if s := strings.TrimSpace(notes); s != "" {
			return []string{s}
		}
		return nil
	}
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

func participantList(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	case []string:
		return list, nil
	default:
		return nil, errors.New("participants must be a list")
	}
}

func fieldOr(input map[string]any, key, fallback string) string {
	v, ok := input[key]
	if !ok || v == nil || v == "" {
		return fallback
	}
	return fmt.Sprint(v)
}
