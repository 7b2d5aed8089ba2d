package stats

import (
	"fmt"

	"github.com/trezcool/insights/core/ingest"
)

const (
	noDataStatus = "분석에 필요한 기록이 아직 부족합니다. 과제 기록이 쌓이면 자세한 분석을 제공합니다."
	noDataHabit  = "꾸준히 과제를 제출하며 학습 기록을 만들어 가세요."
)

// CommentFor generates the teacher comment of a student out of their competency bands.
func CommentFor(name string, records []ingest.Record) Comment {
	if len(records) == 0 {
		return Comment{Status: noDataStatus, Habit: noDataHabit}
	}

	radar := Compute(records).Radar
	var status, habit string

	switch {
	case radar.Achievement >= 90 && radar.Stability >= 80:
		status = fmt.Sprintf("%s 학생은 높은 '성취도'와 흔들림 없는 '안정성'을 함께 갖추고 있습니다. "+
			"난도가 높은 문항에서도 점수가 고르게 유지되며 최상위권 실력을 꾸준히 보여 주고 있습니다.", name)
	case radar.Achievement >= 90:
		status = fmt.Sprintf("%s 학생은 '성취도'가 매우 높고 문제 해결 감각이 뛰어납니다. "+
			"다만 과제에 따라 점수 편차가 보이므로 '안정성'을 다듬으면 한층 완성된 실력이 될 것입니다.", name)
	case radar.Achievement >= 80 && radar.Sincerity >= 80:
		status = fmt.Sprintf("%s 학생은 성실한 복습 습관 덕분에 꾸준히 성장하고 있습니다. "+
			"배운 내용을 자기 것으로 만드는 힘이 좋아 심화 문항에서도 곧 좋은 결과가 기대됩니다.", name)
	case radar.Achievement >= 80:
		status = fmt.Sprintf("%s 학생은 개념 이해가 빠르고 '성취도'도 양호합니다. "+
			"풀이 과정을 조금 더 꼼꼼히 점검하면 놓치는 문항이 줄어 더 높은 점수에 도달할 수 있습니다.", name)
	case radar.Achievement >= 70:
		status = fmt.Sprintf("%s 학생은 기본 유형을 안정적으로 해결하고 있습니다. "+
			"여러 개념이 얽힌 고난도 문항에서 어려움이 보여, 약한 단원을 보완하면 상위권 진입이 가능합니다.", name)
	default:
		status = fmt.Sprintf("%s 학생은 아직 실력이 충분히 드러나지 않은 단계입니다. "+
			"개념을 다지는 지금의 시행착오가 밑거름이 되므로 '정확성'에 집중하면 성취도가 빠르게 오를 것입니다.", name)
	}

	switch {
	case radar.Achievement >= 90:
		habit = "지금의 학습 리듬을 유지하면서 직접 문제를 만들어 보거나 친구에게 풀이를 설명해 보는 능동적인 학습을 권합니다."
	case radar.Achievement >= 70:
		habit = "틀린 문제마다 놓친 개념을 짧게 메모하는 오답 정리 습관을 들여 보세요. 약점이 하나씩 줄어드는 것을 느낄 수 있습니다."
	default:
		habit = "교과서 핵심 예제를 스스로 설명할 수 있을 때까지 반복해 보세요. 작은 성공이 쌓이면 자신감과 실력이 함께 자랍니다."
	}

	return Comment{Status: status, Habit: habit}
}
