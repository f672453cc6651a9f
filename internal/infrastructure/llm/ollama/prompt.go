package ollama

import (
	"strings"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

const answerSystemPrompt = "당신은 법률 전문가 AI입니다. 주어진 법률 문서와 뉴스를 근거로 전세사기와 임대차 분쟁에 관한 질문에 답하세요. 근거가 부족하면 그렇다고 분명히 말하세요."

func buildAnswerPrompt(question string, history []domain.SessionTurn, contextText string) string {
	var b strings.Builder
	b.WriteString(answerSystemPrompt)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("이전 대화:\n")
		for _, turn := range history {
			switch turn.Role {
			case domain.RoleAssistant:
				b.WriteString("AI: ")
			default:
				b.WriteString("사용자: ")
			}
			b.WriteString(strings.TrimSpace(turn.Content))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("다음은 사용자의 질문과 관련된 법률 문서입니다:\n")
	b.WriteString(contextText)
	b.WriteString("\n\n사용자의 질문: ")
	b.WriteString(question)
	b.WriteString("\n도움이 되는 법률 상담 답변을 작성해 주세요.\n")
	return b.String()
}
