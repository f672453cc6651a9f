package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

const rewriteAnswerMarker = "변환된 검색 쿼리:"

type conversion struct {
	text   string
	method domain.ConversionMethod
}

// TermNormalizer rewrites colloquial lease-dispute questions into legal
// terminology. Conversions are cached by exact input text for the lifetime of
// the normalizer, so a repeated question never reaches the language model twice.
type TermNormalizer struct {
	indicators []string
	mappings   []domain.TermMapping
	replacer   *strings.Replacer
	completer  ports.Completer
	cache      ports.Cache[string, string]
	inflight   singleflight.Group
	logger     *slog.Logger
}

// NewTermNormalizer builds a normalizer. completer may be nil, in which case
// queries the rule table cannot change are passed through unchanged.
func NewTermNormalizer(
	vocab domain.Vocabulary,
	completer ports.Completer,
	cache ports.Cache[string, string],
	logger *slog.Logger,
) *TermNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	pairs := make([]string, 0, len(vocab.TermMappings)*2)
	for _, m := range vocab.TermMappings {
		pairs = append(pairs, m.From, m.To)
	}
	return &TermNormalizer{
		indicators: vocab.LegalIndicators,
		mappings:   vocab.TermMappings,
		replacer:   strings.NewReplacer(pairs...),
		completer:  completer,
		cache:      cache,
		logger:     logger,
	}
}

// Convert never fails: on any internal fault the original query is returned
// with ConversionError.
func (n *TermNormalizer) Convert(ctx context.Context, query string) (converted string, method domain.ConversionMethod) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("query_conversion_panic", "query", query, "panic", fmt.Sprint(r))
			converted, method = query, domain.ConversionError
		}
	}()

	if strings.TrimSpace(query) == "" || n.IsLegalQuery(query) {
		return query, domain.ConversionNone
	}
	if cached, ok := n.cache.Get(query); ok {
		return cached, domain.ConversionCached
	}

	ruled := n.ApplyRules(query)
	if ruled != query {
		n.cache.Add(query, ruled)
		n.logger.Debug("query_converted", "method", domain.ConversionRules, "query", query, "converted", ruled)
		return ruled, domain.ConversionRules
	}

	if ctx.Err() != nil {
		return query, domain.ConversionError
	}

	ch := n.inflight.DoChan(query, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error("query_rewrite_panic", "query", query, "panic", fmt.Sprint(r))
				v = conversion{text: query, method: domain.ConversionError}
			}
		}()
		if cached, ok := n.cache.Get(query); ok {
			return conversion{text: cached, method: domain.ConversionCached}, nil
		}
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		out := n.rewrite(callCtx, query, ruled)
		if out.method != domain.ConversionError {
			n.cache.Add(query, out.text)
		}
		return out, nil
	})
	select {
	case <-ctx.Done():
		n.logger.Warn("query_conversion_abandoned", "query", query, "error", ctx.Err())
		return query, domain.ConversionError
	case res := <-ch:
		out := res.Val.(conversion)
		return out.text, out.method
	}
}

// IsLegalQuery reports whether the query already carries legal terminology.
func (n *TermNormalizer) IsLegalQuery(query string) bool {
	return domain.ContainsAny(query, n.indicators)
}

// ApplyRules performs one left-to-right pass of the ordered substitution
// table. Replaced text is never rescanned, so "전세금" becomes "임대차보증금"
// and is not rewritten again by the shorter "보증금" rule.
func (n *TermNormalizer) ApplyRules(query string) string {
	return n.replacer.Replace(query)
}

func (n *TermNormalizer) rewrite(ctx context.Context, query, ruled string) conversion {
	if n.completer == nil {
		return conversion{text: ruled, method: domain.ConversionRules}
	}

	resp, err := n.completer.Complete(ctx, buildRewritePrompt(query, n.mappings))
	if err == nil {
		if text := stripRewriteEcho(resp); text != "" {
			n.logger.Info("query_converted", "method", domain.ConversionLM, "query", query, "converted", text)
			return conversion{text: text, method: domain.ConversionLM}
		}
		err = errors.New("empty rewrite response")
	}

	if ctx.Err() != nil {
		// Timed out: do not pin the fallback in the cache.
		n.logger.Warn("query_rewrite_timed_out", "query", query, "error", err)
		return conversion{text: ruled, method: domain.ConversionError}
	}
	n.logger.Warn("query_rewrite_failed", "query", query, "error", err)
	return conversion{text: ruled, method: domain.ConversionRules}
}

func stripRewriteEcho(resp string) string {
	text := strings.TrimSpace(resp)
	if idx := strings.LastIndex(text, rewriteAnswerMarker); idx >= 0 {
		text = strings.TrimSpace(text[idx+len(rewriteAnswerMarker):])
	}
	return strings.Trim(text, "\"'` \n")
}

func buildRewritePrompt(query string, mappings []domain.TermMapping) string {
	var guide strings.Builder
	for _, m := range mappings {
		guide.WriteString("   - ")
		guide.WriteString(m.From)
		guide.WriteString(" → ")
		guide.WriteString(m.To)
		guide.WriteString("\n")
	}

	return fmt.Sprintf(`다음 일상어 질문을 법률 검색에 적합한 전문 용어로 바꾸세요.

원래 질문: %s

규칙:
1. 일상어를 정확한 법률 용어로 바꿉니다. 참고 대응표:
%s2. 핵심 법적 쟁점이 드러나게 표현합니다.
3. 검색에 도움이 되는 관련 법률 키워드를 덧붙입니다.
4. 원래 질문의 의도는 그대로 유지합니다.

설명 없이 변환된 쿼리 한 줄만 답하세요.

%s`, query, guide.String(), rewriteAnswerMarker)
}
