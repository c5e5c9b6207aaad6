// Package report renders verdicts as text for people reading them in a chat
// or a terminal.
package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/videlboga/ReceiptScan/internal/pattern"
	"github.com/videlboga/ReceiptScan/internal/rules"
)

type fieldLabel struct {
	icon     string
	name     string
	unit     string
	notFound string
	valid    string
	invalid  string
}

var labels = map[pattern.Kind]fieldLabel{
	pattern.KindPhone:     {icon: "📱", name: "Телефон", notFound: "не найден", valid: "валиден", invalid: "не найден в списке валидных"},
	pattern.KindAmount:    {icon: "💰", name: "Сумма", unit: " руб", notFound: "не найдена", valid: "валидна", invalid: "не найдена в списке валидных"},
	pattern.KindAccount:   {icon: "🏦", name: "Счет", notFound: "не найден", valid: "валиден", invalid: "не найден в списке валидных"},
	pattern.KindCard:      {icon: "💳", name: "Карта", notFound: "не найдена", valid: "валидна", invalid: "не найдена в списке валидных"},
	pattern.KindDate:      {icon: "📅", name: "Дата", notFound: "не найдена"},
	pattern.KindTime:      {icon: "🕐", name: "Время", notFound: "не найдено"},
	pattern.KindRecipient: {icon: "👤", name: "Получатель", notFound: "не найден"},
}

func labelFor(kind pattern.Kind) fieldLabel {
	if l, ok := labels[kind]; ok {
		return l
	}
	return fieldLabel{icon: "•", name: string(kind), notFound: "не найдено", valid: "валидно", invalid: "не найдено в списке валидных"}
}

// Render formats a verdict: status banner, every field, the OCR confidence
// gate, the aggregate confidence and the recommendations.
func Render(v rules.Verdict) string {
	var b strings.Builder

	b.WriteString("📊 Результат проверки чека\n\n")
	if v.Valid {
		b.WriteString("✅ СТАТУС: ЧЕК ВАЛИДЕН\n")
	} else {
		b.WriteString("❌ СТАТУС: ЧЕК НЕ ВАЛИДЕН\n")
	}
	fmt.Fprintf(&b, "📈 Оценка уверенности: %.1f%%\n\n", v.Confidence)

	b.WriteString("🔍 Найденные данные:\n")
	for _, kind := range kinds(v) {
		b.WriteString(fieldLine(kind, v.Fields[kind]))
		b.WriteByte('\n')
	}

	gate := "✅"
	if !v.ConfidenceGate {
		gate = "❌"
	}
	fmt.Fprintf(&b, "\n%s Уверенность OCR: %.1f%% (минимум %.1f%%)\n", gate, v.OCRConfidence, v.MinConfidence)

	if len(v.Recommendations) > 0 {
		b.WriteString("\n💡 Рекомендации:\n")
		for _, r := range v.Recommendations {
			fmt.Fprintf(&b, "• %s\n", r)
		}
	}
	return b.String()
}

// kinds returns the known kinds in reporting order followed by any other
// kind present in the verdict.
func kinds(v rules.Verdict) []pattern.Kind {
	out := append([]pattern.Kind(nil), pattern.Kinds...)
	var extra []pattern.Kind
	for kind := range v.Fields {
		if pattern.Order(kind) == len(pattern.Kinds) {
			extra = append(extra, kind)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func fieldLine(kind pattern.Kind, res rules.FieldResult) string {
	l := labelFor(kind)
	if !res.Found {
		mark := "➖"
		if res.Required {
			mark = "❌"
		}
		return fmt.Sprintf("%s %s %s: %s", mark, l.icon, l.name, l.notFound)
	}

	value := res.Value + l.unit
	switch {
	case !res.Judged:
		return fmt.Sprintf("ℹ️ %s %s: %s", l.icon, l.name, value)
	case res.Valid:
		return fmt.Sprintf("✅ %s %s: %s (%s)", l.icon, l.name, value, l.valid)
	default:
		return fmt.Sprintf("❌ %s %s: %s (%s)", l.icon, l.name, value, l.invalid)
	}
}

// RenderSummary formats the rules in effect
func RenderSummary(s rules.Summary) string {
	var b strings.Builder
	b.WriteString("🎯 Текущие правила валидации:\n")
	fmt.Fprintf(&b, "• Валидные телефоны: %d\n", s.Phones)
	fmt.Fprintf(&b, "• Валидные суммы: %d\n", s.Amounts)
	fmt.Fprintf(&b, "• Валидные счета: %d\n", s.Accounts)
	fmt.Fprintf(&b, "• Валидные карты: %d\n", s.Cards)
	fmt.Fprintf(&b, "• Минимальная уверенность: %.1f%%\n", s.MinConfidence)
	fmt.Fprintf(&b, "• Толерантность суммы: ±%.2f руб\n", s.AmountTolerance)
	if s.ConfidenceExpression != "" {
		fmt.Fprintf(&b, "• Формула уверенности: %s\n", s.ConfidenceExpression)
	} else {
		fmt.Fprintf(&b, "• Вес OCR в оценке уверенности: %.2f\n", s.OCRWeight)
	}
	return b.String()
}
