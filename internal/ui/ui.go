// Package ui holds the terminal styling for wani output: summary counts,
// subject kind colors, and the inline markup tags WaniKani embeds in
// mnemonic text.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/wanicli/wani/internal/wanidata"
)

// Subject kind colors follow the WaniKani site palette.
var (
	RadicalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))
	KanjiStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00AA"))
	VocabStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AA00FF"))
	MeaningStyle   = lipgloss.NewStyle().Bold(true)
	ReadingStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	JapaneseStyle  = lipgloss.NewStyle().Bold(true)
	HeadlineStyle  = lipgloss.NewStyle().Bold(true)
	CountStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	ZeroCountStyle = lipgloss.NewStyle().Faint(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// StyleFor returns the display style for a subject kind.
func StyleFor(t wanidata.SubjectType) lipgloss.Style {
	switch t {
	case wanidata.SubjectTypeRadical:
		return RadicalStyle
	case wanidata.SubjectTypeKanji:
		return KanjiStyle
	default:
		return VocabStyle
	}
}

// MarkupArgs builds the tag replacement set that renders mnemonic markup
// with the styles above.
func MarkupArgs() wanidata.FmtArgs {
	return wanidata.FmtArgs{
		Radical: styleTags(RadicalStyle),
		Kanji:   styleTags(KanjiStyle),
		Vocab:   styleTags(VocabStyle),
		Meaning: styleTags(MeaningStyle),
		Reading: styleTags(ReadingStyle),
		Ja:      styleTags(JapaneseStyle),
	}
}

// styleTags splits a rendered style around a placeholder so the open and
// close escape sequences can wrap arbitrary tag content.
func styleTags(s lipgloss.Style) wanidata.TagArgs {
	const marker = "\x00"
	rendered := s.Render(marker)
	for i := 0; i < len(rendered); i++ {
		if rendered[i] == marker[0] {
			return wanidata.TagArgs{Open: rendered[:i], Close: rendered[i+1:]}
		}
	}
	return wanidata.TagArgs{}
}

// Count renders a numeric count, dimmed when zero.
func Count(n int) string {
	if n == 0 {
		return ZeroCountStyle.Render("0")
	}
	return CountStyle.Render(fmt.Sprintf("%d", n))
}
