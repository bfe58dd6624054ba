package wanidata

import (
	"strings"
	"unicode"
)

// AnswerResult classifies a guess against a subject's accepted answers.
type AnswerResult int

const (
	AnswerCorrect AnswerResult = iota
	AnswerIncorrect

	// AnswerFuzzyCorrect means the guess matched only after fuzzy
	// normalization.
	AnswerFuzzyCorrect

	// AnswerMatchesNonAccepted means the guess is a real meaning or reading
	// of the subject, just not one the server accepts.
	AnswerMatchesNonAccepted

	// AnswerKanaWhenMeaning means kana was entered where a meaning was
	// expected; the guess should be re-asked, not marked wrong.
	AnswerKanaWhenMeaning

	// AnswerBadFormatting means the guess contains characters that can
	// never appear in a valid answer.
	AnswerBadFormatting
)

// answer is a candidate answer string plus whether it is accepted.
type answer struct {
	text     string
	accepted bool
}

func meaningAnswers(ms []Meaning) []answer {
	out := make([]answer, len(ms))
	for i, m := range ms {
		out[i] = answer{text: m.Meaning, accepted: m.AcceptedAnswer}
	}
	return out
}

func auxAnswers(ms []AuxMeaning) []answer {
	out := make([]answer, len(ms))
	for i, m := range ms {
		out[i] = answer{text: m.Meaning, accepted: m.Type == AuxMeaningWhitelist}
	}
	return out
}

func kanjiReadingAnswers(rs []KanjiReading) []answer {
	out := make([]answer, len(rs))
	for i, r := range rs {
		out[i] = answer{text: r.Reading, accepted: r.AcceptedAnswer}
	}
	return out
}

func vocabReadingAnswers(rs []VocabReading) []answer {
	out := make([]answer, len(rs))
	for i, r := range rs {
		out[i] = answer{text: r.Reading, accepted: r.AcceptedAnswer}
	}
	return out
}

// CheckAnswer grades a guess against a subject. isMeaning selects the
// meaning or reading answer set; radicals and kana vocabulary have no
// readings, so for them the meaning set is always used. kanaInput is the
// kana rendering of the raw input, used to catch a reading typed into a
// meaning prompt.
func CheckAnswer(s Subject, guess string, isMeaning bool, kanaInput string) AnswerResult {
	switch subj := s.(type) {
	case Radical:
		return checkGuess(meaningAnswers(subj.Data.Meanings), nil, auxAnswers(subj.Data.AuxMeanings), guess, kanaInput)
	case KanaVocab:
		return checkGuess(meaningAnswers(subj.Data.Meanings), nil, auxAnswers(subj.Data.AuxMeanings), guess, kanaInput)
	case Kanji:
		if isMeaning {
			return checkGuess(meaningAnswers(subj.Data.Meanings), kanjiReadingAnswers(subj.Data.Readings), auxAnswers(subj.Data.AuxMeanings), guess, kanaInput)
		}
		return checkGuess(kanjiReadingAnswers(subj.Data.Readings), nil, nil, guess, "")
	case Vocab:
		if isMeaning {
			return checkGuess(meaningAnswers(subj.Data.Meanings), vocabReadingAnswers(subj.Data.Readings), auxAnswers(subj.Data.AuxMeanings), guess, kanaInput)
		}
		return checkGuess(vocabReadingAnswers(subj.Data.Readings), nil, nil, guess, "")
	}
	return AnswerIncorrect
}

// checkGuess matches a guess against the primary answer set plus auxiliary
// meanings. The readings set is consulted only to detect kana entered at a
// meaning prompt.
func checkGuess(answers, readings, aux []answer, guess, kanaInput string) AnswerResult {
	expectNumeric := false
	best := AnswerIncorrect

	scan := func(set []answer) AnswerResult {
		for _, a := range set {
			text := strings.ToLower(strings.TrimSpace(a.text))
			if guess == text {
				if a.accepted {
					return AnswerCorrect
				}
				best = AnswerMatchesNonAccepted
			}
			if a.accepted && strings.ContainsFunc(a.text, unicode.IsNumber) {
				expectNumeric = true
			}
		}
		return best
	}

	if scan(answers) == AnswerCorrect {
		return AnswerCorrect
	}
	if scan(aux) == AnswerCorrect {
		return AnswerCorrect
	}

	if len(answers) > 0 && kanaInput != "" {
		if checkGuess(readings, nil, nil, kanaInput, "") == AnswerCorrect {
			return AnswerKanaWhenMeaning
		}
	}

	if best == AnswerIncorrect {
		bad := strings.ContainsFunc(guess, func(c rune) bool {
			if isKana(c) {
				return false
			}
			if expectNumeric {
				return !unicode.IsLetter(c) && !unicode.IsNumber(c)
			}
			return !unicode.IsLetter(c)
		})
		if bad {
			return AnswerBadFormatting
		}
	}

	return best
}

// isKana reports whether the rune is hiragana, katakana, or the prolonged
// sound mark.
func isKana(c rune) bool {
	return unicode.In(c, unicode.Hiragana, unicode.Katakana) || c == 'ー'
}
