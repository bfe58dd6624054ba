package wanidata

import (
	"fmt"
	"time"
)

// SubjectType discriminates the four learnable subject kinds. The numeric
// values are stable because they are persisted in the assignments table.
type SubjectType int

const (
	SubjectTypeRadical SubjectType = iota
	SubjectTypeKanji
	SubjectTypeVocab
	SubjectTypeKanaVocab
)

var subjectTypeNames = map[SubjectType]string{
	SubjectTypeRadical:   ObjectRadical,
	SubjectTypeKanji:     ObjectKanji,
	SubjectTypeVocab:     ObjectVocabulary,
	SubjectTypeKanaVocab: ObjectKanaVocabulary,
}

func (t SubjectType) String() string {
	if s, ok := subjectTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("subject_type(%d)", int(t))
}

// MarshalText encodes the wire name (radical, kanji, vocabulary,
// kana_vocabulary).
func (t SubjectType) MarshalText() ([]byte, error) {
	s, ok := subjectTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("invalid subject type %d", int(t))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a wire subject type name.
func (t *SubjectType) UnmarshalText(b []byte) error {
	for st, name := range subjectTypeNames {
		if name == string(b) {
			*t = st
			return nil
		}
	}
	return fmt.Errorf("unknown subject type %q", string(b))
}

// SubjectData is the attribute set shared by every subject variant. The
// variant-specific data structs embed it, so the four near-identical field
// lists exist exactly once.
type SubjectData struct {
	AuxMeanings     []AuxMeaning `json:"auxiliary_meanings"`
	CreatedAt       time.Time    `json:"created_at"`
	DocumentURL     string       `json:"document_url"`
	HiddenAt        *time.Time   `json:"hidden_at"`
	LessonPosition  int          `json:"lesson_position"`
	Level           int          `json:"level"`
	MeaningMnemonic string       `json:"meaning_mnemonic"`
	Meanings        []Meaning    `json:"meanings"`
	Slug            string       `json:"slug"`
	SRSID           int64        `json:"spaced_repetition_system_id"`
}

// Subject is implemented by the four subject variants.
type Subject interface {
	Data
	SubjectID() int64
	SubjectType() SubjectType
	Common() *SubjectData
}

// Meaning is one accepted or displayed meaning of a subject.
type Meaning struct {
	Meaning        string `json:"meaning"`
	Primary        bool   `json:"primary"`
	AcceptedAnswer bool   `json:"accepted_answer"`
}

// Auxiliary meaning polarity values.
const (
	AuxMeaningWhitelist = "whitelist"
	AuxMeaningBlacklist = "blacklist"
)

// AuxMeaning is an extra meaning that is either silently accepted
// (whitelist) or explicitly rejected (blacklist).
type AuxMeaning struct {
	Type    string `json:"type"`
	Meaning string `json:"meaning"`
}

// Radical is a subject composed into kanji.
type Radical struct {
	ID   int64
	Data RadicalData
}

// RadicalData holds radical-specific fields. Characters is optional because
// some radicals are image-only.
type RadicalData struct {
	SubjectData

	AmalgamationSubjectIDs []int64        `json:"amalgamation_subject_ids"`
	Characters             *string        `json:"characters"`
	CharacterImages        []RadicalImage `json:"character_images"`
}

// RadicalImage is a rendered glyph for radicals without a unicode character.
type RadicalImage struct {
	URL         string  `json:"url"`
	ContentType *string `json:"content_type"`
}

func (Radical) object() string           { return ObjectRadical }
func (r Radical) SubjectID() int64       { return r.ID }
func (Radical) SubjectType() SubjectType { return SubjectTypeRadical }
func (r Radical) Common() *SubjectData   { return &r.Data.SubjectData }

// Kanji reading type tags.
const (
	KanjiReadingKunyomi = "kunyomi"
	KanjiReadingNanori  = "nanori"
	KanjiReadingOnyomi  = "onyomi"
)

// Kanji is a single-character subject.
type Kanji struct {
	ID   int64
	Data KanjiData
}

// KanjiData holds kanji-specific fields.
type KanjiData struct {
	SubjectData

	Characters                string         `json:"characters"`
	AmalgamationSubjectIDs    []int64        `json:"amalgamation_subject_ids"`
	ComponentSubjectIDs       []int64        `json:"component_subject_ids"`
	MeaningHint               *string        `json:"meaning_hint"`
	ReadingHint               *string        `json:"reading_hint"`
	ReadingMnemonic           string         `json:"reading_mnemonic"`
	Readings                  []KanjiReading `json:"readings"`
	VisuallySimilarSubjectIDs []int64        `json:"visually_similar_subject_ids"`
}

// KanjiReading is one reading of a kanji, tagged kunyomi, onyomi or nanori.
type KanjiReading struct {
	Reading        string `json:"reading"`
	Primary        bool   `json:"primary"`
	AcceptedAnswer bool   `json:"accepted_answer"`
	Type           string `json:"type"`
}

func (Kanji) object() string           { return ObjectKanji }
func (k Kanji) SubjectID() int64       { return k.ID }
func (Kanji) SubjectType() SubjectType { return SubjectTypeKanji }
func (k Kanji) Common() *SubjectData   { return &k.Data.SubjectData }

// Vocab is a kanji-bearing vocabulary subject.
type Vocab struct {
	ID   int64
	Data VocabData
}

// VocabData holds vocabulary-specific fields.
type VocabData struct {
	SubjectData

	Characters          string               `json:"characters"`
	ComponentSubjectIDs []int64              `json:"component_subject_ids"`
	ContextSentences    []ContextSentence    `json:"context_sentences"`
	PartsOfSpeech       []string             `json:"parts_of_speech"`
	PronunciationAudios []PronunciationAudio `json:"pronunciation_audios"`
	Readings            []VocabReading       `json:"readings"`
	ReadingMnemonic     string               `json:"reading_mnemonic"`
}

// VocabReading is one reading of a vocabulary word.
type VocabReading struct {
	AcceptedAnswer bool   `json:"accepted_answer"`
	Primary        bool   `json:"primary"`
	Reading        string `json:"reading"`
}

// ContextSentence is an example sentence pair.
type ContextSentence struct {
	En string `json:"en"`
	Ja string `json:"ja"`
}

// PronunciationAudio points at a recorded pronunciation.
type PronunciationAudio struct {
	URL         string                `json:"url"`
	ContentType string                `json:"content_type"`
	Metadata    PronunciationMetadata `json:"metadata"`
}

// PronunciationMetadata describes the voice actor and clip of a recording.
type PronunciationMetadata struct {
	Gender           string `json:"gender"`
	SourceID         int64  `json:"source_id"`
	Pronunciation    string `json:"pronunciation"`
	VoiceActorID     int64  `json:"voice_actor_id"`
	VoiceActorName   string `json:"voice_actor_name"`
	VoiceDescription string `json:"voice_description"`
}

func (Vocab) object() string           { return ObjectVocabulary }
func (v Vocab) SubjectID() int64       { return v.ID }
func (Vocab) SubjectType() SubjectType { return SubjectTypeVocab }
func (v Vocab) Common() *SubjectData   { return &v.Data.SubjectData }

// KanaVocab is a kana-only vocabulary subject. It has no readings; the
// characters are the reading.
type KanaVocab struct {
	ID   int64
	Data KanaVocabData
}

// KanaVocabData holds kana-vocabulary-specific fields.
type KanaVocabData struct {
	SubjectData

	Characters          string               `json:"characters"`
	ContextSentences    []ContextSentence    `json:"context_sentences"`
	PartsOfSpeech       []string             `json:"parts_of_speech"`
	PronunciationAudios []PronunciationAudio `json:"pronunciation_audios"`
}

func (KanaVocab) object() string           { return ObjectKanaVocabulary }
func (k KanaVocab) SubjectID() int64       { return k.ID }
func (KanaVocab) SubjectType() SubjectType { return SubjectTypeKanaVocab }
func (k KanaVocab) Common() *SubjectData   { return &k.Data.SubjectData }
