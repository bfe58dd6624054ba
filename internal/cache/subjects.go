package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wanicli/wani/internal/wanidata"
)

// The four subject tables share a common column prefix mirroring
// wanidata.SubjectData. The common codec below owns that prefix; each
// variant codec composes it with the variant's own columns, so the shared
// field list exists exactly once.

const subjectCommonColumns = `id,
	aux_meanings,
	created_at,
	document_url,
	hidden_at,
	lesson_position,
	level,
	meaning_mnemonic,
	meanings,
	slug,
	srs_id`

const subjectCommonColumnCount = 11

// subjectCommonParams produces the parameter prefix for a subject upsert.
func subjectCommonParams(id int64, d *wanidata.SubjectData) ([]any, error) {
	aux, err := encodeBlob(d.AuxMeanings)
	if err != nil {
		return nil, err
	}
	meanings, err := encodeBlob(d.Meanings)
	if err != nil {
		return nil, err
	}
	return []any{
		id,
		aux,
		fmtTime(d.CreatedAt),
		d.DocumentURL,
		timeToNullString(d.HiddenAt),
		d.LessonPosition,
		d.Level,
		d.MeaningMnemonic,
		meanings,
		d.Slug,
		d.SRSID,
	}, nil
}

// subjectRow is the raw scan target for the common column prefix.
type subjectRow struct {
	id              int64
	auxMeanings     string
	createdAt       string
	documentURL     string
	hiddenAt        sql.NullString
	lessonPosition  int
	level           int
	meaningMnemonic string
	meanings        string
	slug            string
	srsID           int64
}

func (r *subjectRow) dests() []any {
	return []any{
		&r.id,
		&r.auxMeanings,
		&r.createdAt,
		&r.documentURL,
		&r.hiddenAt,
		&r.lessonPosition,
		&r.level,
		&r.meaningMnemonic,
		&r.meanings,
		&r.slug,
		&r.srsID,
	}
}

// decode reconstructs the common attribute set. Errors are tagged with the
// table and row id per the codec contract.
func (r *subjectRow) decode(table string, d *wanidata.SubjectData) error {
	if err := decodeBlob(r.auxMeanings, "aux_meanings", &d.AuxMeanings); err != nil {
		return decodeErr(table, r.id, err)
	}
	created, err := parseTime(r.createdAt)
	if err != nil {
		return decodeErr(table, r.id, err)
	}
	d.CreatedAt = created
	d.DocumentURL = r.documentURL
	hidden, err := nullStringToTime(r.hiddenAt)
	if err != nil {
		return decodeErr(table, r.id, err)
	}
	d.HiddenAt = hidden
	d.LessonPosition = r.lessonPosition
	d.Level = r.level
	d.MeaningMnemonic = r.meaningMnemonic
	if err := decodeBlob(r.meanings, "meanings", &d.Meanings); err != nil {
		return decodeErr(table, r.id, err)
	}
	d.Slug = r.slug
	d.SRSID = r.srsID
	return nil
}

// placeholders builds the "(?, ?, ...)" values clause for n parameters.
func placeholders(n int) string {
	out := make([]byte, 0, 2*n+1)
	out = append(out, '(')
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',', ' ')
		}
		out = append(out, '?')
	}
	return string(append(out, ')'))
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ---- radicals ----

const radicalColumns = subjectCommonColumns + `,
	amalgamation_subject_ids,
	characters,
	character_images`

func upsertRadical(ctx context.Context, q querier, r wanidata.Radical) error {
	params, err := subjectCommonParams(r.ID, &r.Data.SubjectData)
	if err != nil {
		return fmt.Errorf("failed to encode radical %d: %w", r.ID, err)
	}
	amalg, err := encodeBlob(r.Data.AmalgamationSubjectIDs)
	if err != nil {
		return fmt.Errorf("failed to encode radical %d: %w", r.ID, err)
	}
	images, err := encodeBlob(r.Data.CharacterImages)
	if err != nil {
		return fmt.Errorf("failed to encode radical %d: %w", r.ID, err)
	}
	params = append(params, amalg, r.Data.Characters, images)

	query := "REPLACE INTO radicals (" + radicalColumns + ") VALUES " +
		placeholders(subjectCommonColumnCount+3)
	if _, err := q.ExecContext(ctx, query, params...); err != nil {
		return storeErr(fmt.Sprintf("upsert radical %d", r.ID), err)
	}
	return nil
}

func scanRadical(row rowScanner) (wanidata.Radical, error) {
	var (
		common subjectRow
		amalg  string
		chars  sql.NullString
		images string
	)
	dests := append(common.dests(), &amalg, &chars, &images)
	if err := row.Scan(dests...); err != nil {
		return wanidata.Radical{}, fmt.Errorf("failed to scan radical: %w", err)
	}

	var r wanidata.Radical
	r.ID = common.id
	if err := common.decode("radicals", &r.Data.SubjectData); err != nil {
		return wanidata.Radical{}, err
	}
	if err := decodeBlob(amalg, "amalgamation_subject_ids", &r.Data.AmalgamationSubjectIDs); err != nil {
		return wanidata.Radical{}, decodeErr("radicals", common.id, err)
	}
	if chars.Valid {
		s := chars.String
		r.Data.Characters = &s
	}
	if err := decodeBlob(images, "character_images", &r.Data.CharacterImages); err != nil {
		return wanidata.Radical{}, decodeErr("radicals", common.id, err)
	}
	return r, nil
}

// AllRadicals returns every cached radical ordered by id.
func (db *DB) AllRadicals(ctx context.Context) ([]wanidata.Radical, error) {
	query := "SELECT " + radicalColumns + " FROM radicals ORDER BY id"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query radicals: %w", err)
	}
	defer rows.Close()

	var out []wanidata.Radical
	for rows.Next() {
		r, err := scanRadical(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating radicals: %w", err)
	}
	return out, nil
}

// ---- kanji ----

const kanjiColumns = subjectCommonColumns + `,
	characters,
	amalgamation_subject_ids,
	component_subject_ids,
	meaning_hint,
	reading_hint,
	reading_mnemonic,
	readings,
	visually_similar_subject_ids`

func upsertKanji(ctx context.Context, q querier, k wanidata.Kanji) error {
	params, err := subjectCommonParams(k.ID, &k.Data.SubjectData)
	if err != nil {
		return fmt.Errorf("failed to encode kanji %d: %w", k.ID, err)
	}
	amalg, err := encodeBlob(k.Data.AmalgamationSubjectIDs)
	if err != nil {
		return fmt.Errorf("failed to encode kanji %d: %w", k.ID, err)
	}
	components, err := encodeBlob(k.Data.ComponentSubjectIDs)
	if err != nil {
		return fmt.Errorf("failed to encode kanji %d: %w", k.ID, err)
	}
	readings, err := encodeBlob(k.Data.Readings)
	if err != nil {
		return fmt.Errorf("failed to encode kanji %d: %w", k.ID, err)
	}
	similar, err := encodeBlob(k.Data.VisuallySimilarSubjectIDs)
	if err != nil {
		return fmt.Errorf("failed to encode kanji %d: %w", k.ID, err)
	}
	params = append(params,
		k.Data.Characters,
		amalg,
		components,
		k.Data.MeaningHint,
		k.Data.ReadingHint,
		k.Data.ReadingMnemonic,
		readings,
		similar,
	)

	query := "REPLACE INTO kanji (" + kanjiColumns + ") VALUES " +
		placeholders(subjectCommonColumnCount+8)
	if _, err := q.ExecContext(ctx, query, params...); err != nil {
		return storeErr(fmt.Sprintf("upsert kanji %d", k.ID), err)
	}
	return nil
}

func scanKanji(row rowScanner) (wanidata.Kanji, error) {
	var (
		common      subjectRow
		chars       string
		amalg       string
		components  string
		meaningHint sql.NullString
		readingHint sql.NullString
		mnemonic    string
		readings    string
		similar     string
	)
	dests := append(common.dests(),
		&chars, &amalg, &components, &meaningHint, &readingHint, &mnemonic, &readings, &similar)
	if err := row.Scan(dests...); err != nil {
		return wanidata.Kanji{}, fmt.Errorf("failed to scan kanji: %w", err)
	}

	var k wanidata.Kanji
	k.ID = common.id
	if err := common.decode("kanji", &k.Data.SubjectData); err != nil {
		return wanidata.Kanji{}, err
	}
	k.Data.Characters = chars
	if err := decodeBlob(amalg, "amalgamation_subject_ids", &k.Data.AmalgamationSubjectIDs); err != nil {
		return wanidata.Kanji{}, decodeErr("kanji", common.id, err)
	}
	if err := decodeBlob(components, "component_subject_ids", &k.Data.ComponentSubjectIDs); err != nil {
		return wanidata.Kanji{}, decodeErr("kanji", common.id, err)
	}
	if meaningHint.Valid {
		s := meaningHint.String
		k.Data.MeaningHint = &s
	}
	if readingHint.Valid {
		s := readingHint.String
		k.Data.ReadingHint = &s
	}
	k.Data.ReadingMnemonic = mnemonic
	if err := decodeBlob(readings, "readings", &k.Data.Readings); err != nil {
		return wanidata.Kanji{}, decodeErr("kanji", common.id, err)
	}
	if err := decodeBlob(similar, "visually_similar_subject_ids", &k.Data.VisuallySimilarSubjectIDs); err != nil {
		return wanidata.Kanji{}, decodeErr("kanji", common.id, err)
	}
	return k, nil
}

// AllKanji returns every cached kanji ordered by id.
func (db *DB) AllKanji(ctx context.Context) ([]wanidata.Kanji, error) {
	query := "SELECT " + kanjiColumns + " FROM kanji ORDER BY id"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query kanji: %w", err)
	}
	defer rows.Close()

	var out []wanidata.Kanji
	for rows.Next() {
		k, err := scanKanji(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kanji: %w", err)
	}
	return out, nil
}

// ---- vocab ----

const vocabColumns = subjectCommonColumns + `,
	characters,
	component_subject_ids,
	context_sentences,
	parts_of_speech,
	pronunciation_audios,
	readings,
	reading_mnemonic`

func upsertVocab(ctx context.Context, q querier, v wanidata.Vocab) error {
	params, err := subjectCommonParams(v.ID, &v.Data.SubjectData)
	if err != nil {
		return fmt.Errorf("failed to encode vocab %d: %w", v.ID, err)
	}
	components, err := encodeBlob(v.Data.ComponentSubjectIDs)
	if err != nil {
		return fmt.Errorf("failed to encode vocab %d: %w", v.ID, err)
	}
	sentences, err := encodeBlob(v.Data.ContextSentences)
	if err != nil {
		return fmt.Errorf("failed to encode vocab %d: %w", v.ID, err)
	}
	parts, err := encodeBlob(v.Data.PartsOfSpeech)
	if err != nil {
		return fmt.Errorf("failed to encode vocab %d: %w", v.ID, err)
	}
	audios, err := encodeBlob(v.Data.PronunciationAudios)
	if err != nil {
		return fmt.Errorf("failed to encode vocab %d: %w", v.ID, err)
	}
	readings, err := encodeBlob(v.Data.Readings)
	if err != nil {
		return fmt.Errorf("failed to encode vocab %d: %w", v.ID, err)
	}
	params = append(params,
		v.Data.Characters,
		components,
		sentences,
		parts,
		audios,
		readings,
		v.Data.ReadingMnemonic,
	)

	query := "REPLACE INTO vocab (" + vocabColumns + ") VALUES " +
		placeholders(subjectCommonColumnCount+7)
	if _, err := q.ExecContext(ctx, query, params...); err != nil {
		return storeErr(fmt.Sprintf("upsert vocab %d", v.ID), err)
	}
	return nil
}

func scanVocab(row rowScanner) (wanidata.Vocab, error) {
	var (
		common     subjectRow
		chars      string
		components string
		sentences  string
		parts      string
		audios     string
		readings   string
		mnemonic   string
	)
	dests := append(common.dests(),
		&chars, &components, &sentences, &parts, &audios, &readings, &mnemonic)
	if err := row.Scan(dests...); err != nil {
		return wanidata.Vocab{}, fmt.Errorf("failed to scan vocab: %w", err)
	}

	var v wanidata.Vocab
	v.ID = common.id
	if err := common.decode("vocab", &v.Data.SubjectData); err != nil {
		return wanidata.Vocab{}, err
	}
	v.Data.Characters = chars
	if err := decodeBlob(components, "component_subject_ids", &v.Data.ComponentSubjectIDs); err != nil {
		return wanidata.Vocab{}, decodeErr("vocab", common.id, err)
	}
	if err := decodeBlob(sentences, "context_sentences", &v.Data.ContextSentences); err != nil {
		return wanidata.Vocab{}, decodeErr("vocab", common.id, err)
	}
	if err := decodeBlob(parts, "parts_of_speech", &v.Data.PartsOfSpeech); err != nil {
		return wanidata.Vocab{}, decodeErr("vocab", common.id, err)
	}
	if err := decodeBlob(audios, "pronunciation_audios", &v.Data.PronunciationAudios); err != nil {
		return wanidata.Vocab{}, decodeErr("vocab", common.id, err)
	}
	if err := decodeBlob(readings, "readings", &v.Data.Readings); err != nil {
		return wanidata.Vocab{}, decodeErr("vocab", common.id, err)
	}
	v.Data.ReadingMnemonic = mnemonic
	return v, nil
}

// AllVocab returns every cached vocabulary subject ordered by id.
func (db *DB) AllVocab(ctx context.Context) ([]wanidata.Vocab, error) {
	query := "SELECT " + vocabColumns + " FROM vocab ORDER BY id"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vocab: %w", err)
	}
	defer rows.Close()

	var out []wanidata.Vocab
	for rows.Next() {
		v, err := scanVocab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vocab: %w", err)
	}
	return out, nil
}

// ---- kana_vocab ----

const kanaVocabColumns = subjectCommonColumns + `,
	characters,
	context_sentences,
	parts_of_speech,
	pronunciation_audios`

func upsertKanaVocab(ctx context.Context, q querier, kv wanidata.KanaVocab) error {
	params, err := subjectCommonParams(kv.ID, &kv.Data.SubjectData)
	if err != nil {
		return fmt.Errorf("failed to encode kana vocab %d: %w", kv.ID, err)
	}
	sentences, err := encodeBlob(kv.Data.ContextSentences)
	if err != nil {
		return fmt.Errorf("failed to encode kana vocab %d: %w", kv.ID, err)
	}
	parts, err := encodeBlob(kv.Data.PartsOfSpeech)
	if err != nil {
		return fmt.Errorf("failed to encode kana vocab %d: %w", kv.ID, err)
	}
	audios, err := encodeBlob(kv.Data.PronunciationAudios)
	if err != nil {
		return fmt.Errorf("failed to encode kana vocab %d: %w", kv.ID, err)
	}
	params = append(params, kv.Data.Characters, sentences, parts, audios)

	query := "REPLACE INTO kana_vocab (" + kanaVocabColumns + ") VALUES " +
		placeholders(subjectCommonColumnCount+4)
	if _, err := q.ExecContext(ctx, query, params...); err != nil {
		return storeErr(fmt.Sprintf("upsert kana vocab %d", kv.ID), err)
	}
	return nil
}

func scanKanaVocab(row rowScanner) (wanidata.KanaVocab, error) {
	var (
		common    subjectRow
		chars     string
		sentences string
		parts     string
		audios    string
	)
	dests := append(common.dests(), &chars, &sentences, &parts, &audios)
	if err := row.Scan(dests...); err != nil {
		return wanidata.KanaVocab{}, fmt.Errorf("failed to scan kana vocab: %w", err)
	}

	var kv wanidata.KanaVocab
	kv.ID = common.id
	if err := common.decode("kana_vocab", &kv.Data.SubjectData); err != nil {
		return wanidata.KanaVocab{}, err
	}
	kv.Data.Characters = chars
	if err := decodeBlob(sentences, "context_sentences", &kv.Data.ContextSentences); err != nil {
		return wanidata.KanaVocab{}, decodeErr("kana_vocab", common.id, err)
	}
	if err := decodeBlob(parts, "parts_of_speech", &kv.Data.PartsOfSpeech); err != nil {
		return wanidata.KanaVocab{}, decodeErr("kana_vocab", common.id, err)
	}
	if err := decodeBlob(audios, "pronunciation_audios", &kv.Data.PronunciationAudios); err != nil {
		return wanidata.KanaVocab{}, decodeErr("kana_vocab", common.id, err)
	}
	return kv, nil
}

// AllKanaVocab returns every cached kana vocabulary subject ordered by id.
func (db *DB) AllKanaVocab(ctx context.Context) ([]wanidata.KanaVocab, error) {
	query := "SELECT " + kanaVocabColumns + " FROM kana_vocab ORDER BY id"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query kana vocab: %w", err)
	}
	defer rows.Close()

	var out []wanidata.KanaVocab
	for rows.Next() {
		kv, err := scanKanaVocab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kana vocab: %w", err)
	}
	return out, nil
}

// ---- dispatch ----

// upsertSubject routes a subject to its table's codec.
func upsertSubject(ctx context.Context, q querier, s wanidata.Subject) error {
	switch subj := s.(type) {
	case wanidata.Radical:
		return upsertRadical(ctx, q, subj)
	case wanidata.Kanji:
		return upsertKanji(ctx, q, subj)
	case wanidata.Vocab:
		return upsertVocab(ctx, q, subj)
	case wanidata.KanaVocab:
		return upsertKanaVocab(ctx, q, subj)
	default:
		return fmt.Errorf("unsupported subject type %T", s)
	}
}

// UpsertSubject writes one subject with replace semantics.
func (db *DB) UpsertSubject(ctx context.Context, s wanidata.Subject) error {
	return upsertSubject(ctx, db.conn, s)
}

// UpsertSubject writes one subject inside the transaction.
func (t *Tx) UpsertSubject(ctx context.Context, s wanidata.Subject) error {
	return upsertSubject(ctx, t.tx, s)
}

// Subject looks up one subject by id in the table for its kind. Returns
// sql.ErrNoRows if the id is not cached.
func (db *DB) Subject(ctx context.Context, id int64, st wanidata.SubjectType) (wanidata.Subject, error) {
	switch st {
	case wanidata.SubjectTypeRadical:
		query := "SELECT " + radicalColumns + " FROM radicals WHERE id = ?"
		r, err := scanRadical(db.conn.QueryRowContext(ctx, query, id))
		if err != nil {
			return nil, err
		}
		return r, nil
	case wanidata.SubjectTypeKanji:
		query := "SELECT " + kanjiColumns + " FROM kanji WHERE id = ?"
		k, err := scanKanji(db.conn.QueryRowContext(ctx, query, id))
		if err != nil {
			return nil, err
		}
		return k, nil
	case wanidata.SubjectTypeVocab:
		query := "SELECT " + vocabColumns + " FROM vocab WHERE id = ?"
		v, err := scanVocab(db.conn.QueryRowContext(ctx, query, id))
		if err != nil {
			return nil, err
		}
		return v, nil
	case wanidata.SubjectTypeKanaVocab:
		query := "SELECT " + kanaVocabColumns + " FROM kana_vocab WHERE id = ?"
		kv, err := scanKanaVocab(db.conn.QueryRowContext(ctx, query, id))
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unsupported subject type %v", st)
	}
}

// SubjectCounts returns the number of cached rows per subject table.
func (db *DB) SubjectCounts(ctx context.Context) (map[wanidata.SubjectType]int, error) {
	tables := map[wanidata.SubjectType]string{
		wanidata.SubjectTypeRadical:   "radicals",
		wanidata.SubjectTypeKanji:     "kanji",
		wanidata.SubjectTypeVocab:     "vocab",
		wanidata.SubjectTypeKanaVocab: "kana_vocab",
	}
	counts := make(map[wanidata.SubjectType]int, len(tables))
	for st, table := range tables {
		var n int
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[st] = n
	}
	return counts, nil
}
