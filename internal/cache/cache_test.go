package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wanicli/wani/internal/wanidata"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "wani.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return db
}

func ts(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "wani.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Advance a watermark, then re-init. The seed must not clobber it.
	after := ts(2026, 1, 5, 10)
	if err := db.AdvanceCacheInfo(ctx, ClassSubjects, CacheInfo{ETag: `"abc"`, UpdatedAfter: &after}); err != nil {
		t.Fatalf("AdvanceCacheInfo failed: %v", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}

	info, err := db.CacheInfoFor(ctx, ClassSubjects)
	if err != nil {
		t.Fatalf("CacheInfoFor failed: %v", err)
	}
	if info.ETag != `"abc"` || info.UpdatedAfter == nil || !info.UpdatedAfter.Equal(after) {
		t.Errorf("watermark clobbered by re-init: %+v", info)
	}
}

func TestUpsertSubject_RadicalRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Image-only radical: no characters, but rendered images.
	ct := "image/svg+xml"
	r := wanidata.Radical{
		ID: 8761,
		Data: wanidata.RadicalData{
			SubjectData: wanidata.SubjectData{
				AuxMeanings:     []wanidata.AuxMeaning{{Type: wanidata.AuxMeaningWhitelist, Meaning: "stick"}},
				CreatedAt:       ts(2012, 2, 27, 18),
				DocumentURL:     "https://www.wanikani.com/radicals/gun",
				Level:           1,
				MeaningMnemonic: "A <radical>gun</radical>.",
				Meanings:        []wanidata.Meaning{{Meaning: "Gun", Primary: true, AcceptedAnswer: true}},
				Slug:            "gun",
				SRSID:           2,
			},
			AmalgamationSubjectIDs: []int64{442},
			CharacterImages:        []wanidata.RadicalImage{{URL: "https://cdn.wanikani.com/gun.svg", ContentType: &ct}},
		},
	}

	if err := db.UpsertSubject(ctx, r); err != nil {
		t.Fatalf("UpsertSubject failed: %v", err)
	}

	got, err := db.AllRadicals(ctx)
	if err != nil {
		t.Fatalf("AllRadicals failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 radical, got %d", len(got))
	}
	if got[0].Data.Characters != nil {
		t.Errorf("expected nil characters, got %q", *got[0].Data.Characters)
	}
	if len(got[0].Data.CharacterImages) != 1 || got[0].Data.CharacterImages[0].URL != r.Data.CharacterImages[0].URL {
		t.Errorf("character images round-tripped wrong: %+v", got[0].Data.CharacterImages)
	}
	if !got[0].Data.CreatedAt.Equal(r.Data.CreatedAt) {
		t.Errorf("created_at round-tripped wrong: %v", got[0].Data.CreatedAt)
	}

	// Replaying the same upsert must not create a second row.
	if err := db.UpsertSubject(ctx, r); err != nil {
		t.Fatalf("replay UpsertSubject failed: %v", err)
	}
	got, _ = db.AllRadicals(ctx)
	if len(got) != 1 {
		t.Errorf("replay created a duplicate: %d rows", len(got))
	}
}

func TestUpsertSubject_KanjiRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	hint := "Think itchy."
	hidden := ts(2024, 6, 1, 0)
	k := wanidata.Kanji{
		ID: 440,
		Data: wanidata.KanjiData{
			SubjectData: wanidata.SubjectData{
				CreatedAt:       ts(2012, 2, 27, 19),
				DocumentURL:     "https://www.wanikani.com/kanji/one",
				HiddenAt:        ptr(hidden),
				Level:           1,
				MeaningMnemonic: "One.",
				Meanings:        []wanidata.Meaning{{Meaning: "One", Primary: true, AcceptedAnswer: true}},
				Slug:            "one",
				SRSID:           2,
			},
			Characters:          "一",
			ComponentSubjectIDs: []int64{1},
			ReadingHint:         &hint,
			ReadingMnemonic:     "Itchy knee.",
			Readings: []wanidata.KanjiReading{
				{Reading: "いち", Primary: true, AcceptedAnswer: true, Type: wanidata.KanjiReadingOnyomi},
				{Reading: "ひと", Type: wanidata.KanjiReadingKunyomi},
			},
		},
	}

	if err := db.UpsertSubject(ctx, k); err != nil {
		t.Fatalf("UpsertSubject failed: %v", err)
	}

	got, err := db.Subject(ctx, 440, wanidata.SubjectTypeKanji)
	if err != nil {
		t.Fatalf("Subject failed: %v", err)
	}
	kanji, ok := got.(wanidata.Kanji)
	if !ok {
		t.Fatalf("expected Kanji, got %T", got)
	}
	if kanji.Data.MeaningHint != nil {
		t.Errorf("expected nil meaning hint, got %q", *kanji.Data.MeaningHint)
	}
	if kanji.Data.ReadingHint == nil || *kanji.Data.ReadingHint != hint {
		t.Errorf("reading hint round-tripped wrong: %v", kanji.Data.ReadingHint)
	}
	if kanji.Data.HiddenAt == nil || !kanji.Data.HiddenAt.Equal(hidden) {
		t.Errorf("hidden_at round-tripped wrong: %v", kanji.Data.HiddenAt)
	}
	if len(kanji.Data.Readings) != 2 || kanji.Data.Readings[1].Type != wanidata.KanjiReadingKunyomi {
		t.Errorf("readings round-tripped wrong: %+v", kanji.Data.Readings)
	}
}

func TestUpsertSubject_VocabAndKanaVocab(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v := wanidata.Vocab{
		ID: 2467,
		Data: wanidata.VocabData{
			SubjectData: wanidata.SubjectData{
				CreatedAt: ts(2012, 2, 28, 8),
				Level:     1,
				Meanings:  []wanidata.Meaning{{Meaning: "One", Primary: true, AcceptedAnswer: true}},
				Slug:      "one",
				SRSID:     2,
			},
			Characters:          "一",
			ComponentSubjectIDs: []int64{440},
			ContextSentences:    []wanidata.ContextSentence{{En: "One thing.", Ja: "一つのこと。"}},
			PartsOfSpeech:       []string{"numeral"},
			Readings:            []wanidata.VocabReading{{Reading: "いち", Primary: true, AcceptedAnswer: true}},
			ReadingMnemonic:     "Itchy.",
		},
	}
	kv := wanidata.KanaVocab{
		ID: 9177,
		Data: wanidata.KanaVocabData{
			SubjectData: wanidata.SubjectData{
				CreatedAt: ts(2023, 5, 1, 0),
				Level:     2,
				Meanings:  []wanidata.Meaning{{Meaning: "Hello", Primary: true, AcceptedAnswer: true}},
				Slug:      "こんにちは",
				SRSID:     2,
			},
			Characters:    "こんにちは",
			PartsOfSpeech: []string{"expression"},
		},
	}

	if err := db.UpsertSubject(ctx, v); err != nil {
		t.Fatalf("vocab upsert failed: %v", err)
	}
	if err := db.UpsertSubject(ctx, kv); err != nil {
		t.Fatalf("kana vocab upsert failed: %v", err)
	}

	vocab, err := db.AllVocab(ctx)
	if err != nil {
		t.Fatalf("AllVocab failed: %v", err)
	}
	if len(vocab) != 1 || vocab[0].Data.ContextSentences[0].Ja != "一つのこと。" {
		t.Errorf("vocab round-tripped wrong: %+v", vocab)
	}

	got, err := db.Subject(ctx, 9177, wanidata.SubjectTypeKanaVocab)
	if err != nil {
		t.Fatalf("Subject failed: %v", err)
	}
	if got.(wanidata.KanaVocab).Data.Characters != "こんにちは" {
		t.Errorf("kana vocab round-tripped wrong: %+v", got)
	}

	counts, err := db.SubjectCounts(ctx)
	if err != nil {
		t.Fatalf("SubjectCounts failed: %v", err)
	}
	if counts[wanidata.SubjectTypeVocab] != 1 || counts[wanidata.SubjectTypeKanaVocab] != 1 ||
		counts[wanidata.SubjectTypeRadical] != 0 {
		t.Errorf("wrong counts: %v", counts)
	}
}

func TestSubject_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Subject(context.Background(), 12345, wanidata.SubjectTypeKanji)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUser_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.User(ctx); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows before sync, got %v", err)
	}

	ends := ts(2027, 1, 1, 0)
	u := wanidata.User{
		Data: wanidata.UserData{
			ID:        "5a6a5234-a392-4a87-8f3f-33342afe8a42",
			Username:  "crabigator",
			Level:     7,
			StartedAt: ts(2025, 3, 1, 12),
			Subscription: wanidata.Subscription{
				Active:          true,
				Type:            "recurring",
				MaxLevelGranted: 60,
				PeriodEndsAt:    &ends,
			},
		},
	}
	if err := db.UpsertUser(ctx, u); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	got, err := db.User(ctx)
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if got.Data.Username != "crabigator" || got.Data.Level != 7 {
		t.Errorf("user round-tripped wrong: %+v", got.Data)
	}
	if got.Data.CurrentVacationStartedAt != nil {
		t.Errorf("expected nil vacation, got %v", got.Data.CurrentVacationStartedAt)
	}
	if !got.Data.Subscription.Active || got.Data.Subscription.PeriodEndsAt == nil {
		t.Errorf("subscription round-tripped wrong: %+v", got.Data.Subscription)
	}

	// A later sync replaces the single row.
	u.Data.Level = 8
	if err := db.UpsertUser(ctx, u); err != nil {
		t.Fatalf("second UpsertUser failed: %v", err)
	}
	got, _ = db.User(ctx)
	if got.Data.Level != 8 {
		t.Errorf("replace semantics failed: level %d", got.Data.Level)
	}
}
