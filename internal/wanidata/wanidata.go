// Package wanidata defines the WaniKani wire format: the tagged-union
// resource tree returned by the v2 API, the pending-review submission
// shape, and the answer-checking rules for graded reviews.
//
// Every API response is an envelope whose "object" field names the variant
// carried in "data". Decoding is two-phase: the envelope (tag, url,
// timestamps, pagination) is parsed first, then the payload is decoded
// into the matching concrete type. Tags the client does not understand
// decode into an inert Unknown value so new server-side resource types
// never fail a whole payload.
package wanidata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Object tags used by the v2 API.
const (
	ObjectCollection     = "collection"
	ObjectReport         = "report"
	ObjectAssignment     = "assignment"
	ObjectKanaVocabulary = "kana_vocabulary"
	ObjectKanji          = "kanji"
	ObjectRadical        = "radical"
	ObjectReview         = "review"
	ObjectUser           = "user"
	ObjectVocabulary     = "vocabulary"
)

// Data is one decoded API payload. Concrete types are Collection, Report,
// Assignment, Radical, Kanji, Vocab, KanaVocab, Review, User and Unknown.
type Data interface {
	object() string
}

// Resp is a decoded API response envelope.
type Resp struct {
	URL           string
	DataUpdatedAt *time.Time
	Data          Data

	// ResourcesUpdated carries side-effect resources the server refreshed
	// while handling a write (currently only the assignment touched by a
	// review submission).
	ResourcesUpdated *ResourcesUpdated
}

// ResourcesUpdated mirrors the resources_updated block on write responses.
type ResourcesUpdated struct {
	Assignment *Assignment
}

// Collection is a page of resources plus the pagination cursor.
type Collection struct {
	Data  []Data
	Pages PageData
}

func (Collection) object() string { return ObjectCollection }

// PageData is the pagination block of a collection response. NextURL is the
// cursor: empty means the collection is fully drained.
type PageData struct {
	PerPage     int    `json:"per_page"`
	NextURL     string `json:"next_url"`
	PreviousURL string `json:"previous_url"`
}

// Report is the /summary response: lessons and reviews currently or soon
// available, grouped by availability time.
type Report struct {
	Lessons []SummaryEntry `json:"lessons"`
	Reviews []SummaryEntry `json:"reviews"`
}

func (Report) object() string { return ObjectReport }

// SummaryEntry is one availability bucket in a summary report.
type SummaryEntry struct {
	AvailableAt time.Time `json:"available_at"`
	SubjectIDs  []int64   `json:"subject_ids"`
}

// Unknown is the placeholder for object tags this client does not handle.
// The raw tag is kept for diagnostics; the payload is discarded.
type Unknown struct {
	Tag string
}

func (Unknown) object() string { return "unknown" }

// envelope is the raw wire shape shared by every response and by each
// element of a collection's data array.
type envelope struct {
	Object           string          `json:"object"`
	URL              string          `json:"url"`
	DataUpdatedAt    *time.Time      `json:"data_updated_at"`
	ID               int64           `json:"id"`
	Data             json.RawMessage `json:"data"`
	Pages            *PageData       `json:"pages"`
	ResourcesUpdated json.RawMessage `json:"resources_updated"`
}

type resourcesUpdatedWire struct {
	Assignment *envelope `json:"assignment"`
}

// DecodeResp decodes a full API response body.
func DecodeResp(body []byte) (*Resp, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}

	data, err := decodeTagged(&env)
	if err != nil {
		return nil, err
	}

	resp := &Resp{
		URL:           env.URL,
		DataUpdatedAt: env.DataUpdatedAt,
		Data:          data,
	}

	if len(env.ResourcesUpdated) > 0 {
		var ru resourcesUpdatedWire
		if err := json.Unmarshal(env.ResourcesUpdated, &ru); err != nil {
			return nil, fmt.Errorf("failed to decode resources_updated: %w", err)
		}
		if ru.Assignment != nil {
			var ad AssignmentData
			if err := json.Unmarshal(ru.Assignment.Data, &ad); err != nil {
				return nil, fmt.Errorf("failed to decode updated assignment %d: %w", ru.Assignment.ID, err)
			}
			resp.ResourcesUpdated = &ResourcesUpdated{
				Assignment: &Assignment{ID: ru.Assignment.ID, Data: ad},
			}
		}
	}

	return resp, nil
}

// decodeTagged dispatches an envelope to its concrete payload type based on
// the object tag.
func decodeTagged(env *envelope) (Data, error) {
	switch env.Object {
	case ObjectCollection:
		var raw []json.RawMessage
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode collection data: %w", err)
		}
		coll := Collection{Data: make([]Data, 0, len(raw))}
		if env.Pages != nil {
			coll.Pages = *env.Pages
		}
		for i, r := range raw {
			var item envelope
			if err := json.Unmarshal(r, &item); err != nil {
				return nil, fmt.Errorf("failed to decode collection element %d: %w", i, err)
			}
			d, err := decodeTagged(&item)
			if err != nil {
				return nil, err
			}
			coll.Data = append(coll.Data, d)
		}
		return coll, nil

	case ObjectReport:
		var rep Report
		if err := json.Unmarshal(env.Data, &rep); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		return rep, nil

	case ObjectAssignment:
		var ad AssignmentData
		if err := json.Unmarshal(env.Data, &ad); err != nil {
			return nil, fmt.Errorf("failed to decode assignment %d: %w", env.ID, err)
		}
		return Assignment{ID: env.ID, Data: ad}, nil

	case ObjectRadical:
		var rd RadicalData
		if err := json.Unmarshal(env.Data, &rd); err != nil {
			return nil, fmt.Errorf("failed to decode radical %d: %w", env.ID, err)
		}
		return Radical{ID: env.ID, Data: rd}, nil

	case ObjectKanji:
		var kd KanjiData
		if err := json.Unmarshal(env.Data, &kd); err != nil {
			return nil, fmt.Errorf("failed to decode kanji %d: %w", env.ID, err)
		}
		return Kanji{ID: env.ID, Data: kd}, nil

	case ObjectVocabulary:
		var vd VocabData
		if err := json.Unmarshal(env.Data, &vd); err != nil {
			return nil, fmt.Errorf("failed to decode vocabulary %d: %w", env.ID, err)
		}
		return Vocab{ID: env.ID, Data: vd}, nil

	case ObjectKanaVocabulary:
		var kv KanaVocabData
		if err := json.Unmarshal(env.Data, &kv); err != nil {
			return nil, fmt.Errorf("failed to decode kana vocabulary %d: %w", env.ID, err)
		}
		return KanaVocab{ID: env.ID, Data: kv}, nil

	case ObjectReview:
		var rd ReviewData
		if err := json.Unmarshal(env.Data, &rd); err != nil {
			return nil, fmt.Errorf("failed to decode review %d: %w", env.ID, err)
		}
		return Review{ID: env.ID, Data: rd}, nil

	case ObjectUser:
		var ud UserData
		if err := json.Unmarshal(env.Data, &ud); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		return User{Data: ud}, nil

	default:
		// Forward compatibility: level_progression, reset, review_statistic,
		// spaced_repetition_system, study_material, voice_actor, and any tag
		// added after this client was written.
		return Unknown{Tag: env.Object}, nil
	}
}

// RateLimit is the server's rate-limit state, parsed from response headers.
type RateLimit struct {
	Limit     int
	Remaining int

	// Reset is the unix timestamp at which the limit window renews.
	Reset int64
}

// RateLimitFromHeaders parses the RateLimit-* headers. Returns nil if any
// of the three headers is missing or malformed.
func RateLimitFromHeaders(h http.Header) *RateLimit {
	limit, err := strconv.Atoi(h.Get("RateLimit-Limit"))
	if err != nil {
		return nil
	}
	remaining, err := strconv.Atoi(h.Get("RateLimit-Remaining"))
	if err != nil {
		return nil
	}
	reset, err := strconv.ParseInt(h.Get("RateLimit-Reset"), 10, 64)
	if err != nil {
		return nil
	}
	return &RateLimit{Limit: limit, Remaining: remaining, Reset: reset}
}
