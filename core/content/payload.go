package content

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// BlockKind is the closed set of block content kinds.
type BlockKind string

const (
	KindText  BlockKind = "text"
	KindVideo BlockKind = "video"
	KindQuiz  BlockKind = "quiz"
	KindEmbed BlockKind = "embed"
)

// AllBlockKinds lists every kind the engine knows how to decode.
var AllBlockKinds = []BlockKind{KindText, KindVideo, KindQuiz, KindEmbed}

func (k BlockKind) Valid() bool {
	for _, kind := range AllBlockKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Payload is the kind-specific content of a block. It is a closed sum:
// a payload of an unknown kind cannot be constructed, only rejected by
// DecodePayload.
type Payload interface {
	BlockKind() BlockKind
}

type TextPayload struct {
	Format string `json:"format,omitempty"` // markdown (default) | html | plain
	Body   string `json:"body"`
}

func (TextPayload) BlockKind() BlockKind { return KindText }

// VideoPayload references a registered video asset, or an external URI.
type VideoPayload struct {
	AssetID     string `json:"asset_id,omitempty"`
	URI         string `json:"uri,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

func (VideoPayload) BlockKind() BlockKind { return KindVideo }

// QuizPayload references a quiz owned by the assessment subsystem.
type QuizPayload struct {
	QuizID       string `json:"quiz_id"`
	PassingScore int    `json:"passing_score,omitempty"`
}

func (QuizPayload) BlockKind() BlockKind { return KindQuiz }

type EmbedPayload struct {
	Provider string `json:"provider,omitempty"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

func (EmbedPayload) BlockKind() BlockKind { return KindEmbed }

// DecodePayload decodes raw payload data as the given kind.
// Unknown kinds are an error, never a passthrough.
func DecodePayload(kind BlockKind, data []byte) (Payload, error) {
	switch kind {
	case KindText:
		var p TextPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, "decoding text payload")
		}
		return p, nil
	case KindVideo:
		var p VideoPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, "decoding video payload")
		}
		return p, nil
	case KindQuiz:
		var p QuizPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, "decoding quiz payload")
		}
		return p, nil
	case KindEmbed:
		var p EmbedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, "decoding embed payload")
		}
		return p, nil
	default:
		return nil, errors.Errorf("unknown block kind %q", kind)
	}
}

// EncodePayload is the inverse of DecodePayload, for storage layers that
// persist payloads as raw JSON.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	return data, nil
}
