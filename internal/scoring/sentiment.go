package scoring

import (
	"math"
	"strings"
	"unicode"
)

// Sentiment classification labels.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Classification cutoffs: scores above +0.2 are positive, below -0.2 negative.
const sentimentCutoff = 0.2

// polarity is the lexicon used for per-token scoring. Values are in [-1,1].
var polarity = map[string]float64{
	// positive
	"moon": 0.6, "bullish": 0.8, "gem": 0.6, "legit": 0.7, "solid": 0.6,
	"safe": 0.7, "audited": 0.8, "doxxed": 0.7, "trust": 0.6, "gain": 0.5,
	"profit": 0.5, "win": 0.5, "good": 0.4, "great": 0.6, "strong": 0.5,
	// negative
	"rug": -0.9, "rugpull": -1.0, "scam": -1.0, "honeypot": -0.9,
	"dump": -0.7, "drained": -0.9, "exit": -0.6, "fraud": -1.0,
	"fake": -0.8, "warning": -0.5, "avoid": -0.7, "stolen": -0.9,
	"suspicious": -0.6, "bad": -0.4, "crash": -0.7, "dead": -0.6,
	"ponzi": -1.0, "exploit": -0.8,
}

// SentimentResult is the score and label for a single text.
type SentimentResult struct {
	Score float64   `json:"score"` // [-1,1]
	Label Sentiment `json:"label"`
}

// SentimentSummary aggregates sentiment over a batch of texts.
type SentimentSummary struct {
	Mean       float64           `json:"mean"`
	Volatility float64           `json:"volatility"` // sample standard deviation
	Label      Sentiment         `json:"label"`
	Items      []SentimentResult `json:"items"`
}

// Tokenize lowercases text and splits it on any non-letter, non-digit rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ScoreSentiment computes a lexicon-based polarity score for one text:
// the sum of matched token polarities divided by the token count, so long
// neutral messages dilute toward zero. Empty text scores 0.
func ScoreSentiment(text string) SentimentResult {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return SentimentResult{Score: 0, Label: SentimentNeutral}
	}
	sum := 0.0
	for _, tok := range tokens {
		sum += polarity[tok]
	}
	score := sum / float64(len(tokens))
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return SentimentResult{Score: score, Label: classify(score)}
}

// AnalyzeSentiment scores each text and aggregates mean and volatility.
//
// Volatility is the Bessel-corrected sample standard deviation (divide by
// n-1). With fewer than 2 samples it is defined as 0.
func AnalyzeSentiment(texts []string) SentimentSummary {
	items := make([]SentimentResult, 0, len(texts))
	sum := 0.0
	for _, text := range texts {
		r := ScoreSentiment(text)
		items = append(items, r)
		sum += r.Score
	}

	summary := SentimentSummary{Items: items, Label: SentimentNeutral}
	if len(items) == 0 {
		return summary
	}

	summary.Mean = sum / float64(len(items))
	summary.Label = classify(summary.Mean)

	if len(items) >= 2 {
		ss := 0.0
		for _, r := range items {
			d := r.Score - summary.Mean
			ss += d * d
		}
		summary.Volatility = math.Sqrt(ss / float64(len(items)-1))
	}
	return summary
}

func classify(score float64) Sentiment {
	switch {
	case score > sentimentCutoff:
		return SentimentPositive
	case score < -sentimentCutoff:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
