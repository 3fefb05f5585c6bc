package response

import "strings"

// Classification is the output of text analysis over one callee utterance.
type Classification struct {
	Intent     string
	Emotion    string
	Confidence float64
	// Suggestion is the matched handler's reply, empty when no pattern hit.
	Suggestion string
}

// Classifier analyzes callee text. The rule-based implementation below is the
// default; the interface lets a model-backed classifier slot in without
// touching the engine.
type Classifier interface {
	Classify(text string) Classification
}

type patternClass struct {
	name       string
	patterns   []string
	confidence float64
	reply      string
}

// RuleClassifier matches keyword classes: objections first, then buying
// signals and questions, with a separate emotion pass.
type RuleClassifier struct {
	objections []patternClass
	intents    []patternClass
	emotions   []patternClass
}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{
		objections: []patternClass{
			{
				name:       "objection_price",
				patterns:   []string{"too expensive", "cost too much", "budget", "price", "expensive", "cheaper"},
				confidence: 0.8,
				reply:      "I understand cost is important. Our solution saves companies around 30% on average. Would you like to see a cost comparison?",
			},
			{
				name:       "objection_timing",
				patterns:   []string{"not right time", "busy", "later", "next quarter", "call back", "another time"},
				confidence: 0.8,
				reply:      "I completely understand. When would be a better time? I can schedule a quick fifteen minute call.",
			},
			{
				name:       "objection_competitor",
				patterns:   []string{"competitor", "already have", "already using", "alternative", "other company"},
				confidence: 0.8,
				reply:      "That's great to hear. What do you like most about your current solution? I'd love to show you how we compare.",
			},
		},
		intents: []patternClass{
			{
				name:       "buying_signal",
				patterns:   []string{"purchase", "buy", "order", "sign up", "get started", "proceed", "schedule a demo", "book a meeting"},
				confidence: 0.95,
				reply:      "Fantastic. I'll have one of our specialists set that up and follow up with you to confirm the details.",
			},
			{
				name:       "question",
				patterns:   []string{"what", "how", "when", "where", "why", "explain", "details", "tell me more"},
				confidence: 0.8,
			},
			{
				name:       "positive",
				patterns:   []string{"yes", "interested", "sounds good", "sure", "okay"},
				confidence: 0.8,
				reply:      "Great! Let me share a bit more about how it works.",
			},
		},
		emotions: []patternClass{
			{
				name:       "interested",
				patterns:   []string{"tell me more", "interesting", "how does", "show me", "demo", "trial"},
				confidence: 0.9,
			},
			{
				name:       "skeptical",
				patterns:   []string{"not sure", "doubt", "sounds too good", "prove it"},
				confidence: 0.8,
			},
			{
				name:       "frustrated",
				patterns:   []string{"frustrated", "annoying", "waste of time", "leave me alone"},
				confidence: 0.9,
			},
		},
	}
}

func (c *RuleClassifier) Classify(text string) Classification {
	input := strings.ToLower(text)
	best := Classification{Intent: "general", Emotion: "neutral", Confidence: 0.5}

	for _, class := range c.objections {
		matches := countMatches(input, class.patterns)
		if matches > 0 {
			conf := class.confidence + float64(matches-1)*0.05
			if conf > 0.95 {
				conf = 0.95
			}
			best.Intent = class.name
			best.Confidence = conf
			best.Suggestion = class.reply
			break
		}
	}

	if best.Intent == "general" {
		for _, class := range c.intents {
			if countMatches(input, class.patterns) > 0 && class.confidence > best.Confidence {
				best.Intent = class.name
				best.Confidence = class.confidence
				best.Suggestion = class.reply
			}
		}
	}

	for _, class := range c.emotions {
		if countMatches(input, class.patterns) > 0 {
			best.Emotion = class.name
			break
		}
	}

	return best
}

func countMatches(input string, patterns []string) int {
	n := 0
	for _, p := range patterns {
		if strings.Contains(input, p) {
			n++
		}
	}
	return n
}

// IsQuestionShaped reports whether text looks like a question the knowledge
// base should answer before falling back to the generic classifier.
func IsQuestionShaped(text string) bool {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return false
	}
	if strings.Contains(input, "?") {
		return true
	}
	for _, prefix := range []string{"what", "how", "when", "where", "why", "who", "can ", "do ", "does ", "is ", "are "} {
		if strings.HasPrefix(input, prefix) {
			return true
		}
	}
	return false
}
