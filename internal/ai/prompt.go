package ai

import (
	"fmt"
	"strings"

	"github.com/repoviral/backend/internal/scanner"
)

const (
	headerTwitter  = "### TWITTER THREAD"
	headerLinkedIn = "### LINKEDIN POST"
	headerBlog     = "### BLOG INTRO"
	headerSlides   = "### SLIDE DECK"
)

// Tone selectors offered by the frontend. Unknown tones fall back to
// the Educator persona.
const (
	ToneEducator  = "Educator"
	ToneHypeMan   = "Hype Man"
	ToneSeniorDev = "Senior Dev"
)

var tonePersonas = map[string]string{
	ToneEducator:  "You are a patient educator. Break the project down step by step, explain the concepts behind it, and make a newcomer feel capable of using it.",
	ToneHypeMan:   "You are a high-energy hype man. Write launch-day posts: bold claims backed by the provided facts, momentum, emojis, urgency.",
	ToneSeniorDev: "You are a pragmatic senior developer. Focus on architecture decisions, trade-offs, and the engineering insights hidden in this project.",
}

func systemPrompt(tone string, deep bool) string {
	persona, ok := tonePersonas[tone]
	if !ok {
		persona = tonePersonas[ToneEducator]
	}

	var b strings.Builder
	b.WriteString("Role: Expert Developer Advocate. ")
	b.WriteString(persona)
	b.WriteString("\nObjective: Analyze the provided repository context and output distinct pieces of content.\n")
	b.WriteString("Output format must be strictly separated by these headers:\n")
	b.WriteString(headerTwitter + "\n" + headerLinkedIn + "\n" + headerBlog + "\n")
	if deep {
		b.WriteString(headerSlides + "\n")
	}
	b.WriteString("\nInstructions:\n")
	b.WriteString("1. Twitter Thread: a compelling thread (5-8 tweets). Hook the reader in the first tweet. Focus on the problem and the solution. End with a call to action.\n")
	b.WriteString("2. LinkedIn Post: professional yet engaging. Focus on the technical implementation and the value proposition. Use bullet points for key features.\n")
	b.WriteString("3. Blog Intro: an engaging introduction for a technical blog post about this repository.\n")
	if deep {
		b.WriteString("4. Slide Deck: 5 slides as 'Slide N: <title>' lines each followed by 2-3 bullet points.\n")
		b.WriteString("\nOnly state technical facts that appear in the provided evidence. Do not invent features.\n")
	}
	return b.String()
}

// DeepPrompt renders an evidence bundle into the user message for a deep
// generation. Only cited facts from the bundle are included.
func DeepPrompt(b *scanner.ContextBundle) string {
	var sb strings.Builder

	if len(b.TechStack) > 0 {
		sb.WriteString("Tech Stack: " + strings.Join(b.TechStack, ", ") + "\n\n")
	}
	if len(b.Evidence.Features) > 0 {
		sb.WriteString("Verified Evidence (each claim cites its source file):\n")
		for _, f := range b.Evidence.Features {
			sb.WriteString("- " + f + "\n")
		}
		sb.WriteString("\n")
	}
	if b.Evidence.TestCount > 0 {
		fmt.Fprintf(&sb, "Test files found: %d\n\n", b.Evidence.TestCount)
	}
	if len(b.Evidence.Entities) > 0 {
		sb.WriteString("Data Entities: " + strings.Join(b.Evidence.Entities, ", ") + "\n\n")
	}
	if b.EntryPointName != "" {
		sb.WriteString("Entry Point (" + b.EntryPointName + "):\n")
		sb.WriteString(b.EntryPointContent + "\n\n")
	}
	sb.WriteString("README:\n" + b.ReadmeContent + "\n")

	return sb.String()
}

// parseResponse splits the raw completion on the section headers. Missing
// sections come back empty rather than failing the whole generation.
func parseResponse(text string) *GeneratedContent {
	headers := []string{headerTwitter, headerLinkedIn, headerBlog, headerSlides}

	type mark struct {
		header string
		start  int // index just past the header
		pos    int // index of the header itself
	}
	var marks []mark
	for _, h := range headers {
		if idx := strings.Index(text, h); idx >= 0 {
			marks = append(marks, mark{header: h, start: idx + len(h), pos: idx})
		}
	}
	// Headers arrive in prompt order, but sort by position to be safe.
	for i := 0; i < len(marks); i++ {
		for j := i + 1; j < len(marks); j++ {
			if marks[j].pos < marks[i].pos {
				marks[i], marks[j] = marks[j], marks[i]
			}
		}
	}

	content := &GeneratedContent{}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].pos
		}
		section := strings.TrimSpace(text[m.start:end])
		switch m.header {
		case headerTwitter:
			content.TwitterThread = section
		case headerLinkedIn:
			content.LinkedInPost = section
		case headerBlog:
			content.BlogIntro = section
		case headerSlides:
			content.SlideDeck = section
		}
	}
	return content
}
