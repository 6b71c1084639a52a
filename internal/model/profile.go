// Package model holds the static catalog of remote model profiles and the
// ordered failover ladders tried per processing mode.
package model

import "fmt"

// Mode selects the processing behaviour of a run.
type Mode string

const (
	// ModeTranscribe asks for a verbatim, acoustically faithful transcript.
	ModeTranscribe Mode = "transcribe"
	// ModeTranslate asks for a deep semantic translation of the speech.
	ModeTranslate Mode = "translate"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTranscribe, ModeTranslate:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeTranscribe, ModeTranslate)
}

// Profile is one immutable catalog entry: a remote model plus the
// instruction variant sent with every chunk in its mode.
type Profile struct {
	ID          string
	Label       string
	Instruction string
}

// Ladder is the ordered failover sequence for one mode. Selection during
// dispatch is strictly positional.
type Ladder []Profile

const transcribeInstruction = `Transcribe the spoken audio verbatim, preserving exactly what is said ` +
	`including fillers and repetitions. Return a JSON array of caption objects. Each object has ` +
	`"start" and "end" (seconds from the beginning of this audio, numbers) and "text" (the spoken ` +
	`words, non-empty string). Split captions at natural phrase boundaries of a few seconds each. ` +
	`Return [] if the audio contains no speech.`

const translateInstruction = `Listen to the spoken audio and translate the speech into %s. Favour ` +
	`natural, meaning-preserving phrasing over word-for-word rendering. Return a JSON array of ` +
	`caption objects. Each object has "start" and "end" (seconds from the beginning of this audio, ` +
	`numbers) and "text" (the translated line, non-empty string). Split captions at natural phrase ` +
	`boundaries of a few seconds each. Return [] if the audio contains no speech.`

// LadderFor returns the failover ladder for a mode. For ModeTranslate the
// target language is substituted into the instruction; it is ignored for
// ModeTranscribe.
func LadderFor(mode Mode, targetLanguage string) (Ladder, error) {
	switch mode {
	case ModeTranscribe:
		return ladder(transcribeInstruction), nil
	case ModeTranslate:
		if targetLanguage == "" {
			return nil, fmt.Errorf("translate mode requires a target language")
		}
		return ladder(fmt.Sprintf(translateInstruction, targetLanguage)), nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

func ladder(instruction string) Ladder {
	return Ladder{
		{ID: "gemini-2.5-pro", Label: "Gemini 2.5 Pro", Instruction: instruction},
		{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", Instruction: instruction},
		{ID: "gemini-2.5-flash-lite", Label: "Gemini 2.5 Flash Lite", Instruction: instruction},
	}
}
