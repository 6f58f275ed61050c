// Package telephony wraps the Twilio REST API and TwiML rendering behind
// the two capabilities the rest of the service consumes: place an outbound
// call, and render a spoken-response document.
package telephony

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

const (
	sayVoice    = "alice"
	sayLanguage = "en-US"
)

// Listen arms the document to gather a follow-up utterance and post it to
// ActionURL.
type Listen struct {
	Prompt         string
	TimeoutSeconds int
	ActionURL      string
}

// RenderSpokenResponse produces the TwiML that speaks each utterance in
// order, optionally gathers a follow-up utterance, and finally speaks the
// closing statement. The closing is rendered after the gather so it is only
// reached when the caller never speaks again (hangup timeout), keeping the
// conversation from ending in dead air.
func RenderSpokenResponse(utterances []string, listen *Listen, closing string) (string, error) {
	var verbs []twiml.Element

	for _, u := range utterances {
		if u == "" {
			continue
		}
		verbs = append(verbs, say(u))
	}

	if listen != nil {
		gather := &twiml.VoiceGather{
			Input:         "speech",
			Timeout:       strconv.Itoa(listen.TimeoutSeconds),
			SpeechTimeout: "auto",
			Action:        listen.ActionURL,
			Method:        "POST",
		}
		if listen.Prompt != "" {
			gather.InnerElements = []twiml.Element{say(listen.Prompt)}
		}
		verbs = append(verbs, gather)
	}

	if closing != "" {
		verbs = append(verbs, say(closing))
	}

	return twiml.Voice(verbs)
}

// RenderGreeting produces the document spoken when an outbound call
// connects: the opening lines, a beat for the customer to respond, then a
// speech gather pointed at the interactive webhook.
func RenderGreeting(opening, followUp string, listen *Listen) (string, error) {
	var verbs []twiml.Element

	verbs = append(verbs, say(opening))
	verbs = append(verbs, &twiml.VoicePause{Length: "2"})
	if followUp != "" {
		verbs = append(verbs, say(followUp))
	}

	if listen != nil {
		verbs = append(verbs, &twiml.VoiceGather{
			Input:         "speech",
			Timeout:       strconv.Itoa(listen.TimeoutSeconds),
			SpeechTimeout: "auto",
			Action:        listen.ActionURL,
			Method:        "POST",
		})
	}

	return twiml.Voice(verbs)
}

func say(text string) *twiml.VoiceSay {
	return &twiml.VoiceSay{
		Message:  text,
		Voice:    sayVoice,
		Language: sayLanguage,
	}
}
