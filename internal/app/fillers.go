package app

import (
	"context"
	"time"
)

// dispatcherPrompt seeds every browser conversation.
const dispatcherPrompt = `You are a dispatch assistant for a small freight carrier, talking to a truck driver over voice.

Keep replies short and conversational; they are read aloud. Use the available tools for anything factual: load searches, hours of service, fuel stops, parking, invoices, and broker calls. Never invent loads, rates, or regulations. When a tool fails, say you could not look that up and move on.

Rates are quoted in dollars, distances in miles. Confirm phone numbers and rates back to the driver before starting a broker call.`

// fillerPhrases are the latency-masking cues spoken while a tool runs, keyed
// by tool name. The "" key is the generic cue.
var fillerPhrases = map[string]string{
	"":           "One moment.",
	"loadsearch": "Let me check the load boards.",
	"hosstatus":  "Pulling up your logbook.",
	"fuelstops":  "Checking fuel prices on your route.",
	"parking":    "Looking for parking up ahead.",
	"invoice":    "Let me draft that invoice.",
	"brokercall": "Alright, I will get the broker on the line.",
}

// warmFillers pre-renders the filler cues through the TTS provider so turns
// can play them without a synthesis round trip. Best effort: on any failure
// sessions simply run without cues.
func (a *App) warmFillers(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ch, err := a.providers.TTS.OpenChannel(ctx, a.voice)
	if err != nil {
		a.log.Warn("filler pre-render skipped", "error", err)
		return
	}
	defer ch.Close()

	fillers := make(map[string][]byte, len(fillerPhrases))
	for name, phrase := range fillerPhrases {
		chunks, err := ch.Synthesize(ctx, phrase)
		if err != nil {
			a.log.Warn("filler synthesis failed", "tool", name, "error", err)
			continue
		}
		var buf []byte
		for chunk := range chunks {
			buf = append(buf, chunk...)
		}
		if len(buf) > 0 {
			fillers[name] = buf
		}
	}
	if len(fillers) > 0 {
		a.fillers = fillers
		a.log.Info("filler cues rendered", "count", len(fillers))
	}
}
