package call

import (
	"errors"
	"fmt"
	"strings"
)

var errEmptyAnalysis = errors.New("call: analysis returned no usable outcome")

// greetingPrompt instructs the one-shot greeting generation.
func (c *Call) greetingPrompt() string {
	var b strings.Builder
	b.WriteString("You are a freight dispatch assistant making an outbound phone call to a broker")
	if c.req.BrokerName != "" {
		b.WriteString(" at " + c.req.BrokerName)
	}
	if c.req.LoadID != "" {
		b.WriteString(" about load " + c.req.LoadID)
	}
	b.WriteString(". Write one short, natural opening line introducing yourself and the reason for the call. ")
	b.WriteString("One or two sentences, spoken aloud, no stage directions.")
	return b.String()
}

// negotiationPrompt is the system instruction for every negotiation turn,
// including the machine-only end-of-call marker contract.
func (c *Call) negotiationPrompt() string {
	var b strings.Builder
	b.WriteString("You are a freight dispatch assistant negotiating a load rate with a broker on a live phone call. ")
	if c.req.BrokerName != "" {
		b.WriteString("The broker is " + c.req.BrokerName + ". ")
	}
	if c.req.LoadID != "" {
		b.WriteString("The load is " + c.req.LoadID + ". ")
	}
	if c.req.TargetRate > 0 {
		fmt.Fprintf(&b, "Aim for at least $%.2f per mile; accept anything at or above it, push back politely below it. ", c.req.TargetRate)
	}
	if c.req.Notes != "" {
		b.WriteString("Driver notes: " + c.req.Notes + ". ")
	}
	b.WriteString("Keep every reply short and conversational, as spoken on the phone. ")
	b.WriteString("When and only when the negotiation has concluded, append to your final sentence the exact sequence ")
	b.WriteString(`[CALL_END:{"agreed":true|false,"rate":<total dollars>,"rate_per_mile":<dollars per mile>}]`)
	b.WriteString(" with the numbers you settled on, or zeros if declined. Never mention this sequence aloud or explain it.")
	return b.String()
}
