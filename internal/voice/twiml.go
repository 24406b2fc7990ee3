// Package voice renders call flow instructions as TwiML voice responses.
package voice

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/flowpbx/ivrflow/internal/callflow"
)

// Renderer turns instructions into TwiML. Prompt keys resolve to
// BaseURL + "/" + key + Extension.
type Renderer struct {
	BaseURL   string
	Extension string
	// GatherTimeout is the Gather timeout in seconds. Zero leaves the
	// attribute off so the provider default applies.
	GatherTimeout int
}

// response is the TwiML <Response> document. Verbs keep their order.
type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

type gather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Plays     []play
}

type record struct {
	XMLName xml.Name `xml:"Record"`
}

type hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// PromptURL resolves a prompt key to a playable URL.
func (r *Renderer) PromptURL(key string) string {
	return strings.Join([]string{r.BaseURL, key + r.Extension}, "/")
}

func (r *Renderer) plays(keys []string) []play {
	out := make([]play, len(keys))
	for i, k := range keys {
		out[i] = play{URL: r.PromptURL(k)}
	}
	return out
}

// Render produces the TwiML document for instr. currentURL is where
// PlayAndAdvance redirects so the next step runs against the same flow.
func (r *Renderer) Render(instr callflow.Instruction, currentURL string) ([]byte, error) {
	var resp response

	switch instr.Kind {
	case callflow.KindNoOp:
	case callflow.KindPlayAndAdvance:
		for _, p := range r.plays(instr.Prompts) {
			resp.Verbs = append(resp.Verbs, p)
		}
		resp.Verbs = append(resp.Verbs, redirect{URL: currentURL})
	case callflow.KindGatherDigits:
		resp.Verbs = append(resp.Verbs, gather{
			NumDigits: instr.NumDigits,
			Timeout:   r.GatherTimeout,
			Plays:     r.plays(instr.Prompts),
		})
	case callflow.KindPlayAndRecord:
		for _, p := range r.plays(instr.Prompts) {
			resp.Verbs = append(resp.Verbs, p)
		}
		resp.Verbs = append(resp.Verbs, record{})
	case callflow.KindPlayAndHangup:
		for _, p := range r.plays(instr.Prompts) {
			resp.Verbs = append(resp.Verbs, p)
		}
		resp.Verbs = append(resp.Verbs, hangup{})
	default:
		return nil, fmt.Errorf("unsupported instruction kind %q", instr.Kind)
	}

	out, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshaling twiml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
