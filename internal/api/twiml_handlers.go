package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/flowpbx/ivrflow/internal/callflow"
	"github.com/google/uuid"
)

// directionOutboundAPI marks calls the platform placed to the contact; for
// those the contact is the callee rather than the caller.
const directionOutboundAPI = "outbound-api"

// contactRef picks the contact's phone number from webhook form values.
func contactRef(form url.Values) string {
	if form.Get("Direction") == directionOutboundAPI {
		return form.Get("To")
	}
	return form.Get("From")
}

// contactRefKey keys the webhook rate limiter by contact.
func contactRefKey(r *http.Request) string {
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return contactRef(r.PostForm)
}

// requestURL reconstructs the absolute URL the provider called, used as the
// redirect target after a play-and-advance step. X-Forwarded-Proto is only
// honored when it names http or https.
func requestURL(r *http.Request) string {
	scheme := "http"
	switch proto := r.Header.Get("X-Forwarded-Proto"); {
	case proto == "http" || proto == "https":
		scheme = proto
	case r.TLS != nil:
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host}
	return u.String() + r.URL.RequestURI()
}

// handleOutcomeMonitoring steps the contact's outcome monitoring flow once
// and answers with the voice document for the resulting state.
func (s *Server) handleOutcomeMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	ref := contactRef(r.PostForm)
	if msg := validateContactRef("caller number", ref); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateDigits("Digits", r.PostForm.Get("Digits")); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	event := callflow.Event{
		ID:         uuid.NewString(),
		ContactRef: ref,
		Digits:     r.PostForm.Get("Digits"),
	}
	log := s.logger.With(
		"event_id", event.ID,
		"call_sid", r.PostForm.Get("CallSid"),
		"contact", ref,
	)

	release, err := s.locks.Acquire(r.Context(), ref)
	if err != nil {
		log.Warn("gave up waiting for contact lock", "error", err)
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	res, err := s.engine.Handle(r.Context(), event)
	release()
	if err != nil {
		if errors.Is(err, callflow.ErrContactRefRequired) {
			writeError(w, http.StatusBadRequest, "caller number is required")
			return
		}
		log.Error("failed to handle call flow event", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	body, err := s.renderer.Render(res.Instruction, requestURL(r))
	if err != nil {
		log.Error("failed to render voice response", "error", err, "status", res.To)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeXML(w, http.StatusOK, body)
}
