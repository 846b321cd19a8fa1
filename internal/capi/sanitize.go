package capi

import (
	"github.com/pixeltracker/capi-relay/internal/domain"
)

// Sanitize returns a copy of the event with empty and null values stripped
// from user_data and custom_data. Either sub-object is dropped entirely when
// nothing remains, so the remote API never sees blank match keys. Sanitizing
// an already-sanitized event is a no-op.
func Sanitize(event domain.TrackingEvent) domain.TrackingEvent {
	if event.UserData != nil {
		if event.UserData.IsEmpty() {
			event.UserData = nil
		} else {
			// Copy so the caller's event is left untouched
			ud := *event.UserData
			event.UserData = &ud
		}
	}

	if event.CustomData != nil {
		clean := make(map[string]any, len(event.CustomData))
		for key, value := range event.CustomData {
			if isBlank(value) {
				continue
			}
			clean[key] = value
		}
		if len(clean) == 0 {
			event.CustomData = nil
		} else {
			event.CustomData = clean
		}
	}

	return event
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
