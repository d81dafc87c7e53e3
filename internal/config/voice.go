package config

import "strings"

// Webhook route paths, relative to WebhookBaseURL.
const (
	PathVoiceWebhook         = "/api/voice/webhook"
	PathStatus               = "/api/voice/status"
	PathOutboundAnswer       = "/api/voice/outbound"
	PathIVRMenu              = "/api/voice/ivr-menu"
	PathIVRResponse          = "/api/voice/ivr-response"
	PathVoicemailComplete    = "/api/voice/voicemail-complete"
	PathVoicemailTranscribed = "/api/voice/voicemail-transcription"
	recordingSuffix          = "/recording"
	transcriptionSuffix      = "/transcription"
)

func (v VoiceConfig) withDefaults() VoiceConfig {
	v.WebhookBaseURL = strings.TrimRight(v.WebhookBaseURL, "/")
	if v.WebhookBaseURL == "" {
		v.WebhookBaseURL = defaultWebhookBaseURL
	}
	if v.VoiceWebhookURL == "" {
		v.VoiceWebhookURL = v.WebhookBaseURL + PathVoiceWebhook
	}
	v.VoiceWebhookURL = strings.TrimRight(v.VoiceWebhookURL, "/")
	if v.StatusCallbackURL == "" {
		v.StatusCallbackURL = v.WebhookBaseURL + PathStatus
	}
	return v
}

// Resolved returns a copy with every derived URL filled in.
func (v VoiceConfig) Resolved() VoiceConfig { return v.withDefaults() }

// Link joins path onto the webhook base.
func (v VoiceConfig) Link(path string) string {
	return strings.TrimRight(v.WebhookBaseURL, "/") + path
}

// RecordingURL is where the provider posts a finished inbound recording.
func (v VoiceConfig) RecordingURL() string { return v.VoiceWebhookURL + recordingSuffix }

// TranscriptionURL is where the provider posts the transcription of an inbound recording.
func (v VoiceConfig) TranscriptionURL() string { return v.VoiceWebhookURL + transcriptionSuffix }
