package notify

import "github.com/rs/zerolog"

// LogSink writes notifications to the structured log. The daemon uses it as
// the default delivery channel; platform integrations implement Sink
// themselves.
type LogSink struct {
	Log zerolog.Logger
}

// Show implements Sink.
func (s LogSink) Show(title, body, identifier string, severity Severity) {
	s.Log.Warn().
		Str("identifier", identifier).
		Str("severity", string(severity)).
		Str("title", title).
		Msg(body)
}
