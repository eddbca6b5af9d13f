package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/transit"
)

// LogSink renders refreshed predictions into the structured log. Useful on
// its own for headless deployments and as the default sink until a display
// is wired up.
type LogSink struct {
	Logger zerolog.Logger
}

// Publish implements Sink.
func (s LogSink) Publish(_ context.Context, b store.Bookmark, eta transit.Eta) error {
	event := s.Logger.Info().
		Str("bookmark_id", b.ID).
		Str("company", string(b.Query.Company)).
		Str("route", eta.No).
		Str("stop", eta.StopName).
		Str("destination", eta.Destination)

	if eta.Error != nil {
		event.Str("message", eta.Error.Message).Msg("no prediction")
		return nil
	}

	minutes := make([]int, 0, len(eta.Etas))
	for _, entry := range eta.Etas {
		if entry.EtaMinute != nil {
			minutes = append(minutes, *entry.EtaMinute)
		}
	}
	event.Ints("minutes", minutes).Msg("predictions refreshed")
	return nil
}
