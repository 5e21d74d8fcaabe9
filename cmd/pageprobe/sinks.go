package main

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pageprobe/internal/config"
	"github.com/hazyhaar/pageprobe/internal/sink"
	"github.com/hazyhaar/pageprobe/internal/store"
)

// buildSinks creates the configured sinks plus those requested by -db and
// -snapshots. A sqlite sink is returned as the store, not among the sinks.
func buildSinks(cfgs []config.SinkConfig, o options, logger *slog.Logger) ([]sink.Sink, *store.Store, error) {
	if o.dbPath != "" {
		cfgs = append(cfgs, config.SinkConfig{Type: "sqlite", Path: o.dbPath})
	}
	if o.snapDir != "" {
		cfgs = append(cfgs, config.SinkConfig{Type: "files", Dir: o.snapDir})
	}

	var (
		sinks []sink.Sink
		st    *store.Store
	)
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			sinks = append(sinks, sink.NewStdout(nil))
		case "webhook":
			sinks = append(sinks, sink.NewWebhook(c.URL, sink.WithWebhookLogger(logger)))
		case "files":
			f, err := sink.NewFiles(c.Dir)
			if err != nil {
				return nil, nil, err
			}
			sinks = append(sinks, f)
		case "sqlite":
			if st != nil {
				return nil, nil, fmt.Errorf("pageprobe: only one sqlite sink is supported")
			}
			var err error
			if st, err = store.Open(c.Path); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, fmt.Errorf("pageprobe: unknown sink type %q", c.Type)
		}
	}
	return sinks, st, nil
}
