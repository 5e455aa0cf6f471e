package telemetry

import (
	"errors"

	"github.com/kilianp07/batsim/core/factory"
	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
	"github.com/kilianp07/batsim/infra/logger"
	infmqtt "github.com/kilianp07/batsim/infra/mqtt"
)

type pathConf struct {
	Path string `json:"path"`
}

// queueConf sizes the write queue of network sinks.
type queueConf struct {
	QueueSize int `json:"queue_size"`
}

func async(conf map[string]any, sink coretelemetry.Sink, component string) (coretelemetry.Sink, error) {
	var q queueConf
	if err := factory.Decode(conf, &q); err != nil {
		return nil, err
	}
	return NewAsyncSink(sink, q.QueueSize, logger.New(component)), nil
}

// init registers built-in telemetry sinks.
func init() {
	_ = coretelemetry.RegisterSink("nop", func(map[string]any) (coretelemetry.Sink, error) {
		return coretelemetry.NopSink{}, nil
	})

	_ = coretelemetry.RegisterSink("csv", func(conf map[string]any) (coretelemetry.Sink, error) {
		var c FileConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewCSVFileSink(c)
	})

	_ = coretelemetry.RegisterSink("jsonl", func(conf map[string]any) (coretelemetry.Sink, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, errors.New("jsonl sink: path is required")
		}
		return NewJSONLStore(c.Path)
	})

	_ = coretelemetry.RegisterSink("jsonl_rotating", func(conf map[string]any) (coretelemetry.Sink, error) {
		var c FileConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, errors.New("jsonl_rotating sink: path is required")
		}
		if c.MaxSizeMB <= 0 {
			c.MaxSizeMB = 100
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})

	_ = coretelemetry.RegisterSink("sqlite", func(conf map[string]any) (coretelemetry.Sink, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "batsim.db"
		}
		return NewSQLiteStore(c.Path)
	})

	_ = coretelemetry.RegisterSink("prometheus", func(map[string]any) (coretelemetry.Sink, error) {
		return NewPromSink()
	})

	_ = coretelemetry.RegisterSink("influx", func(conf map[string]any) (coretelemetry.Sink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		sink := NewInfluxSinkWithFallback(c)
		if _, ok := sink.(*InfluxSink); !ok {
			return sink, nil
		}
		return async(conf, sink, "influx-sink")
	})

	_ = coretelemetry.RegisterSink("mqtt", func(conf map[string]any) (coretelemetry.Sink, error) {
		var c infmqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		cli, err := infmqtt.NewPahoClient(c, "telemetry")
		if err != nil {
			return nil, err
		}
		return async(conf, NewMQTTSink(cli), "mqtt-sink")
	})
}

// Build creates the configured sinks and combines them. With no sinks
// configured the result discards every record.
func Build(cfgs []factory.ModuleConfig) (*MultiSink, error) {
	sinks, err := coretelemetry.NewSinks(cfgs)
	m := NewMultiSink(sinks...)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}
