package app

import (
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"github.com/LatVAlY/specWise/internal/config"
)

// StartConsumers connects the workers enabled in config to nsqlookupd.
// Callers stop the returned consumers on shutdown.
func (a *App) StartConsumers() ([]*nsq.Consumer, error) {
	var consumers []*nsq.Consumer

	start := func(topic string, handler nsq.Handler) error {
		nsqCfg := nsq.NewConfig()
		nsqCfg.MsgTimeout = a.cfg.NSQMsgTimeout
		concurrency := a.cfg.WorkerConcurrency
		if concurrency < 1 {
			concurrency = 1
		}
		nsqCfg.MaxInFlight = concurrency

		consumer, err := nsq.NewConsumer(topic, config.ChannelWorker, nsqCfg)
		if err != nil {
			return fmt.Errorf("nsq consumer %s: %w", topic, err)
		}
		consumer.AddConcurrentHandlers(handler, concurrency)
		if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
			consumer.Stop()
			return fmt.Errorf("connect %s consumer to nsqlookupd: %w", topic, err)
		}
		slog.Info("NSQ consumer connected", "topic", topic, "concurrency", concurrency)
		consumers = append(consumers, consumer)
		return nil
	}

	if a.cfg.EnableProcessWorker {
		if err := start(config.TopicProcess, a.ProcessConsumer); err != nil {
			StopConsumers(consumers)
			return nil, err
		}
	}
	if a.cfg.EnableIndexWorker {
		if a.IndexConsumer == nil {
			slog.Warn("index worker enabled but no embedder or vector store configured")
		} else if err := start(config.TopicIndex, a.IndexConsumer); err != nil {
			StopConsumers(consumers)
			return nil, err
		}
	}
	return consumers, nil
}

// StopConsumers stops each consumer and waits for in-flight handlers to return.
func StopConsumers(consumers []*nsq.Consumer) {
	for _, c := range consumers {
		c.Stop()
	}
	for _, c := range consumers {
		<-c.StopChan
	}
}
