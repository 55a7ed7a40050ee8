package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"anvil/api/grpcserver"
	"anvil/config"
	"anvil/domain/orderbook"
	"anvil/engine"
	"anvil/infra/dedup"
	"anvil/infra/memory"
	"anvil/infra/outbox"
	"anvil/infra/queue"
	"anvil/infra/ring"
	"anvil/infra/sequence"
	"anvil/jobs/feed"
	"anvil/jobs/writer"
	"anvil/service"
	"anvil/sink"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	// ---------------- Outbox ----------------

	box, err := outbox.Open(cfg.OutboxDir)
	if err != nil {
		log.Fatal("outbox open failed", zap.Error(err))
	}
	defer box.Close()

	// Resume the event-stream sequence past everything already
	// durable; a restarted market never reuses a sequence number.
	seq := sequence.New()
	if last, ok, err := box.LastSequence(); err != nil {
		log.Fatal("outbox scan failed", zap.Error(err))
	} else if ok {
		seq.Resume(0, last)
		log.Info("resuming event stream", zap.Uint64("last_seq", last))
	}

	// ---------------- Core ----------------

	book := orderbook.NewOrderBook(cfg.Market)
	pool := memory.NewOrderPool(cfg.OrderPoolSize)
	q := queue.New(cfg.IngressQueueSize)
	evRing := ring.New(uint64(cfg.EventBufferSize))
	window := dedup.NewWindow(cfg.DedupWindowSize)

	loop := engine.New(book, q, evRing, seq, pool,
		engine.WithLogger(log.Named("engine")),
	)

	// ---------------- Sink + writer ----------------

	var downstream sink.Sink
	if cfg.SinkEndpoint != "" {
		downstream, err = sink.DialSettlement(cfg.SinkEndpoint)
	} else {
		downstream, err = sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	if err != nil {
		log.Fatal("sink init failed", zap.Error(err))
	}
	defer downstream.Close()

	var mirror writer.Mirror
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.FeedTopic != "" {
		f := feed.New(cfg.Kafka.Brokers, cfg.Kafka.FeedTopic)
		defer f.Close()
		mirror = f
	}

	w := writer.New(writer.Config{
		Market:       cfg.Market,
		BatchSize:    cfg.EventBatchSize,
		BatchTimeout: cfg.BatchTimeout(),
	}, evRing, box, downstream, mirror, log.Named("writer"))

	// ---------------- Ingress ----------------

	ingress := service.NewIngress(cfg.Market, q, window, log.Named("ingress"))
	rpc := grpcserver.NewGRPCServer(grpcserver.NewServer(ingress, log.Named("rpc")))

	lis, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		log.Fatal("listen failed", zap.String("addr", cfg.BindAddr), zap.Error(err))
	}

	// ---------------- Run ----------------

	w.Start()
	loop.Start()

	go func() {
		if err := rpc.Serve(lis); err != nil {
			log.Fatal("rpc server exited", zap.Error(err))
		}
	}()
	log.Info("anvil matching core ready",
		zap.String("market", cfg.Market),
		zap.String("addr", cfg.BindAddr),
	)

	// ---------------- Drain on signal ----------------

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("draining")

	rpc.GracefulStop() // stop admission first
	loop.Drain()       // finish everything enqueued, close the ring
	w.Wait()           // flush remaining batches downstream
	log.Info("stopped")
}
