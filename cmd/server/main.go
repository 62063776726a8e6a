package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"

	"chute/api/grpcserver"
	"chute/frame"
	"chute/infra/kafka"
	"chute/infra/spill"
	"chute/jobs/broadcaster"
	"chute/pool"
	"chute/queue"
	"chute/service"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// ---------------- Spill store ----------------

	store, err := spill.Open(cfg.SpillDir)
	if err != nil {
		log.Fatalf("spill store init failed: %v", err)
	}
	defer store.Close()

	// ---------------- Core ----------------

	q := queue.New[*frame.Frame](
		queue.WithSegmentSize(cfg.Queue.SegmentSize),
		queue.WithMaxSegments(cfg.Queue.MaxSegments),
	)

	frames := pool.New(
		cfg.PoolSize,
		func() *frame.Frame { return &frame.Frame{} },
		(*frame.Frame).Reset,
	)

	// ---------------- Sink ----------------

	var sink service.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.FrameTopic)
		defer producer.Close()
		sink = producer
	}

	// ---------------- Service ----------------

	svc := service.NewPipeline(q, frames, store, sink)

	// ---------------- Background Jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(cfg.EpochTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.AdvanceEpoch()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.ReplayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := svc.ReplaySpill(ctx); err != nil {
					log.Printf("[server] spill replay stopped after %d: %v", n, err)
				}
			}
		}
	}()

	for i := 0; i < cfg.DrainWorkers; i++ {
		go func() {
			for {
				if ctx.Err() != nil {
					return
				}
				n, err := svc.Drain(ctx, cfg.DrainBatch)
				if err != nil {
					log.Printf("[server] drain error: %v", err)
				}
				if n == 0 {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		bc, err := broadcaster.New(svc, cfg.Kafka.Brokers, cfg.Kafka.StatsTopic, 2*time.Second)
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		defer bc.Close()
		bc.Start(ctx)
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	grpcSrv := grpc.NewServer()
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc))

	fmt.Printf("chute pipeline running on %s\n", cfg.ListenAddr)

	if err := grpcSrv.Serve(lis); err != nil {
		log.Fatalf("gRPC server exited: %v", err)
	}
}
