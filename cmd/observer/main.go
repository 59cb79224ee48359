package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	server "vigor/server"
	"vigor/server/internal/actor"
	"vigor/server/internal/net/proto"
	"vigor/server/internal/net/ws"
	"vigor/server/internal/replication"
	"vigor/server/internal/telemetry"
)

func main() {
	var baseURL string
	var slideAfter time.Duration
	flag.StringVar(&baseURL, "server", "http://localhost:8080", "authority base url")
	flag.DurationVar(&slideAfter, "slide-after", 0, "walk right and request a slide after this delay (0 disables)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, baseURL, slideAfter); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, baseURL string, slideAfter time.Duration) error {
	logger := telemetry.WrapLogger(log.Default())

	join, err := ws.Join(ctx, nil, baseURL)
	if err != nil {
		return err
	}
	logger.Printf("joined as %s at (%.1f, %.1f)", join.ID, join.Spawn.X, join.Spawn.Y)

	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return err
	}
	client, err := ws.Dial(ctx, wsURL, join.ID, ws.ClientConfig{
		Logger: logger,
		OnMessage: func(msg proto.ServerMessage) {
			switch msg.Type {
			case proto.TypeStaminaState:
				for _, snapshot := range msg.Snapshots {
					fmt.Printf("tick=%d %s\n", msg.Tick, formatSnapshot(snapshot))
				}
			case proto.TypeSlideStarted:
				fmt.Printf("tick=%d slide %s -> (%.1f, %.1f) for %.2fs\n", msg.Tick, msg.ActorID, msg.X, msg.Y, msg.SlideTime)
			case proto.TypeCommandReject:
				fmt.Printf("rejected seq=%d reason=%s\n", msg.Seq, msg.Reason)
			case proto.TypeAlert:
				fmt.Printf("alert %s severity=%d cleared=%v\n", msg.Kind, msg.Severity, msg.Cleared)
			case proto.TypePopup:
				fmt.Printf("popup %s on %s\n", msg.Message, msg.Target)
			case proto.TypeActorLeft:
				fmt.Printf("left %s (%s)\n", msg.ActorID, msg.Reason)
			}
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx)
	})
	g.Go(func() error {
		heartbeat := time.NewTicker(server.HeartbeatInterval())
		defer heartbeat.Stop()
		frame := time.NewTicker(100 * time.Millisecond)
		defer frame.Stop()
		last := time.Now()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-heartbeat.C:
				if err := client.Heartbeat(now); err != nil {
					return err
				}
			case now := <-frame.C:
				client.Mirror().Update(now.Sub(last).Seconds())
				last = now
			}
		}
	})
	if slideAfter > 0 {
		g.Go(func() error {
			if _, err := client.SendInput(1, 0, false); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(slideAfter):
			}
			target := actor.Vec2{X: join.Spawn.X + 32, Y: join.Spawn.Y}
			if _, err := client.RequestSlide(target); err != nil {
				logger.Printf("slide not sent: %v", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func websocketURL(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/ws"
	return parsed.String(), nil
}

func formatSnapshot(s replication.Snapshot) string {
	return fmt.Sprintf("%s stamina=%.0f rate=%.1f canSlide=%v cost=%d stimulated=%v",
		s.ID, s.CurrentValue, s.ActualRegenRate, s.CanSlide, s.SlideCost, s.Stimulated)
}
