package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/replica-dev/replica/internal/demo"
	"github.com/replica-dev/replica/pkg/replica"
	"github.com/replica-dev/replica/pkg/transport"
)

func observeCmd() *cobra.Command {
	var (
		url     string
		summary time.Duration
	)

	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Mirror an authority and print world changes",
		Long: `Connect to a replication authority and print the mirrored world.

Entity arrivals, departures and messages are printed as they happen; a
periodic summary line shows the population and a sample position. The
mirror survives reconnects, so restarting the server mid-observe shows
the session teardown and resync behavior.

Examples:
  replica observe
  replica observe --url=ws://game.example.net:8472/replica`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObserve(url, summary)
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "ws://localhost:8472/replica", "WebSocket URL of the authority")
	cmd.Flags().DurationVar(&summary, "summary-every", 5*time.Second, "How often to print a world summary")

	return cmd
}

func runObserve(url string, summaryEvery time.Duration) error {
	// tracked holds every object the application has claimed. It is only
	// touched with the observer locked: from OnSync and from Do callbacks.
	tracked := make(map[replica.NetID]*replica.Object)

	config := &transport.ClientConfig{
		URL: url,
		OnSync: func(obs *replica.Observer) {
			for {
				obj := obs.PumpCreate()
				if obj == nil {
					break
				}
				tracked[obj.ID()] = obj
				success("%s joined", nameOf(obj))
			}
			for id, obj := range tracked {
				for {
					msg, ok := obj.ReceiveMessage()
					if !ok {
						break
					}
					info("%s: %s", nameOf(obj), msg)
				}
				if obj.PendingDestroy() {
					info("%s left", nameOf(obj))
					delete(tracked, id)
					obs.Destroy(obj)
				}
			}
		},
		OnConnect:    func() { success("Connected to %s", url) },
		OnDisconnect: func(err error) { info("Disconnected: %v", err) },
	}
	c := transport.NewClient(config)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	printBanner()
	fmt.Println("  observe")
	fmt.Println()

	go func() {
		ticker := time.NewTicker(summaryEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				printSummary(c, tracked)
			}
		}
	}()

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("\n  Bye")
	return nil
}

func printSummary(c *transport.Client, tracked map[replica.NetID]*replica.Object) {
	c.Do(func(obs *replica.Observer) {
		var sample string
		for _, obj := range tracked {
			st, err := demo.DecodeEntityState(obj.SyncData())
			if err != nil {
				continue
			}
			sample = fmt.Sprintf(" · %s at (%.1f, %.1f)", nameOf(obj), st.X, st.Y)
			break
		}
		info("%d entities%s", obs.NumObjects(), sample)
	})
}

// nameOf prefers the demo entity name, falling back to the local id.
func nameOf(obj *replica.Object) string {
	if init, err := demo.DecodeEntityInit(obj.InitData()); err == nil {
		return init.Name
	}
	return fmt.Sprintf("object %d", obj.ID())
}
