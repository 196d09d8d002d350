package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/smartcart-io/cartd/internal/adapter/handler"
	"github.com/smartcart-io/cartd/internal/config"
	"github.com/smartcart-io/cartd/internal/transport"
	"github.com/smartcart-io/cartd/internal/wire"
)

// MonitorOptions holds flags for the monitor command.
type MonitorOptions struct {
	*RootOptions
	ServerURL string
	UserID    string
}

// NewMonitorCommand creates the monitor command: a terminal subscriber
// that follows one session over the frame channel and prints live cart
// snapshots.
func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MonitorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Follow a session's cart over the frame channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ServerURL, "server", "http://localhost:8000", "relay base URL")
	cmd.Flags().StringVar(&opts.UserID, "user", "demo_user", "session user ID to follow")

	return cmd
}

func runMonitor(opts *MonitorOptions) error {
	tuning, err := config.LoadTuning(opts.TuningFile)
	if err != nil {
		return err
	}

	wsURL := "ws" + strings.TrimPrefix(opts.ServerURL, "http") + "/ws/" + opts.UserID
	httpClient := &http.Client{}

	client := transport.NewClient(wsURL, tuning, func(msg wire.Message) {
		switch m := msg.(type) {
		case wire.CartUpdate:
			fmt.Printf("cart  %-7s", m.Action)
			if m.Item != nil {
				fmt.Printf(" product=%s qty=%d", m.Item.ProductID, m.Item.Quantity)
			} else if m.ProductID != "" {
				fmt.Printf(" product=%s", m.ProductID)
				if m.Quantity != nil {
					fmt.Printf(" qty=%d", *m.Quantity)
				}
			}
			fmt.Println()
			printSnapshot(httpClient, opts.ServerURL, opts.UserID)
		case wire.WeightUpdate:
			marker := " "
			if m.Stable {
				marker = "*"
			}
			fmt.Printf("scale %s %sg (device %s)\n", marker,
				humanize.CommafWithDigits(m.Weight, 1), m.DeviceID)
		}
	})

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	fmt.Printf("following session %q on %s (ctrl-c to quit)\n", opts.UserID, opts.ServerURL)
	printSnapshot(httpClient, opts.ServerURL, opts.UserID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

// printSnapshot renders the authoritative cart state from the relay.
func printSnapshot(client *http.Client, serverURL, userID string) {
	resp, err := client.Get(serverURL + "/api/cart/" + userID)
	if err != nil {
		fmt.Printf("  (snapshot unavailable: %v)\n", err)
		return
	}
	defer resp.Body.Close()

	var cart handler.CartHTTPResponse
	if err := json.NewDecoder(resp.Body).Decode(&cart); err != nil {
		fmt.Printf("  (snapshot unavailable: %v)\n", err)
		return
	}

	for _, item := range cart.Items {
		name := item.Product.Name
		if item.Product.Unresolved {
			name += " [unresolved]"
		}
		fmt.Printf("  %dx %-30s $%.2f\n", item.Quantity, name, item.Product.Price)
	}

	rec := cart.Reconciliation
	status := "MATCH"
	if !rec.Match {
		status = "MISMATCH"
	}
	if rec.Simulated {
		status += " (estimated)"
	}
	fmt.Printf("  %s items, $%.2f, expect %sg measured %sg -> %s\n",
		humanize.Comma(int64(cart.TotalQuantity)),
		cart.TotalPrice,
		humanize.CommafWithDigits(cart.ExpectedWeightGrams, 0),
		humanize.CommafWithDigits(rec.MeasuredGrams, 0),
		status)
}
