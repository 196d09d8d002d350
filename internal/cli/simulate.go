package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smartcart-io/cartd/internal/adapter/storage"
	"github.com/smartcart-io/cartd/internal/config"
	"github.com/smartcart-io/cartd/internal/core/domain"
	"github.com/smartcart-io/cartd/internal/core/service"
	"github.com/smartcart-io/cartd/internal/obs"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	ServerURL string
	UserID    string
	DeviceID  string
	Scans     int
	Interval  time.Duration
}

// NewSimulateCommand creates the simulate command: software stand-ins
// for the RFID reader, barcode scanner and load cell, driving a running
// relay over its ingestion API.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a relay with simulated hardware adapters",
		Long: `Drive a relay with simulated hardware adapters.

Injects scans from the demo catalog and runs a load-cell simulator that
tracks the expected cart weight with sensor noise. The load cell
publishes a sample on a >50 g change or a stability transition, the way
the shelf hardware does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ServerURL, "server", "http://localhost:8000", "relay base URL")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "session user ID (random when empty)")
	cmd.Flags().StringVar(&opts.DeviceID, "device", "loadcell-sim-1", "simulated load cell device ID")
	cmd.Flags().IntVar(&opts.Scans, "scans", 5, "number of scans to inject")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 3*time.Second, "delay between scans")

	return cmd
}

// simClient posts ingestion requests and drops failures, matching the
// fire-and-forget behavior of the real adapters.
type simClient struct {
	baseURL string
	http    *http.Client
}

func (c *simClient) post(path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("relay returned %s", resp.Status)
	}
	return nil
}

func runSimulate(opts *SimulateOptions) error {
	tuning, err := config.LoadTuning(opts.TuningFile)
	if err != nil {
		return err
	}
	if opts.UserID == "" {
		opts.UserID = "sim-" + uuid.NewString()[:8]
	}

	client := &simClient{baseURL: opts.ServerURL, http: &http.Client{Timeout: 5 * time.Second}}

	if err := client.post("/api/device/bind", map[string]string{
		"device_id": opts.DeviceID,
		"user_id":   opts.UserID,
	}); err != nil {
		return fmt.Errorf("bind device: %w", err)
	}
	obs.Logger.Info("simulator started", "user_id", opts.UserID, "device_id", opts.DeviceID)

	catalog := storage.DemoCatalog()
	cell := newLoadCellSim(client, opts.DeviceID, tuning)

	done := make(chan struct{})
	go cell.run(done)

	for i := 0; i < opts.Scans; i++ {
		p := catalog[rand.Intn(len(catalog))]
		scanType, scanValue := domain.ScanKindBarcode, p.Barcode
		if p.RFIDCode != "" && rand.Intn(2) == 0 {
			scanType, scanValue = domain.ScanKindRFID, p.RFIDCode
		}

		err := client.post("/api/cart/add-item", map[string]any{
			"user_id":    opts.UserID,
			"scan_type":  string(scanType),
			"scan_value": scanValue,
		})
		if err != nil {
			// Adapters drop failed publishes; no retry queue.
			obs.Logger.Warn("scan dropped", "scan_value", scanValue, "error", err)
		} else {
			obs.Logger.Info("scan injected",
				"scan_type", string(scanType), "scan_value", scanValue, "product", p.Name)
			cell.addWeight(p.NominalWeightGrams)
		}

		time.Sleep(opts.Interval)
	}

	// Let the scale settle before exiting.
	time.Sleep(3 * tuning.SampleInterval())
	close(done)
	obs.Logger.Info("simulator finished", "user_id", opts.UserID, "scans", opts.Scans)
	return nil
}

// loadCellSim mimics the shelf load cell: noisy raw readings drift
// toward the true weight, the on-board filter smooths them and declares
// stability, and the smoothed value goes out on a >50 g change or a
// stability transition.
type loadCellSim struct {
	client   *simClient
	deviceID string
	tuning   config.Tuning
	filter   *service.WeightStabilizer

	weightCh      chan float64
	target        float64
	current       float64
	lastPublished float64
	wasStable     bool
}

func newLoadCellSim(client *simClient, deviceID string, tuning config.Tuning) *loadCellSim {
	return &loadCellSim{
		client:   client,
		deviceID: deviceID,
		tuning:   tuning,
		filter:   service.NewWeightStabilizer(tuning.SmoothingFactor, tuning.StabilityDeltaGrams, tuning.StableSampleCount),
		weightCh: make(chan float64, 16),
	}
}

// addWeight simulates an item landing in the basket.
func (l *loadCellSim) addWeight(grams float64) {
	l.weightCh <- grams
}

func (l *loadCellSim) run(done <-chan struct{}) {
	// Announce the empty scale the way the firmware does on boot.
	l.publish(0, false, "initialization")

	ticker := time.NewTicker(l.tuning.SampleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case grams := <-l.weightCh:
			l.target += grams
		case <-ticker.C:
			l.sample()
		}
	}
}

func (l *loadCellSim) sample() {
	// Drift toward the target, then add sensor noise.
	l.current += (l.target - l.current) * 0.5
	raw := l.current + (rand.Float64()-0.5)*4

	smoothed, stable := l.filter.Process(raw)

	bigChange := abs(smoothed-l.lastPublished) > 50
	if !bigChange && stable == l.wasStable {
		return
	}
	l.wasStable = stable
	l.publish(smoothed, stable, "measurement")
}

func (l *loadCellSim) publish(grams float64, stable bool, reason string) {
	l.lastPublished = grams

	err := l.client.post("/api/weight/update", map[string]any{
		"device_id": l.deviceID,
		"weight":    grams,
		"stable":    stable,
		"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
		"reason":    reason,
	})
	if err != nil {
		obs.Logger.Warn("weight sample dropped", "error", err)
		return
	}
	obs.Logger.Debug("weight sample published",
		"grams", grams, "target", l.target, "stable", stable, "reason", reason)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
