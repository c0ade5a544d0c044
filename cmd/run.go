// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/diag"
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/eni"
	"github.com/phi-robotics/motorlink/pkg/motor"
	"github.com/phi-robotics/motorlink/pkg/trace"
)

var (
	httpAddr  string
	tracePath string
	startRun  bool
	direction string
	stepSize  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cyclic control loop",
	Long: `Bring the bus up and run the cyclic control loop at the configured
period until interrupted.

With --http the control/diagnostic server is exposed (POST /control,
GET /diag, GET /ws for live streaming). With --trace every cycle's
telemetry is appended to a CBOR trace file.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&httpAddr, "http", "", "Serve control/diagnostics on this address (e.g. :8800)")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "Record per-cycle telemetry to this file")
	runCmd.Flags().BoolVar(&startRun, "start", false, "Command motion immediately")
	runCmd.Flags().StringVar(&direction, "direction", "forward", "Jog direction: forward or reverse")
	runCmd.Flags().IntVar(&stepSize, "step", 1000, "Per-cycle step in position counts")
	rootCmd.AddCommand(runCmd)
}

// buildSimMaster populates the in-process bus: one simulated drive per ENI
// slave, or --axes EYOU drives when no file is given.
func buildSimMaster(log *zap.Logger) (*ecat.SimMaster, error) {
	m := ecat.NewSimMaster()
	if eniPath != "" {
		slaves, err := eni.ParseFile(eniPath, log)
		if err != nil {
			return nil, err
		}
		for _, s := range slaves {
			m.AddSlave(s.Position, s.VendorID, s.ProductCode)
		}
		return m, nil
	}
	for i := 0; i < simAxes; i++ {
		m.AddSlave(uint16(i), 0x00001097, 0x00002406)
	}
	return m, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	master, err := buildSimMaster(log)
	if err != nil {
		return fmt.Errorf("bus setup: %w", err)
	}

	var observer motor.Observer
	var recorder *trace.Recorder
	if tracePath != "" {
		recorder, err = trace.Create(tracePath)
		if err != nil {
			return err
		}
		defer recorder.Close()
		observer = recorder
	}

	ctrl, err := motor.New(motor.Config{
		ENIPath:  eniPath,
		CycleUS:  cycleUS,
		Master:   master,
		Fallback: adapter.NewStandard(),
		Logger:   log,
		Observer: observer,
	})
	if err != nil {
		return fmt.Errorf("controller bootstrap: %w", err)
	}
	defer ctrl.Close()

	log.Info("axes configured", zap.Int("count", ctrl.Count()))
	for i := 0; i < ctrl.Count(); i++ {
		log.Info("axis", zap.Int("index", i),
			zap.String("adapter", ctrl.AdapterName(i)),
			zap.String("motor", ctrl.MotorInfo(i)))
	}

	if startRun {
		dir := 1
		if direction == "reverse" {
			dir = -1
		}
		ctrl.SetCommand(true, dir, stepSize)
	}

	var server *diag.Server
	if httpAddr != "" {
		server = diag.New(ctrl, log, ctrl.RequestStop)
		go func() {
			if err := server.ListenAndServe(httpAddr); err != nil {
				log.Error("diag server", zap.Error(err))
			}
		}()
		defer server.Shutdown()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cycleUS) * time.Microsecond)
	defer ticker.Stop()

	for ctrl.Running() {
		select {
		case <-ticker.C:
			ctrl.Tick()
		case s := <-sig:
			log.Info("signal received, stopping", zap.String("signal", s.String()))
			ctrl.RequestStop()
		}
	}
	log.Info("control loop stopped")
	return nil
}
