// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Bus / controller flags
	eniPath string
	cycleUS uint32

	// Simulated bus flags
	simAxes int
)

var rootCmd = &cobra.Command{
	Use:   "motorlink",
	Short: "Multi-axis CiA-402 fieldbus servo controller",
	Long: `Motorlink - a synchronous multi-axis servo controller for CiA-402
drives on a cyclic fieldbus.

The controller walks every drive through the CiA-402 power-state machine,
holds all axes at their actual positions until the whole group is enabled,
and starts motion synchronously after a fixed delay. Slave identity and PDO
layout come from a network information (ENI) file or from bus discovery.

This build drives the in-process bus simulator; production deployments link
a real master behind the same interface.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&eniPath, "eni", "e", "", "Network information file (text or XML)")
	rootCmd.PersistentFlags().Uint32Var(&cycleUS, "cycle-us", 4000, "Cycle period in microseconds")
	rootCmd.PersistentFlags().IntVar(&simAxes, "axes", 3, "Simulated drive count when no ENI is given")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
