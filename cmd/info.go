// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phi-robotics/motorlink/pkg/eni"
	"github.com/phi-robotics/motorlink/pkg/pdo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Parse a network information file and dump its slaves",
	Long: `Parse an ENI file (text or XML form) and print the discovered
slaves: identity, position, DC support, and any explicit PDO layout.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if eniPath == "" {
		return fmt.Errorf("--eni is required")
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	slaves, err := eni.ParseFile(eniPath, log)
	if err != nil {
		return err
	}

	fmt.Printf("%d slave(s) in %s\n\n", len(slaves), eniPath)
	for _, s := range slaves {
		fmt.Printf("=== Slave %d ===\n", s.Position)
		fmt.Printf("  Vendor Id:    0x%08X\n", s.VendorID)
		fmt.Printf("  Product code: 0x%08X\n", s.ProductCode)
		if s.Revision != 0 {
			fmt.Printf("  Revision:     0x%08X\n", s.Revision)
		}
		if s.Serial != 0 {
			fmt.Printf("  Serial:       0x%08X\n", s.Serial)
		}
		if s.Name != "" {
			fmt.Printf("  Name:         %s\n", s.Name)
		}
		fmt.Printf("  DC:           %v\n", s.HasDC)
		printPdos("Rx", s.RxPdos)
		printPdos("Tx", s.TxPdos)
		fmt.Println()
	}
	return nil
}

func printPdos(label string, pdos []pdo.Pdo) {
	if len(pdos) == 0 {
		return
	}
	for _, p := range pdos {
		fmt.Printf("  %sPdo 0x%04X:", label, p.Index)
		for _, e := range p.Entries {
			fmt.Printf(" %s", e)
		}
		fmt.Println()
	}
}
