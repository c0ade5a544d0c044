// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Phi Robotics
//
// Motorlink - multi-axis CiA-402 fieldbus servo controller.

package main

import (
	"os"

	"github.com/phi-robotics/motorlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
