package main

import (
	"os"

	smartstepscmder "github.com/Loflou-Inc/SmartSteps-PROD-sub000/cmd/smartsteps"
)

func main() {
	cmd := smartstepscmder.NewSmartStepsCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
