package main

import (
	"os"

	rapportcmder "github.com/papercomputeco/rapport/cmd/rapport"
)

func main() {
	cmd := rapportcmder.NewRapportCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
