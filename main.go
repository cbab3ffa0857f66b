// main.go
//
// Entry point; CLI handling lives in the Cobra commands under cmd/.

package main

import (
	"github.com/pcs-sim/pcs-sim/cmd"
)

func main() {
	cmd.Execute()
}
